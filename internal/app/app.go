package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/markdave123-py/cvflow/internal/config"
	"github.com/markdave123-py/cvflow/internal/core"
	"github.com/markdave123-py/cvflow/internal/core/ai"
	"github.com/markdave123-py/cvflow/internal/core/chat"
	db "github.com/markdave123-py/cvflow/internal/core/database"
	"github.com/markdave123-py/cvflow/internal/core/docreader"
	objectclient "github.com/markdave123-py/cvflow/internal/core/object-client"
	"github.com/markdave123-py/cvflow/internal/core/pipeline"
	"github.com/markdave123-py/cvflow/internal/core/report"
)

type App struct {
	DBClient *db.DatabaseClient
	Gateway  *ai.GeminiGateway
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	sink := reportSink(appCtx, cfg)

	gateway, err := ai.NewGeminiGateway(appCtx, cfg.AIAPIKey, cfg.GenModel, sink, cfg.PauseBetweenAICalls)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the AI gateway, %w", err)
	}

	reader := docreader.NewDocconvReader()
	conv := chat.NewConversation(store, gateway, cfg.ContextCharLimit, cfg.ChatHistoryLimit)

	orch := pipeline.NewOrchestrator(store, gateway, reader, conv, pipeline.Config{
		UploadDir:           cfg.UploadDir,
		PauseBetweenFiles:   cfg.PauseBetweenFiles,
		PauseBetweenAICalls: cfg.PauseBetweenAICalls,
		SettlePause:         500 * time.Millisecond,
	})

	server := NewServer(cfg, store, reader, conv, orch)

	return &App{DBClient: store.(*db.DatabaseClient), Gateway: gateway, Server: server}, nil
}

// reportSink decides where generated reports go: object storage when AWS
// credentials and a bucket are configured, local disk otherwise. An S3
// setup failure falls back to disk instead of blocking startup.
func reportSink(ctx context.Context, cfg *config.Config) core.ReportSink {
	if cfg.AwsAccessKey == "" || cfg.ReportBucket == "" {
		log.Println("Relatórios serão salvos em disco local.")
		return report.NewLocalSink(cfg.UploadDir)
	}
	obj, err := objectclient.NewS3Client(ctx, cfg)
	if err != nil {
		log.Printf("S3 indisponível (%v); relatórios serão salvos em disco local", err)
		return report.NewLocalSink(cfg.UploadDir)
	}
	log.Printf("Relatórios serão salvos em s3://%s", cfg.ReportBucket)
	return report.NewS3Sink(obj, cfg.ReportBucket)
}

func (a *App) Close() {
	if a.Gateway != nil {
		_ = a.Gateway.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
