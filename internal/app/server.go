package app

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/cvflow/internal/api/handlers"
	"github.com/markdave123-py/cvflow/internal/config"
	"github.com/markdave123-py/cvflow/internal/core"
	"github.com/markdave123-py/cvflow/internal/core/chat"
	"github.com/markdave123-py/cvflow/internal/core/pipeline"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes. No global timeout middleware: the
// processing stream stays open for as long as a batch takes.
func NewServer(cfg *config.Config, store core.Store, reader core.DocumentReader, conv *chat.Conversation, orch *pipeline.Orchestrator) *Server {
	uploadHandler := handlers.NewUploadHandler(store, cfg)
	streamHandler := handlers.NewStreamHandler(orch)
	chatHandler := handlers.NewChatHandler(store, conv)
	fileHandler := handlers.NewFileHandler(store, reader)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Serve static files from the web directory
	fileServer := http.FileServer(http.Dir("./web"))
	r.Handle("/*", fileServer)

	r.Route("/api", func(api chi.Router) {
		api.Post("/upload", uploadHandler.CreateBatch)
		api.Get("/stream-processing/{batchID}", streamHandler.StreamProcessing)
		api.Post("/chat", chatHandler.Chat)
		api.Get("/files/{fileID}/content", fileHandler.GetFileContent)
		api.Get("/files/{fileID}/download", fileHandler.DownloadFile)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
