package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AIAPIKey     string
	GenModel     string
	Port         string
	UploadDir    string
	MaxUploadMB  int64
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	ReportBucket string

	// Fixed backpressure pauses between external calls. Kept constant on
	// purpose: the AI quota budget is shared process-wide and a predictable
	// delay is easier to reason about than adaptive backoff.
	PauseBetweenFiles   time.Duration
	PauseBetweenAICalls time.Duration

	ContextCharLimit int
	ChatHistoryLimit int
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		AIAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GenModel:            getEnv("GEN_MODEL", "gemini-1.5-flash"),
		Port:                getEnv("PORT", "8080"),
		UploadDir:           getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadMB:         int64(getEnvInt("MAX_UPLOAD_MB", 16)),
		AwsAccessKey:        getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:        getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:           getEnv("AWS_REGION", "us-east-2"),
		ReportBucket:        getEnv("REPORT_BUCKET", ""),
		PauseBetweenFiles:   time.Duration(getEnvInt("PAUSE_BETWEEN_FILES", 10)) * time.Second,
		PauseBetweenAICalls: time.Duration(getEnvInt("PAUSE_BETWEEN_AI_CALLS", 5)) * time.Second,
		ContextCharLimit:    getEnvInt("CONTEXT_CHAR_LIMIT", 15000),
		ChatHistoryLimit:    getEnvInt("CHAT_HISTORY_LIMIT", 10),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.AIAPIKey == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
