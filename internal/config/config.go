package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// DotEnvFile is loaded by Load when present. Variables already set in the
// environment win over the file.
var DotEnvFile = ".env"

type Config struct {
	DatabaseURL string // TASKGRAPH_DATABASE_URL (required)
	GRPCAddr    string // TASKGRAPH_GRPC_ADDR (default ":9090")
	HTTPAddr    string // TASKGRAPH_HTTP_ADDR (default ":8080")
	NATSURL     string // TASKGRAPH_NATS_URL (optional, empty = no events)
	AuthToken   string // TASKGRAPH_AUTH_TOKEN (optional, empty = auth disabled)
	Env         string // TASKGRAPH_ENV (default "production")
	SentryDSN   string // TASKGRAPH_SENTRY_DSN (optional, empty = no error reporting)

	// Export settings
	SyncInterval   time.Duration // TASKGRAPH_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // TASKGRAPH_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // TASKGRAPH_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // TASKGRAPH_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // TASKGRAPH_SYNC_S3_KEY (default "taskgraph/export.jsonl")
	SyncGitRepo    string        // TASKGRAPH_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // TASKGRAPH_SYNC_GIT_FILE (default "taskgraph.jsonl")
	SyncGitBranch  string        // TASKGRAPH_SYNC_GIT_BRANCH (default "main")
}

// IsDevelopment reports whether internal error detail may be shown to callers.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func Load() (*Config, error) {
	if _, err := os.Stat(DotEnvFile); err == nil {
		if err := godotenv.Load(DotEnvFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", DotEnvFile, err)
		}
	}

	c := &Config{
		DatabaseURL:    os.Getenv("TASKGRAPH_DATABASE_URL"),
		GRPCAddr:       envOrDefault("TASKGRAPH_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("TASKGRAPH_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("TASKGRAPH_NATS_URL"),
		AuthToken:      os.Getenv("TASKGRAPH_AUTH_TOKEN"),
		Env:            envOrDefault("TASKGRAPH_ENV", "production"),
		SentryDSN:      os.Getenv("TASKGRAPH_SENTRY_DSN"),
		SyncS3Bucket:   os.Getenv("TASKGRAPH_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("TASKGRAPH_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("TASKGRAPH_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("TASKGRAPH_SYNC_S3_KEY", "taskgraph/export.jsonl"),
		SyncGitRepo:    os.Getenv("TASKGRAPH_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("TASKGRAPH_SYNC_GIT_FILE", "taskgraph.jsonl"),
		SyncGitBranch:  envOrDefault("TASKGRAPH_SYNC_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("TASKGRAPH_DATABASE_URL is required")
	}

	d, err := time.ParseDuration(envOrDefault("TASKGRAPH_SYNC_INTERVAL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("TASKGRAPH_SYNC_INTERVAL: %w", err)
	}
	if d < 0 {
		return nil, fmt.Errorf("TASKGRAPH_SYNC_INTERVAL: must not be negative")
	}
	c.SyncInterval = d

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
