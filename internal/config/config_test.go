package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// allEnvVars lists every variable Load reads; each test clears them first.
var allEnvVars = []string{
	"TASKGRAPH_DATABASE_URL", "TASKGRAPH_GRPC_ADDR", "TASKGRAPH_HTTP_ADDR",
	"TASKGRAPH_NATS_URL", "TASKGRAPH_AUTH_TOKEN", "TASKGRAPH_ENV", "TASKGRAPH_SENTRY_DSN",
	"TASKGRAPH_SYNC_INTERVAL", "TASKGRAPH_SYNC_S3_BUCKET", "TASKGRAPH_SYNC_S3_ENDPOINT",
	"TASKGRAPH_SYNC_S3_REGION", "TASKGRAPH_SYNC_S3_KEY", "TASKGRAPH_SYNC_GIT_REPO",
	"TASKGRAPH_SYNC_GIT_FILE", "TASKGRAPH_SYNC_GIT_BRANCH",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
	orig := DotEnvFile
	DotEnvFile = filepath.Join(t.TempDir(), "missing.env")
	t.Cleanup(func() { DotEnvFile = orig })
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantGRPCAddr string
		wantHTTPAddr string
		wantNATSURL  string
		wantDev      bool
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:         "DefaultAddresses",
			env:          map[string]string{"TASKGRAPH_DATABASE_URL": "postgres://localhost/taskgraph"},
			wantGRPCAddr: ":9090",
			wantHTTPAddr: ":8080",
		},
		{
			name: "CustomAddresses",
			env: map[string]string{
				"TASKGRAPH_DATABASE_URL": "postgres://db:5432/taskgraph",
				"TASKGRAPH_GRPC_ADDR":    ":5050",
				"TASKGRAPH_HTTP_ADDR":    ":3000",
				"TASKGRAPH_NATS_URL":     "nats://localhost:4222",
				"TASKGRAPH_ENV":          "development",
			},
			wantGRPCAddr: ":5050",
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
			wantDev:      true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["TASKGRAPH_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["TASKGRAPH_DATABASE_URL"])
			}
			if cfg.GRPCAddr != tc.wantGRPCAddr {
				t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, tc.wantGRPCAddr)
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
			if cfg.IsDevelopment() != tc.wantDev {
				t.Errorf("IsDevelopment() = %v, want %v", cfg.IsDevelopment(), tc.wantDev)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("TASKGRAPH_DATABASE_URL", "postgres://localhost/taskgraph")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "production" {
		t.Errorf("Env = %q, want production", cfg.Env)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("SyncInterval = %v, want 0 (disabled)", cfg.SyncInterval)
	}
	if cfg.SyncS3Region != "us-east-1" {
		t.Errorf("SyncS3Region = %q, want %q", cfg.SyncS3Region, "us-east-1")
	}
	if cfg.SyncS3Key != "taskgraph/export.jsonl" {
		t.Errorf("SyncS3Key = %q, want %q", cfg.SyncS3Key, "taskgraph/export.jsonl")
	}
	if cfg.SyncGitFile != "taskgraph.jsonl" {
		t.Errorf("SyncGitFile = %q, want %q", cfg.SyncGitFile, "taskgraph.jsonl")
	}
	if cfg.SyncGitBranch != "main" {
		t.Errorf("SyncGitBranch = %q, want %q", cfg.SyncGitBranch, "main")
	}
}

func TestLoadSyncCustom(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("TASKGRAPH_DATABASE_URL", "postgres://localhost/taskgraph")
	t.Setenv("TASKGRAPH_SYNC_INTERVAL", "10m")
	t.Setenv("TASKGRAPH_SYNC_S3_BUCKET", "my-bucket")
	t.Setenv("TASKGRAPH_SYNC_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("TASKGRAPH_SYNC_GIT_REPO", "/tmp/repo")
	t.Setenv("TASKGRAPH_SYNC_GIT_BRANCH", "backup")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SyncInterval != 10*time.Minute {
		t.Errorf("SyncInterval = %v, want 10m", cfg.SyncInterval)
	}
	if cfg.SyncS3Bucket != "my-bucket" || cfg.SyncS3Endpoint != "http://minio:9000" {
		t.Errorf("S3 = %q %q", cfg.SyncS3Bucket, cfg.SyncS3Endpoint)
	}
	if cfg.SyncGitRepo != "/tmp/repo" || cfg.SyncGitBranch != "backup" {
		t.Errorf("git = %q %q", cfg.SyncGitRepo, cfg.SyncGitBranch)
	}
}

func TestLoadSyncInvalidInterval(t *testing.T) {
	for _, v := range []string{"not-a-duration", "-5m"} {
		t.Run(v, func(t *testing.T) {
			clearAllEnv(t)
			t.Setenv("TASKGRAPH_DATABASE_URL", "postgres://localhost/taskgraph")
			t.Setenv("TASKGRAPH_SYNC_INTERVAL", v)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for TASKGRAPH_SYNC_INTERVAL=%q", v)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearAllEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "TASKGRAPH_DATABASE_URL=postgres://fromfile/taskgraph\nTASKGRAPH_HTTP_ADDR=:7000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	DotEnvFile = path
	// Unset rather than empty so the file can supply values.
	os.Unsetenv("TASKGRAPH_DATABASE_URL")
	os.Unsetenv("TASKGRAPH_HTTP_ADDR")
	t.Cleanup(func() {
		os.Unsetenv("TASKGRAPH_DATABASE_URL")
		os.Unsetenv("TASKGRAPH_HTTP_ADDR")
	})
	t.Setenv("TASKGRAPH_GRPC_ADDR", ":6000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://fromfile/taskgraph" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Errorf("HTTPAddr = %q, want :7000", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != ":6000" {
		t.Errorf("GRPCAddr = %q, want :6000 from the environment", cfg.GRPCAddr)
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
