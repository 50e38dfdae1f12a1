package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// allEnvVars lists every variable Load reads; they are cleared between tests.
var allEnvVars = []string{
	"PARCELTRACK_CONFIG", "PARCELTRACK_DATABASE_URL", "PARCELTRACK_HTTP_ADDR",
	"PARCELTRACK_GRPC_ADDR", "PARCELTRACK_NATS_URL", "PARCELTRACK_AUTH_TOKEN",
	"PARCELTRACK_SUBJECT", "PARCELTRACK_STREAM", "PARCELTRACK_DURABLE",
	"PARCELTRACK_WORKERS", "PARCELTRACK_STORE_TIMEOUT", "PARCELTRACK_ACK_WAIT",
	"PARCELTRACK_LOG_LEVEL", "PARCELTRACK_LOG_FORMAT",
	"PARCELTRACK_SYNC_INTERVAL", "PARCELTRACK_SYNC_S3_BUCKET", "PARCELTRACK_SYNC_S3_ENDPOINT",
	"PARCELTRACK_SYNC_S3_REGION", "PARCELTRACK_SYNC_S3_KEY", "PARCELTRACK_SYNC_GIT_REPO",
	"PARCELTRACK_SYNC_GIT_FILE", "PARCELTRACK_SYNC_GIT_BRANCH",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantHTTPAddr string
		wantGRPCAddr string
		wantNATSURL  string
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:         "DefaultAddresses",
			env:          map[string]string{"PARCELTRACK_DATABASE_URL": "postgres://localhost/parceltrack"},
			wantHTTPAddr: ":8080",
		},
		{
			name: "CustomAddresses",
			env: map[string]string{
				"PARCELTRACK_DATABASE_URL": "postgres://db:5432/parceltrack",
				"PARCELTRACK_GRPC_ADDR":    ":5050",
				"PARCELTRACK_HTTP_ADDR":    ":3000",
				"PARCELTRACK_NATS_URL":     "nats://localhost:4222",
			},
			wantGRPCAddr: ":5050",
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
		},
		{
			name: "BadWorkers",
			env: map[string]string{
				"PARCELTRACK_DATABASE_URL": "postgres://localhost/parceltrack",
				"PARCELTRACK_WORKERS":      "zero",
			},
			wantErr: true,
		},
		{
			name: "NegativeWorkers",
			env: map[string]string{
				"PARCELTRACK_DATABASE_URL": "postgres://localhost/parceltrack",
				"PARCELTRACK_WORKERS":      "-2",
			},
			wantErr: true,
		},
		{
			name: "BadStoreTimeout",
			env: map[string]string{
				"PARCELTRACK_DATABASE_URL":  "postgres://localhost/parceltrack",
				"PARCELTRACK_STORE_TIMEOUT": "soon",
			},
			wantErr: true,
		},
		{
			name: "ZeroStoreTimeout",
			env: map[string]string{
				"PARCELTRACK_DATABASE_URL":  "postgres://localhost/parceltrack",
				"PARCELTRACK_STORE_TIMEOUT": "0s",
			},
			wantErr: true,
		},
		{
			name: "BadLogFormat",
			env: map[string]string{
				"PARCELTRACK_DATABASE_URL": "postgres://localhost/parceltrack",
				"PARCELTRACK_LOG_FORMAT":   "xml",
			},
			wantErr: true,
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
			if cfg.DatabaseURL != tc.env["PARCELTRACK_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["PARCELTRACK_DATABASE_URL"])
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
		})
	}
}

func TestLoadFeedDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("PARCELTRACK_DATABASE_URL", "postgres://localhost/parceltrack")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Subject != "parceltrack.tracking.changes" {
		t.Errorf("Subject = %q", cfg.Subject)
	}
	if cfg.Stream != "PARCELTRACK" || cfg.Durable != "parcel-item-event" {
		t.Errorf("Stream/Durable = %q/%q", cfg.Stream, cfg.Durable)
	}
	if !cfg.JetStream() {
		t.Error("JetStream() = false, want true by default")
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.StoreTimeout != 10*time.Second {
		t.Errorf("StoreTimeout = %v, want 10s", cfg.StoreTimeout)
	}
	if cfg.AckWait != 30*time.Second {
		t.Errorf("AckWait = %v, want 30s", cfg.AckWait)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("LogLevel/LogFormat = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadCoreNATS(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("PARCELTRACK_DATABASE_URL", "postgres://localhost/parceltrack")
	t.Setenv("PARCELTRACK_STREAM", "none")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.JetStream() {
		t.Error("JetStream() = true, want false for stream \"none\"")
	}
}

func TestLoadSyncDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("PARCELTRACK_DATABASE_URL", "postgres://localhost/parceltrack")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("SyncInterval = %v, want 0 (disabled)", cfg.SyncInterval)
	}
	if cfg.SyncS3Region != "us-east-1" {
		t.Errorf("SyncS3Region = %q, want %q", cfg.SyncS3Region, "us-east-1")
	}
	if cfg.SyncS3Key != "parceltrack/parcel_item_event.jsonl" {
		t.Errorf("SyncS3Key = %q", cfg.SyncS3Key)
	}
	if cfg.SyncGitFile != "parcel_item_event.jsonl" {
		t.Errorf("SyncGitFile = %q", cfg.SyncGitFile)
	}
	if cfg.SyncGitBranch != "main" {
		t.Errorf("SyncGitBranch = %q, want %q", cfg.SyncGitBranch, "main")
	}
}

func TestLoadSyncCustom(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("PARCELTRACK_DATABASE_URL", "postgres://localhost/parceltrack")
	t.Setenv("PARCELTRACK_SYNC_INTERVAL", "10m")
	t.Setenv("PARCELTRACK_SYNC_S3_BUCKET", "my-bucket")
	t.Setenv("PARCELTRACK_SYNC_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("PARCELTRACK_SYNC_GIT_REPO", "/tmp/repo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SyncInterval != 10*time.Minute {
		t.Errorf("SyncInterval = %v, want 10m", cfg.SyncInterval)
	}
	if cfg.SyncS3Bucket != "my-bucket" {
		t.Errorf("SyncS3Bucket = %q", cfg.SyncS3Bucket)
	}
	if cfg.SyncS3Endpoint != "http://minio:9000" {
		t.Errorf("SyncS3Endpoint = %q", cfg.SyncS3Endpoint)
	}
	if cfg.SyncGitRepo != "/tmp/repo" {
		t.Errorf("SyncGitRepo = %q", cfg.SyncGitRepo)
	}
}

func TestLoadSyncInvalidInterval(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("PARCELTRACK_DATABASE_URL", "postgres://localhost/parceltrack")
	t.Setenv("PARCELTRACK_SYNC_INTERVAL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid PARCELTRACK_SYNC_INTERVAL")
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parceltrack.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("PARCELTRACK_CONFIG", writeConfigFile(t, `
database_url = "postgres://file/parceltrack"
http_addr = ":9000"

[feed]
subject = "tracking.changes"
workers = 3
store_timeout = "2s"

[log]
format = "json"

[sync]
interval = "5m"
s3_bucket = "snapshots"
`))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://file/parceltrack" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":9000" || cfg.Subject != "tracking.changes" {
		t.Errorf("HTTPAddr/Subject = %q/%q", cfg.HTTPAddr, cfg.Subject)
	}
	if cfg.Workers != 3 || cfg.StoreTimeout != 2*time.Second {
		t.Errorf("Workers/StoreTimeout = %d/%v", cfg.Workers, cfg.StoreTimeout)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
	if cfg.SyncInterval != 5*time.Minute || cfg.SyncS3Bucket != "snapshots" {
		t.Errorf("SyncInterval/SyncS3Bucket = %v/%q", cfg.SyncInterval, cfg.SyncS3Bucket)
	}
	// Untouched keys keep their defaults.
	if cfg.AckWait != 30*time.Second {
		t.Errorf("AckWait = %v, want 30s", cfg.AckWait)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("PARCELTRACK_CONFIG", writeConfigFile(t, `
database_url = "postgres://file/parceltrack"
[feed]
workers = 3
`))
	t.Setenv("PARCELTRACK_DATABASE_URL", "postgres://env/parceltrack")
	t.Setenv("PARCELTRACK_WORKERS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://env/parceltrack" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.Workers != 12 {
		t.Errorf("Workers = %d, want 12", cfg.Workers)
	}
}

func TestLoadBadFile(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("PARCELTRACK_DATABASE_URL", "postgres://localhost/parceltrack")

	t.Setenv("PARCELTRACK_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}

	t.Setenv("PARCELTRACK_CONFIG", writeConfigFile(t, "database_url = ["))
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed config file")
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
