package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL string // PARCELTRACK_DATABASE_URL (required)
	HTTPAddr    string // PARCELTRACK_HTTP_ADDR (default ":8080")
	GRPCAddr    string // PARCELTRACK_GRPC_ADDR (optional, empty = gRPC disabled)
	NATSURL     string // PARCELTRACK_NATS_URL (optional, empty = no change feed)
	AuthToken   string // PARCELTRACK_AUTH_TOKEN (optional, empty = auth disabled)

	// Change feed settings
	Subject      string        // PARCELTRACK_SUBJECT (default "parceltrack.tracking.changes")
	Stream       string        // PARCELTRACK_STREAM (default "PARCELTRACK"; "none" = core NATS)
	Durable      string        // PARCELTRACK_DURABLE (default "parcel-item-event")
	Workers      int           // PARCELTRACK_WORKERS (default 8)
	StoreTimeout time.Duration // PARCELTRACK_STORE_TIMEOUT (default 10s)
	AckWait      time.Duration // PARCELTRACK_ACK_WAIT (default 30s)

	// Logging
	LogLevel  string // PARCELTRACK_LOG_LEVEL (default "info")
	LogFormat string // PARCELTRACK_LOG_FORMAT (default "text"; or "json")

	// Sync settings
	SyncInterval   time.Duration // PARCELTRACK_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // PARCELTRACK_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // PARCELTRACK_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // PARCELTRACK_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // PARCELTRACK_SYNC_S3_KEY (default "parceltrack/parcel_item_event.jsonl")
	SyncGitRepo    string        // PARCELTRACK_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // PARCELTRACK_SYNC_GIT_FILE (default "parcel_item_event.jsonl")
	SyncGitBranch  string        // PARCELTRACK_SYNC_GIT_BRANCH (default "main")
}

// fileConfig is the TOML file named by PARCELTRACK_CONFIG. Environment
// variables override anything set here.
type fileConfig struct {
	DatabaseURL string `toml:"database_url"`
	HTTPAddr    string `toml:"http_addr"`
	GRPCAddr    string `toml:"grpc_addr"`
	NATSURL     string `toml:"nats_url"`
	AuthToken   string `toml:"auth_token"`

	Feed struct {
		Subject      string `toml:"subject"`
		Stream       string `toml:"stream"`
		Durable      string `toml:"durable"`
		Workers      int    `toml:"workers"`
		StoreTimeout string `toml:"store_timeout"`
		AckWait      string `toml:"ack_wait"`
	} `toml:"feed"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`

	Sync struct {
		Interval   string `toml:"interval"`
		S3Bucket   string `toml:"s3_bucket"`
		S3Endpoint string `toml:"s3_endpoint"`
		S3Region   string `toml:"s3_region"`
		S3Key      string `toml:"s3_key"`
		GitRepo    string `toml:"git_repo"`
		GitFile    string `toml:"git_file"`
		GitBranch  string `toml:"git_branch"`
	} `toml:"sync"`
}

func Load() (*Config, error) {
	var f fileConfig
	if path := os.Getenv("PARCELTRACK_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("PARCELTRACK_CONFIG: %w", err)
		}
	}

	c := &Config{
		DatabaseURL:    envOrDefault("PARCELTRACK_DATABASE_URL", f.DatabaseURL),
		HTTPAddr:       envOrDefault("PARCELTRACK_HTTP_ADDR", orDefault(f.HTTPAddr, ":8080")),
		GRPCAddr:       envOrDefault("PARCELTRACK_GRPC_ADDR", f.GRPCAddr),
		NATSURL:        envOrDefault("PARCELTRACK_NATS_URL", f.NATSURL),
		AuthToken:      envOrDefault("PARCELTRACK_AUTH_TOKEN", f.AuthToken),
		Subject:        envOrDefault("PARCELTRACK_SUBJECT", orDefault(f.Feed.Subject, "parceltrack.tracking.changes")),
		Stream:         envOrDefault("PARCELTRACK_STREAM", orDefault(f.Feed.Stream, "PARCELTRACK")),
		Durable:        envOrDefault("PARCELTRACK_DURABLE", orDefault(f.Feed.Durable, "parcel-item-event")),
		LogLevel:       envOrDefault("PARCELTRACK_LOG_LEVEL", orDefault(f.Log.Level, "info")),
		LogFormat:      envOrDefault("PARCELTRACK_LOG_FORMAT", orDefault(f.Log.Format, "text")),
		SyncS3Bucket:   envOrDefault("PARCELTRACK_SYNC_S3_BUCKET", f.Sync.S3Bucket),
		SyncS3Endpoint: envOrDefault("PARCELTRACK_SYNC_S3_ENDPOINT", f.Sync.S3Endpoint),
		SyncS3Region:   envOrDefault("PARCELTRACK_SYNC_S3_REGION", orDefault(f.Sync.S3Region, "us-east-1")),
		SyncS3Key:      envOrDefault("PARCELTRACK_SYNC_S3_KEY", orDefault(f.Sync.S3Key, "parceltrack/parcel_item_event.jsonl")),
		SyncGitRepo:    envOrDefault("PARCELTRACK_SYNC_GIT_REPO", f.Sync.GitRepo),
		SyncGitFile:    envOrDefault("PARCELTRACK_SYNC_GIT_FILE", orDefault(f.Sync.GitFile, "parcel_item_event.jsonl")),
		SyncGitBranch:  envOrDefault("PARCELTRACK_SYNC_GIT_BRANCH", orDefault(f.Sync.GitBranch, "main")),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("PARCELTRACK_DATABASE_URL is required")
	}

	workers := envOrDefault("PARCELTRACK_WORKERS", "")
	switch {
	case workers != "":
		n, err := strconv.Atoi(workers)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("PARCELTRACK_WORKERS: must be a positive integer, got %q", workers)
		}
		c.Workers = n
	case f.Feed.Workers > 0:
		c.Workers = f.Feed.Workers
	default:
		c.Workers = 8
	}

	for _, d := range []struct {
		key      string
		fromFile string
		fallback string
		dst      *time.Duration
	}{
		{"PARCELTRACK_STORE_TIMEOUT", f.Feed.StoreTimeout, "10s", &c.StoreTimeout},
		{"PARCELTRACK_ACK_WAIT", f.Feed.AckWait, "30s", &c.AckWait},
		{"PARCELTRACK_SYNC_INTERVAL", f.Sync.Interval, "0s", &c.SyncInterval},
	} {
		s := envOrDefault(d.key, orDefault(d.fromFile, d.fallback))
		v, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("%s: must not be negative", d.key)
		}
		*d.dst = v
	}
	if c.StoreTimeout == 0 {
		return nil, fmt.Errorf("PARCELTRACK_STORE_TIMEOUT: must be positive")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("PARCELTRACK_LOG_FORMAT: unknown format %q", c.LogFormat)
	}

	return c, nil
}

// JetStream reports whether the change feed uses durable JetStream delivery.
func (c *Config) JetStream() bool {
	return c.Stream != "" && c.Stream != "none" && c.Durable != ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
