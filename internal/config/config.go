// Package config loads server settings from RENDEZVOUS_* environment
// variables and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when reading the environment.
const EnvPrefix = "RENDEZVOUS"

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Store       string   // RENDEZVOUS_STORE (default "postgres"; "memory" for development)
	DatabaseURL string   // RENDEZVOUS_DATABASE_URL (required for postgres)
	GRPCAddr    string   // RENDEZVOUS_GRPC_ADDR (default ":9090")
	HTTPAddr    string   // RENDEZVOUS_HTTP_ADDR (default ":8080")
	NATSURL     string   // RENDEZVOUS_NATS_URL (optional, empty = no messages)
	CORSOrigins []string // RENDEZVOUS_CORS_ORIGINS (comma-separated, default "*")
	LogLevel    string   // RENDEZVOUS_LOG_LEVEL (default "info")
	LogFormat   string   // RENDEZVOUS_LOG_FORMAT ("text" or "json", default "text")

	// Sync settings
	SyncInterval   time.Duration // RENDEZVOUS_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // RENDEZVOUS_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // RENDEZVOUS_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // RENDEZVOUS_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // RENDEZVOUS_SYNC_S3_KEY (default "rendezvous/backup.jsonl")
	SyncGitRepo    string        // RENDEZVOUS_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // RENDEZVOUS_SYNC_GIT_FILE (default "rendezvous.jsonl")
	SyncGitBranch  string        // RENDEZVOUS_SYNC_GIT_BRANCH (default "main")
	WebDAVURL      string        // RENDEZVOUS_SYNC_WEBDAV_URL (enables WebDAV when set)
	WebDAVUser     string        // RENDEZVOUS_SYNC_WEBDAV_USER
	WebDAVPassword string        // RENDEZVOUS_SYNC_WEBDAV_PASSWORD
	WebDAVPath     string        // RENDEZVOUS_SYNC_WEBDAV_PATH (default "rendezvous.ics")
}

var defaults = map[string]string{
	"store":            StorePostgres,
	"grpc_addr":        ":9090",
	"http_addr":        ":8080",
	"cors_origins":     "*",
	"log_level":        "info",
	"log_format":       "text",
	"sync_interval":    "3m",
	"sync_s3_region":   "us-east-1",
	"sync_s3_key":      "rendezvous/backup.jsonl",
	"sync_git_file":    "rendezvous.jsonl",
	"sync_git_branch":  "main",
	"sync_webdav_path": "rendezvous.ics",
}

// Load reads the configuration. When RENDEZVOUS_CONFIG names a file it is
// read first; environment variables override it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%s_CONFIG: %w", EnvPrefix, err)
		}
	}

	c := &Config{
		Store:          strings.ToLower(v.GetString("store")),
		DatabaseURL:    v.GetString("database_url"),
		GRPCAddr:       v.GetString("grpc_addr"),
		HTTPAddr:       v.GetString("http_addr"),
		NATSURL:        v.GetString("nats_url"),
		CORSOrigins:    splitList(v.GetString("cors_origins")),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		SyncS3Bucket:   v.GetString("sync_s3_bucket"),
		SyncS3Endpoint: v.GetString("sync_s3_endpoint"),
		SyncS3Region:   v.GetString("sync_s3_region"),
		SyncS3Key:      v.GetString("sync_s3_key"),
		SyncGitRepo:    v.GetString("sync_git_repo"),
		SyncGitFile:    v.GetString("sync_git_file"),
		SyncGitBranch:  v.GetString("sync_git_branch"),
		WebDAVURL:      v.GetString("sync_webdav_url"),
		WebDAVUser:     v.GetString("sync_webdav_user"),
		WebDAVPassword: v.GetString("sync_webdav_password"),
		WebDAVPath:     v.GetString("sync_webdav_path"),
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("%s_DATABASE_URL is required", EnvPrefix)
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("%s_STORE: unknown store %q", EnvPrefix, c.Store)
	}

	if s := v.GetString("sync_interval"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%s_SYNC_INTERVAL: %w", EnvPrefix, err)
		}
		c.SyncInterval = d
	}

	return c, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
