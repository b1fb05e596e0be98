package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv blanks every variable Load might read so the host
// environment cannot leak into a case.
func isolateEnv(t *testing.T) {
	t.Helper()
	keys := []string{"config", "database_url", "nats_url", "sync_interval",
		"sync_s3_bucket", "sync_s3_endpoint", "sync_git_repo",
		"sync_webdav_url", "sync_webdav_user", "sync_webdav_password"}
	for k := range defaults {
		keys = append(keys, k)
	}
	for _, k := range keys {
		t.Setenv(EnvPrefix+"_"+strings.ToUpper(k), "")
	}
}

func TestLoad(t *testing.T) {
	const dsn = "postgres://db:5432/rendezvous"

	for _, tc := range []struct {
		name    string
		env     map[string]string
		wantErr string
		check   func(t *testing.T, c *Config)
	}{
		{
			name:    "postgres needs a database url",
			wantErr: "RENDEZVOUS_DATABASE_URL is required",
		},
		{
			name:    "unknown store",
			env:     map[string]string{"RENDEZVOUS_STORE": "mongo"},
			wantErr: `unknown store "mongo"`,
		},
		{
			name: "memory store is case-insensitive and needs no database",
			env:  map[string]string{"RENDEZVOUS_STORE": "Memory"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, StoreMemory, c.Store)
				assert.Empty(t, c.DatabaseURL)
			},
		},
		{
			name: "defaults",
			env:  map[string]string{"RENDEZVOUS_DATABASE_URL": dsn},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, &Config{
					Store:         StorePostgres,
					DatabaseURL:   dsn,
					GRPCAddr:      ":9090",
					HTTPAddr:      ":8080",
					CORSOrigins:   []string{"*"},
					LogLevel:      "info",
					LogFormat:     "text",
					SyncInterval:  3 * time.Minute,
					SyncS3Region:  "us-east-1",
					SyncS3Key:     "rendezvous/backup.jsonl",
					SyncGitFile:   "rendezvous.jsonl",
					SyncGitBranch: "main",
					WebDAVPath:    "rendezvous.ics",
				}, c)
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"RENDEZVOUS_DATABASE_URL":         dsn,
				"RENDEZVOUS_GRPC_ADDR":            ":5050",
				"RENDEZVOUS_HTTP_ADDR":            ":3000",
				"RENDEZVOUS_NATS_URL":             "nats://localhost:4222",
				"RENDEZVOUS_CORS_ORIGINS":         "https://a.example.com, ,https://b.example.com",
				"RENDEZVOUS_LOG_FORMAT":           "json",
				"RENDEZVOUS_SYNC_INTERVAL":        "10m",
				"RENDEZVOUS_SYNC_S3_BUCKET":       "cal-backups",
				"RENDEZVOUS_SYNC_S3_ENDPOINT":     "http://minio:9000",
				"RENDEZVOUS_SYNC_GIT_REPO":        "/srv/calendar",
				"RENDEZVOUS_SYNC_GIT_BRANCH":      "backup",
				"RENDEZVOUS_SYNC_WEBDAV_URL":      "https://dav.example.com/cal/",
				"RENDEZVOUS_SYNC_WEBDAV_USER":     "sched",
				"RENDEZVOUS_SYNC_WEBDAV_PASSWORD": "hunter2",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, ":5050", c.GRPCAddr)
				assert.Equal(t, ":3000", c.HTTPAddr)
				assert.Equal(t, "nats://localhost:4222", c.NATSURL)
				assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, c.CORSOrigins)
				assert.Equal(t, "json", c.LogFormat)
				assert.Equal(t, 10*time.Minute, c.SyncInterval)
				assert.Equal(t, "cal-backups", c.SyncS3Bucket)
				assert.Equal(t, "http://minio:9000", c.SyncS3Endpoint)
				assert.Equal(t, "/srv/calendar", c.SyncGitRepo)
				assert.Equal(t, "backup", c.SyncGitBranch)
				assert.Equal(t, "rendezvous.jsonl", c.SyncGitFile)
				assert.Equal(t, "https://dav.example.com/cal/", c.WebDAVURL)
				assert.Equal(t, "sched", c.WebDAVUser)
				assert.Equal(t, "hunter2", c.WebDAVPassword)
			},
		},
		{
			name: "zero interval disables sync",
			env:  map[string]string{"RENDEZVOUS_STORE": "memory", "RENDEZVOUS_SYNC_INTERVAL": "0s"},
			check: func(t *testing.T, c *Config) {
				assert.Zero(t, c.SyncInterval)
			},
		},
		{
			name:    "bad interval",
			env:     map[string]string{"RENDEZVOUS_STORE": "memory", "RENDEZVOUS_SYNC_INTERVAL": "soon"},
			wantErr: "RENDEZVOUS_SYNC_INTERVAL",
		},
		{
			name:    "missing config file",
			env:     map[string]string{"RENDEZVOUS_CONFIG": "/nonexistent/rendezvous.yaml"},
			wantErr: "RENDEZVOUS_CONFIG",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			c, err := Load()
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, c)
		})
	}
}

func TestLoad_FileUnderEnv(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "rendezvous.yaml")
	data := "database_url: postgres://file/rendezvous\nhttp_addr: \":7000\"\nsync_interval: 1m\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("RENDEZVOUS_CONFIG", path)
	t.Setenv("RENDEZVOUS_HTTP_ADDR", ":7100")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/rendezvous", c.DatabaseURL, "read from file")
	assert.Equal(t, ":7100", c.HTTPAddr, "env wins over file")
	assert.Equal(t, time.Minute, c.SyncInterval)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , ,"))
	assert.Equal(t, []string{"a", "b"}, splitList(" a,b ,"))
}
