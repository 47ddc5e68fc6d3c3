package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DB.Provider != ProviderMemory {
		t.Fatalf("expected memory db provider, got %q", cfg.DB.Provider)
	}
	if cfg.Snapshot.Provider != ProviderNone || cfg.PubSub.Provider != ProviderNone {
		t.Fatalf("expected snapshot and pubsub to be disabled by default")
	}
	if !cfg.Source.Consolidated || !cfg.Crawler.SkipExisting {
		t.Fatalf("expected consolidated pages and skip_existing by default")
	}
	if got := cfg.VersionTimeout(); got != 60*time.Second {
		t.Fatalf("expected version timeout 60s, got %v", got)
	}
	if cfg.Source.RequestsPerSecond != 2 || cfg.Headless.Always || cfg.Tracing.Enabled {
		t.Fatalf("unexpected throttle, headless or tracing defaults: %+v %+v %+v", cfg.Source, cfg.Headless, cfg.Tracing)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
source:
  base_url: https://mirror.example.com
  user_agent: catalog-test
  timeout_seconds: 45
  version_timeout_seconds: 90
  consolidated: false
  document_text_cap: 500
crawler:
  concurrency: 6
  queue_depth: 128
  group_parallelism: 8
  skip_existing: false
headless:
  enabled: true
  max_parallel: 2
  nav_timeout_seconds: 30
db:
  provider: postgres
  dsn: postgres://localhost/catalog
  max_conns: 16
snapshot:
  provider: gcs
  gcs_bucket: bucket
  prefix: pages
pubsub:
  provider: pubsub
  project_id: proj
  topic_name: articles
logging:
  development: false
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Source.BaseURL != "https://mirror.example.com" || cfg.Source.Consolidated {
		t.Fatalf("expected source overrides to apply: %+v", cfg.Source)
	}
	if cfg.Crawler.Concurrency != 6 || cfg.Crawler.GroupParallelism != 8 || cfg.Crawler.SkipExisting {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.DB.Provider != ProviderPostgres || cfg.DB.MaxConns != 16 {
		t.Fatalf("expected postgres db config: %+v", cfg.DB)
	}
	if cfg.Snapshot.GCSBucket != "bucket" || cfg.PubSub.ProjectID != "proj" {
		t.Fatalf("expected snapshot and pubsub overrides")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Development {
		t.Fatalf("expected logging overrides: %+v", cfg.Logging)
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
	if got := cfg.NavTimeout(); got != 30*time.Second {
		t.Fatalf("expected nav timeout 30s, got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Port: 8080},
		Source:   SourceConfig{TimeoutSeconds: 10, VersionTimeoutSeconds: 10},
		Crawler:  CrawlerConfig{Concurrency: 1, GroupParallelism: 1},
		DB:       DBConfig{Provider: ProviderMemory},
		Snapshot: SnapshotConfig{Provider: ProviderNone},
		PubSub:   PubSubConfig{Provider: ProviderNone},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }, "crawler.concurrency"},
		{"invalid group parallelism", func(c *Config) { c.Crawler.GroupParallelism = 0 }, "crawler.group_parallelism"},
		{"invalid timeout", func(c *Config) { c.Source.TimeoutSeconds = 0 }, "source.timeout_seconds"},
		{"invalid version timeout", func(c *Config) { c.Source.VersionTimeoutSeconds = 0 }, "source.version_timeout_seconds"},
		{"headless missing max parallel", func(c *Config) { c.Headless.Enabled = true }, "headless.max_parallel"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"postgres missing dsn", func(c *Config) { c.DB.Provider = ProviderPostgres }, "db.dsn"},
		{"unknown db provider", func(c *Config) { c.DB.Provider = "sqlite" }, "db.provider"},
		{"gcs missing bucket", func(c *Config) { c.Snapshot.Provider = ProviderGCS }, "snapshot.gcs_bucket"},
		{"pubsub missing project", func(c *Config) { c.PubSub.Provider = ProviderPubSub }, "pubsub.project_id"},
		{"negative rate", func(c *Config) { c.Source.RequestsPerSecond = -1 }, "source.requests_per_second"},
		{"sample ratio too large", func(c *Config) { c.Tracing.SampleRatio = 2 }, "tracing.sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
