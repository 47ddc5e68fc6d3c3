// Package config loads and validates catalog configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted by the pluggable sections.
const (
	ProviderNone     = "none"
	ProviderMemory   = "memory"
	ProviderPostgres = "postgres"
	ProviderLocal    = "local"
	ProviderGCS      = "gcs"
	ProviderPubSub   = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Source   SourceConfig   `mapstructure:"source"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	DB       DBConfig       `mapstructure:"db"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SourceConfig describes the legal database and how pages are fetched from
// it.
type SourceConfig struct {
	BaseURL               string `mapstructure:"base_url"`
	UserAgent             string `mapstructure:"user_agent"`
	TimeoutSeconds        int    `mapstructure:"timeout_seconds"`
	VersionTimeoutSeconds int    `mapstructure:"version_timeout_seconds"`
	Consolidated          bool   `mapstructure:"consolidated"`
	DocumentTextCap       int    `mapstructure:"document_text_cap"`
	MaxAttachments        int    `mapstructure:"max_attachments"`
	// RequestsPerSecond caps fetches per host across all workers; zero
	// disables the throttle.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// CrawlerConfig governs the worker pool and the per-document pipeline.
type CrawlerConfig struct {
	Concurrency      int  `mapstructure:"concurrency"`
	QueueDepth       int  `mapstructure:"queue_depth"`
	GroupParallelism int  `mapstructure:"group_parallelism"`
	SkipExisting     bool `mapstructure:"skip_existing"`
}

// HeadlessConfig configures the headless renderer used for root pages.
// Unless Always is set the renderer is only used when a plain fetch returns
// an unrendered shell.
type HeadlessConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Always              bool   `mapstructure:"always"`
	BodyLengthThreshold int    `mapstructure:"body_length_threshold"`
	MaxParallel         int    `mapstructure:"max_parallel"`
	NavTimeoutSec       int    `mapstructure:"nav_timeout_seconds"`
	WaitSelector        string `mapstructure:"wait_selector"`
}

// DBConfig selects and configures the article store.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// SnapshotConfig selects where raw root pages are archived.
type SnapshotConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for article notifications.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TracingConfig controls the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("source.base_url", "https://www.normattiva.it")
	v.SetDefault("source.user_agent", "normattiva-catalog/0.1")
	v.SetDefault("source.timeout_seconds", 30)
	v.SetDefault("source.version_timeout_seconds", 60)
	v.SetDefault("source.consolidated", true)
	v.SetDefault("source.document_text_cap", 10000)
	v.SetDefault("source.max_attachments", 20)
	v.SetDefault("source.requests_per_second", 2.0)
	v.SetDefault("source.burst", 2)
	v.SetDefault("crawler.concurrency", 2)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.group_parallelism", 4)
	v.SetDefault("crawler.skip_existing", true)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.always", false)
	v.SetDefault("headless.body_length_threshold", 2048)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.wait_selector", "body")
	v.SetDefault("db.provider", ProviderMemory)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("snapshot.provider", ProviderNone)
	v.SetDefault("snapshot.base_dir", "data/snapshots")
	v.SetDefault("snapshot.prefix", "raw")
	v.SetDefault("pubsub.provider", ProviderNone)
	v.SetDefault("pubsub.topic_name", "articles.ready")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "normattiva-catalog")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.QueueDepth < 0 {
		return fmt.Errorf("crawler.queue_depth must be >= 0")
	}
	if c.Crawler.GroupParallelism <= 0 {
		return fmt.Errorf("crawler.group_parallelism must be > 0")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be > 0")
	}
	if c.Source.VersionTimeoutSeconds <= 0 {
		return fmt.Errorf("source.version_timeout_seconds must be > 0")
	}
	if c.Source.RequestsPerSecond < 0 {
		return fmt.Errorf("source.requests_per_second must be >= 0")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.DB.Provider {
	case ProviderMemory:
	case ProviderPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("db.provider %q is not supported", c.DB.Provider)
	}
	switch c.Snapshot.Provider {
	case ProviderNone, ProviderMemory:
	case ProviderLocal:
		if c.Snapshot.BaseDir == "" {
			return fmt.Errorf("snapshot.base_dir must be set for the local provider")
		}
	case ProviderGCS:
		if c.Snapshot.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("snapshot.provider %q is not supported", c.Snapshot.Provider)
	}
	switch c.PubSub.Provider {
	case ProviderNone, ProviderMemory:
	case ProviderPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set for the pubsub provider")
		}
	default:
		return fmt.Errorf("pubsub.provider %q is not supported", c.PubSub.Provider)
	}
	return nil
}

// FetchTimeout is the budget of a single page fetch.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// VersionTimeout is the budget of extracting one version, attachments
// included.
func (c Config) VersionTimeout() time.Duration {
	return time.Duration(c.Source.VersionTimeoutSeconds) * time.Second
}

// RequestTimeout is the budget of one API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// NavTimeout is the headless navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
