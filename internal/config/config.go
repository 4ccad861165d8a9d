// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	DB        DBConfig        `mapstructure:"db"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the HTTP trigger/status API.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs frontier behavior.
type CrawlerConfig struct {
	Workers      int `mapstructure:"workers"`
	MaxPages     int `mapstructure:"max_pages"`
	FlushEvery   int `mapstructure:"flush_every"`
	MinDelayMs   int `mapstructure:"min_delay_ms"`
	MaxDelayMs   int `mapstructure:"max_delay_ms"`
	ArchivePages bool `mapstructure:"archive_pages"`
}

// FetcherConfig selects and tunes the fetch strategy.
type FetcherConfig struct {
	Strategy       string `mapstructure:"strategy"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the browser-rendering fetch strategy.
type HeadlessConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// ArchiveConfig sets where raw HTML snapshots go.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// QueueConfig selects the job queue provider.
type QueueConfig struct {
	Provider       string `mapstructure:"provider"`
	ProjectID      string `mapstructure:"project_id"`
	TopicID        string `mapstructure:"topic_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
	Depth          int    `mapstructure:"depth"`
}

// RetrievalConfig tunes the relevance engine.
type RetrievalConfig struct {
	CacheTTLHours int `mapstructure:"cache_ttl_hours"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PORTAL")
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
	v.SetDefault("crawler.workers", 2)
	v.SetDefault("crawler.max_pages", 50)
	v.SetDefault("crawler.flush_every", 5)
	v.SetDefault("crawler.min_delay_ms", 1000)
	v.SetDefault("crawler.max_delay_ms", 3000)
	v.SetDefault("crawler.archive_pages", false)
	v.SetDefault("fetcher.strategy", "simple")
	v.SetDefault("fetcher.timeout_seconds", 20)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("archive.provider", "memory")
	v.SetDefault("queue.provider", "memory")
	v.SetDefault("queue.depth", 64)
	v.SetDefault("retrieval.cache_ttl_hours", 24)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.MinDelayMs > c.Crawler.MaxDelayMs {
		return fmt.Errorf("crawler.min_delay_ms must be <= crawler.max_delay_ms")
	}
	switch c.Fetcher.Strategy {
	case "simple", "headless":
	default:
		return fmt.Errorf("fetcher.strategy must be simple or headless")
	}
	switch c.Queue.Provider {
	case "memory":
	case "pubsub":
		if c.Queue.ProjectID == "" || c.Queue.TopicID == "" {
			return fmt.Errorf("queue.project_id and queue.topic_id are required for pubsub")
		}
	default:
		return fmt.Errorf("queue.provider must be memory or pubsub")
	}
	switch c.Archive.Provider {
	case "memory":
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir is required for local archive")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for gcs archive")
		}
	default:
		return fmt.Errorf("archive.provider must be memory, local, or gcs")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout returns the per-fetch timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// CacheTTL returns the page cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Retrieval.CacheTTLHours) * time.Hour
}
