// Package config loads the daemon configuration consumed at graph
// construction time: listener addresses, index TTL and sweep settings,
// forwarding, sinks, and the dashboard. Misconfiguration is fatal at
// load time, never at event-processing time.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	TCP       ListenerConfig  `yaml:"tcp"`
	UDP       ListenerConfig  `yaml:"udp"`
	Redis     RedisConfig     `yaml:"redis"`
	Index     IndexConfig     `yaml:"index"`
	Forward   ForwardConfig   `yaml:"forward"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Sinks     SinksConfig     `yaml:"sinks"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ListenerConfig controls one ingestion listener.
type ListenerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// RedisConfig controls the Redis list source.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// IndexConfig controls the index and its expiry reaper.
type IndexConfig struct {
	DefaultTTL     time.Duration `yaml:"default_ttl"`
	ExpiryInterval time.Duration `yaml:"expiry_interval"`
}

// ForwardConfig controls forwarding to a peer instance.
type ForwardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	QueueSize int    `yaml:"queue_size"`
}

// DashboardConfig controls the query/metrics HTTP server.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SinksConfig controls the built-in outbound sinks.
type SinksConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
	Archive ArchiveConfig `yaml:"archive"`
}

// WebhookConfig controls the HTTP webhook sink.
type WebhookConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// ArchiveConfig controls the SQLite event archive sink.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given: a TCP
// listener on :5555, a UDP listener on :5555, 60s default TTL, 10s
// sweep interval, dashboard off.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.TCP.Enabled = true
	cfg.UDP.Enabled = true
	return cfg
}

// Load reads and parses a YAML config file, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TCP.Addr == "" {
		c.TCP.Addr = ":5555"
	}
	if c.UDP.Addr == "" {
		c.UDP.Addr = ":5555"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.BlockTimeout <= 0 {
		c.Redis.BlockTimeout = 5 * time.Second
	}
	if c.Index.DefaultTTL == 0 {
		c.Index.DefaultTTL = 60 * time.Second
	}
	if c.Index.ExpiryInterval == 0 {
		c.Index.ExpiryInterval = 10 * time.Second
	}
	if c.Forward.QueueSize <= 0 {
		c.Forward.QueueSize = 1024
	}
	if c.Dashboard.Addr == "" {
		c.Dashboard.Addr = ":5556"
	}
	if c.Sinks.Webhook.Timeout <= 0 {
		c.Sinks.Webhook.Timeout = 5 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configurations that would corrupt the graph at
// runtime: negative TTLs and intervals, enabled components without the
// settings they need.
func (c *Config) Validate() error {
	if c.Index.DefaultTTL < 0 {
		return fmt.Errorf("config: index.default_ttl cannot be negative")
	}
	if c.Index.ExpiryInterval < 0 {
		return fmt.Errorf("config: index.expiry_interval cannot be negative")
	}
	if c.Forward.Enabled && c.Forward.Addr == "" {
		return fmt.Errorf("config: forward.addr is required when forwarding is enabled")
	}
	if c.Redis.Enabled && c.Redis.Key == "" {
		return fmt.Errorf("config: redis.key is required when the redis source is enabled")
	}
	if c.Sinks.Webhook.Enabled && c.Sinks.Webhook.URL == "" {
		return fmt.Errorf("config: sinks.webhook.url is required when the webhook sink is enabled")
	}
	if c.Sinks.Archive.Enabled && c.Sinks.Archive.Path == "" {
		return fmt.Errorf("config: sinks.archive.path is required when the archive sink is enabled")
	}
	return nil
}
