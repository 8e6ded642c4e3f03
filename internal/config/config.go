// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Keys are snake_case; nested sections map to TECHRANK_SECTION__KEY env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SeedDefaults creates the default technicians when the store is empty.
	SeedDefaults bool `koanf:"seed_defaults"`

	// DedupeSize caps how many idempotency keys are remembered; 0 keeps all.
	DedupeSize int `koanf:"dedupe_size"`

	Store   StoreConfig   `koanf:"store"`
	Archive ArchiveConfig `koanf:"archive"`
	Ingest  IngestConfig  `koanf:"ingest"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	// Driver is memory, sqlite or postgres.
	Driver string `koanf:"driver"`
	// DSN is the sqlite path or postgres connection string.
	DSN string `koanf:"dsn"`
	// LogSQL enables gorm statement logging.
	LogSQL bool `koanf:"log_sql"`
}

// ArchiveConfig locates the S3 bucket exports are archived to. An empty
// bucket disables archiving.
type ArchiveConfig struct {
	Bucket          string `koanf:"bucket"`
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	Prefix          string `koanf:"prefix"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
}

// Enabled reports whether a bucket is configured.
func (a ArchiveConfig) Enabled() bool { return a.Bucket != "" }

// IngestConfig locates the Kafka topic service records are consumed from.
// No brokers disables ingest.
type IngestConfig struct {
	// Brokers is a comma separated host:port list.
	Brokers string `koanf:"brokers"`
	Topic   string `koanf:"topic"`
	GroupID string `koanf:"group_id"`
	Workers int    `koanf:"workers"`
}

// BrokerList splits Brokers, dropping blanks.
func (i IngestConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(i.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Enabled reports whether any broker is configured.
func (i IngestConfig) Enabled() bool { return len(i.BrokerList()) > 0 }

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Addr:         ":8080",
		SeedDefaults: true,
		DedupeSize:   50_000,
		Store: StoreConfig{
			Driver: "memory",
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			Prefix: "exports",
		},
		Ingest: IngestConfig{
			Topic:   "service-records",
			GroupID: "techrank",
			Workers: 4,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Store.Driver) {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store.driver %q", ErrInvalidConfig, c.Store.Driver)
	}

	if c.Ingest.Enabled() {
		switch {
		case c.Ingest.Topic == "":
			return fmt.Errorf("%w: ingest.topic is required with brokers", ErrInvalidConfig)
		case c.Ingest.GroupID == "":
			return fmt.Errorf("%w: ingest.group_id is required with brokers", ErrInvalidConfig)
		case c.Ingest.Workers < 1:
			return fmt.Errorf("%w: ingest.workers must be at least 1", ErrInvalidConfig)
		}
	}
	return nil
}
