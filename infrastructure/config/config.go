// Package config loads the relay's tunable configuration (spec.md §6's
// "Tunable configuration" list) from an optional YAML file overlaid with
// environment variables, following the teacher's internal/config.Load
// layering (env file + getEnv/getIntEnv helpers), with its own
// ParseByteSize helper for size limits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment names the deployment environment, mirroring the teacher's
// internal/config.Environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// Config holds the relay's tunables (spec.md §6), each overridable via
// environment variable and, beneath that, an optional YAML config file.
type Config struct {
	Env Environment

	// Cache timing (spec.md §4.6's upstream-backed cache state machine).
	SnapshotExpiry       time.Duration // project-state TTL
	MissExpiry           time.Duration // negative-cache TTL
	ProjectGracePeriod   time.Duration
	RelayExpiry          time.Duration
	BatchInterval        time.Duration
	BatchSize            int
	HTTPMaxRetryInterval time.Duration
	QueryTimeout         time.Duration

	// Concurrency limits (spec.md §5).
	MaxThreadCount       int
	MaxConcurrentQueries int

	// PII / envelope size limits (spec.md §6).
	MaxEventSize      int64
	MaxAttachmentSize int64
	MaxAttachmentsSize int64
	MaxEnvelopeSize   int64
	MaxSessionCount   int

	// Upstream aorta endpoint.
	UpstreamURL string
	RelayID     string

	// Listener addresses (cmd/relay).
	IngestAddr string
	AdminAddr  string

	// Redis, when quota accounting is shared across instances.
	RedisAddr string

	// Eviction sweep schedule (robfig/cron spec syntax).
	EvictionCron string
}

// Load builds a Config from RELAY_ENV-selected defaults, an optional YAML
// file (RELAY_CONFIG_FILE, default "config/<env>.yaml") and environment
// variable overrides, in that increasing order of precedence — mirroring
// the teacher's internal/config.Load (MARBLE_ENV + godotenv + loadFromEnv).
func Load() (*Config, error) {
	envStr := getEnv("RELAY_ENV", string(Development))
	env := Environment(envStr)
	switch env {
	case Development, Testing, Production:
	default:
		return nil, fmt.Errorf("invalid RELAY_ENV: %s (must be development, testing, or production)", envStr)
	}

	// An optional .env file layers plain environment variables in for local
	// development; missing files are not an error.
	_ = godotenv.Load(fmt.Sprintf("config/%s.env", env))

	cfg := defaults(env)

	// time.Duration fields decode from YAML as plain nanosecond integers
	// (yaml.v3 has no string-duration support); use the env-var overrides
	// below for human-readable "60s"-style values.
	yamlPath := getEnv("RELAY_CONFIG_FILE", fmt.Sprintf("config/%s.yaml", env))
	if data, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", yamlPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", yamlPath, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults(env Environment) *Config {
	return &Config{
		Env:                  env,
		SnapshotExpiry:       60 * time.Second,
		MissExpiry:           60 * time.Second,
		ProjectGracePeriod:   10 * time.Second,
		RelayExpiry:          60 * time.Second,
		BatchInterval:        100 * time.Millisecond,
		BatchSize:            500,
		HTTPMaxRetryInterval: 30 * time.Second,
		QueryTimeout:         30 * time.Second,
		MaxThreadCount:       4,
		MaxConcurrentQueries: 50,
		MaxEventSize:         1 * 1024 * 1024,
		MaxAttachmentSize:    100 * 1024 * 1024,
		MaxAttachmentsSize:   100 * 1024 * 1024,
		MaxEnvelopeSize:      100 * 1024 * 1024,
		MaxSessionCount:      100,
		IngestAddr:           ":3000",
		AdminAddr:            ":3001",
		EvictionCron:         "@every 1m",
	}
}

// applyEnvOverrides overlays environment variables onto a Config already
// populated with defaults and/or YAML values.
func (c *Config) applyEnvOverrides() {
	c.SnapshotExpiry = getDurationEnv("RELAY_SNAPSHOT_EXPIRY", c.SnapshotExpiry)
	c.MissExpiry = getDurationEnv("RELAY_MISS_EXPIRY", c.MissExpiry)
	c.ProjectGracePeriod = getDurationEnv("RELAY_PROJECT_GRACE_PERIOD", c.ProjectGracePeriod)
	c.RelayExpiry = getDurationEnv("RELAY_RELAY_EXPIRY", c.RelayExpiry)
	c.BatchInterval = getDurationEnv("RELAY_BATCH_INTERVAL", c.BatchInterval)
	c.BatchSize = getIntEnv("RELAY_BATCH_SIZE", c.BatchSize)
	c.HTTPMaxRetryInterval = getDurationEnv("RELAY_HTTP_MAX_RETRY_INTERVAL", c.HTTPMaxRetryInterval)
	c.QueryTimeout = getDurationEnv("RELAY_QUERY_TIMEOUT", c.QueryTimeout)

	c.MaxThreadCount = getIntEnv("RELAY_MAX_THREAD_COUNT", c.MaxThreadCount)
	c.MaxConcurrentQueries = getIntEnv("RELAY_MAX_CONCURRENT_QUERIES", c.MaxConcurrentQueries)

	c.MaxEventSize = getByteSizeEnv("RELAY_MAX_EVENT_SIZE", c.MaxEventSize)
	c.MaxAttachmentSize = getByteSizeEnv("RELAY_MAX_ATTACHMENT_SIZE", c.MaxAttachmentSize)
	c.MaxAttachmentsSize = getByteSizeEnv("RELAY_MAX_ATTACHMENTS_SIZE", c.MaxAttachmentsSize)
	c.MaxEnvelopeSize = getByteSizeEnv("RELAY_MAX_ENVELOPE_SIZE", c.MaxEnvelopeSize)
	c.MaxSessionCount = getIntEnv("RELAY_MAX_SESSION_COUNT", c.MaxSessionCount)

	c.UpstreamURL = getEnv("RELAY_UPSTREAM_URL", c.UpstreamURL)
	c.RelayID = getEnv("RELAY_ID", c.RelayID)
	c.IngestAddr = getEnv("RELAY_INGEST_ADDR", c.IngestAddr)
	c.AdminAddr = getEnv("RELAY_ADMIN_ADDR", c.AdminAddr)
	c.RedisAddr = getEnv("RELAY_REDIS_ADDR", c.RedisAddr)
	c.EvictionCron = getEnv("RELAY_EVICTION_CRON", c.EvictionCron)
}

// Validate rejects configurations that cannot run (spec.md §7's
// "misconfiguration" failure kind).
func (c *Config) Validate() error {
	if c.UpstreamURL == "" {
		return fmt.Errorf("RELAY_UPSTREAM_URL is required")
	}
	if c.RelayID == "" {
		return fmt.Errorf("RELAY_ID is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be positive")
	}
	if c.MaxEventSize <= 0 || c.MaxEnvelopeSize <= 0 {
		return fmt.Errorf("size limits must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == Development }
func (c *Config) IsTesting() bool     { return c.Env == Testing }
func (c *Config) IsProduction() bool  { return c.Env == Production }

func getEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getByteSizeEnv parses suffixed sizes like "1MB"/"512KiB" as well as bare
// byte counts, falling back to defaultValue on absence or parse failure.
func getByteSizeEnv(key string, defaultValue int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	parsed, err := ParseByteSize(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// ParseByteSize parses a size string like "1GB", "512MB" into bytes.
// Supported suffixes: B, KB, MB, GB (and KiB/MiB/GiB), case-insensitive.
func ParseByteSize(raw string) (int64, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, fmt.Errorf("empty size")
	}

	suffixes := []struct {
		suffix     string
		multiplier int64
	}{
		{"gib", 1024 * 1024 * 1024},
		{"gb", 1024 * 1024 * 1024},
		{"mib", 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kib", 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, s := range suffixes {
		if !strings.HasSuffix(value, s.suffix) {
			continue
		}
		num := strings.TrimSpace(strings.TrimSuffix(value, s.suffix))
		if num == "" {
			return 0, fmt.Errorf("missing size value")
		}
		parsed, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return 0, err
		}
		if parsed <= 0 {
			return 0, fmt.Errorf("size must be positive")
		}
		return parsed * s.multiplier, nil
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	return parsed, nil
}
