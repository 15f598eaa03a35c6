package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"coupong/adapters/redis"
	"coupong/adapters/sqlx"
	"coupong/core"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" yaml:"environment" env:"COUPONG_ENV"`
	Profile     string      `json:"profile" yaml:"profile" env:"COUPONG_PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Redis holds the queue sorted sets (and optionally the stored leaderboards)
	Redis redis.Config `json:"redis" yaml:"redis"`

	// Queue keys and synchronization
	Queue QueueConfig `json:"queue" yaml:"queue"`

	// Snapshots selects where stored leaderboards live
	Snapshots SnapshotConfig `json:"snapshots" yaml:"snapshots"`

	// Stream tunes the live update transports
	Stream StreamConfig `json:"stream" yaml:"stream"`

	// Webhook forwards leaderboard updates over HTTP
	Webhook WebhookConfig `json:"webhook" yaml:"webhook"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Security configuration
	Security SecurityConfig `json:"security" yaml:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" yaml:"address" env:"COUPONG_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" yaml:"path_prefix" env:"COUPONG_SERVER_PATH_PREFIX"`
	CORSOrigins       []string      `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty" env:"COUPONG_SERVER_CORS_ORIGINS"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"COUPONG_SERVER_READ_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"COUPONG_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"COUPONG_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"COUPONG_SERVER_SHUTDOWN_TIMEOUT"`
}

// QueueConfig holds queue key and synchronization settings
type QueueConfig struct {
	Keys core.KeySpace `json:"keys" yaml:"keys"`
	// Projection is push, store or both
	Projection string `json:"projection" yaml:"projection" env:"COUPONG_QUEUE_PROJECTION"`
	// Dispatch is sync or async
	Dispatch       string `json:"dispatch" yaml:"dispatch" env:"COUPONG_QUEUE_DISPATCH"`
	AsyncQueueSize int    `json:"async_queue_size" yaml:"async_queue_size" env:"COUPONG_QUEUE_ASYNC_QUEUE_SIZE"`
	AsyncWorkers   int    `json:"async_workers" yaml:"async_workers" env:"COUPONG_QUEUE_ASYNC_WORKERS"`
}

// SnapshotConfig holds stored leaderboard adapter configuration
type SnapshotConfig struct {
	Adapter string      `json:"adapter" yaml:"adapter" env:"COUPONG_SNAPSHOTS_ADAPTER"`
	SQL     sqlx.Config `json:"sql,omitempty" yaml:"sql,omitempty"`
	File    FileConfig  `json:"file,omitempty" yaml:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" yaml:"path" env:"COUPONG_SNAPSHOTS_FILE_PATH"`
}

// StreamConfig holds SSE and WebSocket settings
type StreamConfig struct {
	Buffer    int           `json:"buffer" yaml:"buffer" env:"COUPONG_STREAM_BUFFER"`
	Heartbeat time.Duration `json:"heartbeat" yaml:"heartbeat" env:"COUPONG_STREAM_HEARTBEAT"`
}

// WebhookConfig holds outbound webhook settings
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" yaml:"endpoints,omitempty" env:"COUPONG_WEBHOOK_ENDPOINTS"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" env:"COUPONG_WEBHOOK_TIMEOUT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" yaml:"level" env:"COUPONG_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" env:"COUPONG_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" env:"COUPONG_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" env:"COUPONG_LOG_ATTRIBUTES"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled" env:"COUPONG_METRICS_ENABLED"`
	Address       string `json:"address" yaml:"address" env:"COUPONG_METRICS_ADDR"`
	Path          string `json:"path" yaml:"path" env:"COUPONG_METRICS_PATH"`
	CollectSystem bool   `json:"collect_system" yaml:"collect_system" env:"COUPONG_METRICS_COLLECT_SYSTEM"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" env:"COUPONG_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" yaml:"api_keys,omitempty" env:"COUPONG_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" env:"COUPONG_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" yaml:"burst_size" env:"COUPONG_SECURITY_RATE_LIMIT_BURST"`
}

// Validate validates security settings.
func (s SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load loads configuration from environment variables and secrets, and validates it
func Load() (*Config, error) {
	return finish(DefaultConfig())
}

// finish applies environment overrides and secrets, then validates.
func finish(cfg *Config) (*Config, error) {
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.LoadSecretsFromEnv(context.Background())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json", ".yaml", ".yml":
	default:
		return errors.New("config file must have .json, .yaml or .yml extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file, then applies environment overrides
func LoadFromFile(path string) (*Config, error) {
	return loadFile(path, DefaultConfig())
}

func loadFile(path string, cfg *Config) (*Config, error) {
	// Validate the path for security
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment variables override file values
	return finish(cfg)
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigins:       []string{"*"},
			ReadTimeout:       10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Redis: redis.DefaultConfig(),
		Queue: QueueConfig{
			Keys:           core.DefaultKeySpace(),
			Projection:     "both",
			Dispatch:       "sync",
			AsyncQueueSize: 2048,
			AsyncWorkers:   1,
		},
		Snapshots: SnapshotConfig{
			Adapter: "memory",
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/leaderboards.json",
			},
		},
		Stream: StreamConfig{
			Buffer:    256,
			Heartbeat: 15 * time.Second,
		},
		Webhook: WebhookConfig{
			Timeout: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			Address:       ":9090",
			Path:          "/metrics",
			CollectSystem: true,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 600,
				BurstSize:         50,
			},
			APIKeys: []string{},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Redis.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("redis config: %v", err))
	}

	if err := c.Queue.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("queue config: %v", err))
	}

	if c.Queue.Projection != "push" {
		if err := c.Snapshots.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("snapshots config: %v", err))
		}
	}

	if err := c.Stream.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("stream config: %v", err))
	}

	if err := c.Webhook.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhook config: %v", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("metrics config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Snapshots.SQL.DSN != "" {
		cfg.Snapshots.SQL.DSN = "[REDACTED]"
	}
	if cfg.Redis.Password != "" {
		cfg.Redis.Password = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
