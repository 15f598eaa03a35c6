package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupong/adapters/redis"
	"coupong/core"
)

func TestLoad(t *testing.T) {
	// Test loading default config
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify defaults
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Snapshots.Adapter)
	assert.Equal(t, "both", cfg.Queue.Projection)
	assert.Equal(t, "LEADERBOARDQUEUE:", cfg.Queue.Keys.QueuePrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	// Create a temporary config file
	configContent := `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"snapshots": {
			"adapter": "file",
			"file": {"path": "/tmp/leaderboards.json"}
		}
	}`

	tmpFile, err := os.CreateTemp("", "config_test_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(configContent)
	require.NoError(t, err)
	tmpFile.Close()

	// Load config from file
	cfg, err := LoadFromFile(tmpFile.Name())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify loaded values
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "file", cfg.Snapshots.Adapter)
	assert.Equal(t, "/tmp/leaderboards.json", cfg.Snapshots.File.Path)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr, "unset sections keep defaults")
}

func TestLoadFromYAMLFile(t *testing.T) {
	content := `
environment: staging
redis:
  addr: redis:6379
  dial_timeout: 2s
queue:
  keys:
    queue_prefix: "LEADERBOARD QUEUE:"
    leaderboard_prefix: "LEADERBOARD:"
  projection: push
  dispatch: async
stream:
  heartbeat: 5s
`
	path := filepath.Join(t.TempDir(), "coupong.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, "LEADERBOARD QUEUE:", cfg.Queue.Keys.QueuePrefix)
	assert.Equal(t, "push", cfg.Queue.Projection)
	assert.Equal(t, 5*time.Second, cfg.Stream.Heartbeat)
	assert.Equal(t, 256, cfg.Stream.Buffer)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COUPONG_REDIS_ADDR", "cache:6380")
	t.Setenv("COUPONG_QUEUE_PREFIX", "Q:")
	t.Setenv("COUPONG_QUEUE_DISPATCH", "async")
	t.Setenv("COUPONG_STREAM_HEARTBEAT", "3s")
	t.Setenv("COUPONG_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, "Q:", cfg.Queue.Keys.QueuePrefix)
	assert.Equal(t, "async", cfg.Queue.Dispatch)
	assert.Equal(t, 3*time.Second, cfg.Stream.Heartbeat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestEnvReportsEveryMalformedValue(t *testing.T) {
	env := map[string]string{
		"COUPONG_QUEUE_ASYNC_WORKERS": "many",
		"COUPONG_STREAM_HEARTBEAT":    "soon",
		"COUPONG_LOG_ATTRIBUTES":      "team=queue,broken",
		"COUPONG_METRICS_ENABLED":     "",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := DefaultConfig()
	err := overlayEnv(reflect.ValueOf(cfg).Elem(), lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COUPONG_QUEUE_ASYNC_WORKERS")
	assert.Contains(t, err.Error(), "COUPONG_STREAM_HEARTBEAT")
	assert.Contains(t, err.Error(), "COUPONG_LOG_ATTRIBUTES")
	assert.Equal(t, DefaultConfig().Metrics.Enabled, cfg.Metrics.Enabled, "empty values keep defaults")
}

func TestEnvDecodesTypedFields(t *testing.T) {
	env := map[string]string{
		"COUPONG_ENV":                 "staging",
		"COUPONG_SQL_DRIVER":          "mysql",
		"COUPONG_SECURITY_API_KEYS":   "k1,, k2 ",
		"COUPONG_LOG_ATTRIBUTES":      "team=queue,region=eu",
		"COUPONG_QUEUE_ASYNC_WORKERS": "4",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := DefaultConfig()
	require.NoError(t, overlayEnv(reflect.ValueOf(cfg).Elem(), lookup))
	assert.Equal(t, Environment("staging"), cfg.Environment)
	assert.Equal(t, "mysql", string(cfg.Snapshots.SQL.Driver))
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
	assert.Equal(t, map[string]string{"team": "queue", "region": "eu"}, cfg.Logging.Attributes)
	assert.Equal(t, 4, cfg.Queue.AsyncWorkers)
}

func TestValidateRejectsBadQueueSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Queue.Projection = "mirror"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Queue.Keys.LeaderboardPrefix = cfg.Queue.Keys.QueuePrefix
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Snapshots.Adapter = "sql"
	assert.Error(t, cfg.Validate(), "sql snapshots need a dsn")

	cfg.Queue.Projection = "push"
	assert.NoError(t, cfg.Validate(), "snapshot settings are ignored for push-only projection")

	cfg = DefaultConfig()
	cfg.Webhook.Endpoints = []string{"not a url"}
	assert.Error(t, cfg.Validate())
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Redis.Password = "hunter2"
	cfg.Snapshots.SQL.DSN = "postgres://u:p@db/x"
	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "postgres://")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
	}{
		{
			name: "valid config",
			config: &Config{
				Environment: EnvDevelopment,
				Server: ServerConfig{
					Address:           ":8080",
					ReadTimeout:       time.Second,
					IdleTimeout:       time.Second,
					ReadHeaderTimeout: time.Second,
					ShutdownTimeout:   time.Second,
				},
				Redis: redis.DefaultConfig(),
				Queue: QueueConfig{
					Keys:       core.DefaultKeySpace(),
					Projection: "both",
					Dispatch:   "sync",
				},
				Snapshots: SnapshotConfig{
					Adapter: "memory",
				},
				Stream: StreamConfig{Buffer: 1, Heartbeat: time.Second},
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
					Output: "stdout",
				},
			},
			expectError: false,
		},
		{
			name: "invalid environment",
			config: &Config{
				Environment: "",
				Server: ServerConfig{
					Address:           ":8080",
					ReadTimeout:       time.Second,
					IdleTimeout:       time.Second,
					ReadHeaderTimeout: time.Second,
					ShutdownTimeout:   time.Second,
				},
				Redis: redis.DefaultConfig(),
				Queue: QueueConfig{
					Keys:       core.DefaultKeySpace(),
					Projection: "both",
					Dispatch:   "sync",
				},
				Snapshots: SnapshotConfig{
					Adapter: "memory",
				},
				Stream: StreamConfig{Buffer: 1, Heartbeat: time.Second},
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
					Output: "stdout",
				},
			},
			expectError: true,
		},
		{
			name: "invalid server timeout",
			config: &Config{
				Environment: EnvDevelopment,
				Server: ServerConfig{
					Address:           ":8080",
					ReadTimeout:       0,
					IdleTimeout:       time.Second,
					ReadHeaderTimeout: time.Second,
					ShutdownTimeout:   time.Second,
				},
				Redis: redis.DefaultConfig(),
				Queue: QueueConfig{
					Keys:       core.DefaultKeySpace(),
					Projection: "both",
					Dispatch:   "sync",
				},
				Snapshots: SnapshotConfig{
					Adapter: "memory",
				},
				Stream: StreamConfig{Buffer: 1, Heartbeat: time.Second},
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
					Output: "stdout",
				},
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}
}

func TestSecrets(t *testing.T) {
	// Test environment secret store
	store := NewEnvironmentSecretStore()

	// Set test environment variable
	testKey := "TEST_SECRET_KEY"
	testValue := "test_secret_value"
	os.Setenv(testKey, testValue)
	defer os.Unsetenv(testKey)

	ctx := context.Background()

	// Test Get
	value, err := store.Get(ctx, testKey)
	assert.NoError(t, err)
	assert.Equal(t, testValue, value)

	// Test GetWithDefault
	defaultValue := "default"
	value = store.GetWithDefault(ctx, "NONEXISTENT_KEY", defaultValue)
	assert.Equal(t, defaultValue, value)

	value = store.GetWithDefault(ctx, testKey, defaultValue)
	assert.Equal(t, testValue, value)

	_, err = store.Get(ctx, "NONEXISTENT_KEY")
	assert.Error(t, err)
}

func TestSecretsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redis_password")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))
	t.Setenv("COUPONG_REDIS_PASSWORD_FILE", path)
	t.Setenv("COUPONG_SQL_DSN", "postgres://coupong@db/coupong")
	t.Setenv("COUPONG_SECURITY_API_KEYS", "k1, k2")

	cfg := DefaultConfig()
	cfg.LoadSecretsFromEnv(context.Background())
	assert.Equal(t, "s3cret", cfg.Redis.Password)
	assert.Equal(t, "postgres://coupong@db/coupong", cfg.Snapshots.SQL.DSN)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
}

func TestLoadProfileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"address":":7000"}}`), 0o600))

	cfg, err := LoadProfileFile("production", path)
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, "async", cfg.Queue.Dispatch)
}

func TestValidateConfigPath(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		expectError bool
		setup       func() string // returns path to cleanup
	}{
		{
			name:        "valid json file",
			path:        "config_test.json",
			expectError: false,
			setup: func() string {
				tmpFile, _ := os.CreateTemp("", "config_test_*.json")
				tmpFile.WriteString("{}")
				tmpFile.Close()
				return tmpFile.Name()
			},
		},
		{
			name:        "empty path",
			path:        "",
			expectError: true,
			setup:       func() string { return "" },
		},
		{
			name:        "path traversal",
			path:        "../../../etc/passwd",
			expectError: true,
			setup:       func() string { return "" },
		},
		{
			name:        "non-json file",
			path:        "config.txt",
			expectError: true,
			setup: func() string {
				tmpFile, _ := os.CreateTemp("", "config_test_*.txt")
				tmpFile.WriteString("{}")
				tmpFile.Close()
				return tmpFile.Name()
			},
		},
		{
			name:        "nonexistent file",
			path:        "nonexistent.json",
			expectError: true,
			setup:       func() string { return "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanupPath := tt.setup()
			if cleanupPath != "" {
				defer os.Remove(cleanupPath)
				if tt.path == "config_test.json" || tt.path == "config.txt" {
					tt.path = cleanupPath
				}
			}

			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
