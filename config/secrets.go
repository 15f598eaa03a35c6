package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SecretStore resolves secrets by key.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvironmentSecretStore reads secrets from environment variables, optionally from files
// named by <KEY>_FILE (the Docker/Kubernetes secret convention).
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

// Get returns the secret or an error when it is unset.
func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, nil
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - operator-provided secret path
		if err != nil {
			return "", fmt.Errorf("read secret file for %s: %w", key, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", fmt.Errorf("secret %s not set", key)
}

// GetWithDefault returns the secret or def when it cannot be resolved.
func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// Secret keys resolved by LoadSecrets.
const (
	SecretRedisPassword = "COUPONG_REDIS_PASSWORD"
	SecretSQLDSN        = "COUPONG_SQL_DSN"
	SecretAPIKeys       = "COUPONG_SECURITY_API_KEYS"
)

// LoadSecrets fills credentials from store, keeping values already set.
func (c *Config) LoadSecrets(ctx context.Context, store SecretStore) {
	get := func(key string) string {
		v, err := store.Get(ctx, key)
		if err != nil {
			return ""
		}
		return v
	}
	if c.Redis.Password == "" {
		c.Redis.Password = get(SecretRedisPassword)
	}
	if c.Snapshots.SQL.DSN == "" {
		c.Snapshots.SQL.DSN = get(SecretSQLDSN)
	}
	if len(c.Security.APIKeys) == 0 {
		if v := get(SecretAPIKeys); v != "" {
			for _, k := range strings.Split(v, ",") {
				if k = strings.TrimSpace(k); k != "" {
					c.Security.APIKeys = append(c.Security.APIKeys, k)
				}
			}
		}
	}
}

// LoadSecretsFromEnv is LoadSecrets backed by the environment.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) {
	c.LoadSecrets(ctx, NewEnvironmentSecretStore())
}
