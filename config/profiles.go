package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the defaults of a named deployment profile with environment overrides applied.
func LoadProfile(name string) (*Config, error) {
	cfg, err := profile(name)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadProfileFile starts from a named profile and layers a config file on top.
func LoadProfileFile(name, path string) (*Config, error) {
	cfg, err := profile(name)
	if err != nil {
		return nil, err
	}
	return loadFile(path, cfg)
}

func profile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name
	switch name {
	case "development", "default", "":
		cfg.Environment = EnvDevelopment
		cfg.Profile = "development"
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	case "testing":
		cfg.Environment = EnvTesting
		cfg.Server.Address = "127.0.0.1:0"
		cfg.Snapshots.Adapter = "memory"
		cfg.Logging.Level = "warn"
	case "staging":
		cfg.Environment = EnvStaging
		cfg.Snapshots.Adapter = "redis"
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true
	case "production":
		cfg.Environment = EnvProduction
		cfg.Server.CORSOrigins = nil
		cfg.Server.ShutdownTimeout = 60 * time.Second
		cfg.Snapshots.Adapter = "redis"
		cfg.Queue.Dispatch = "async"
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true
		cfg.Logging.Attributes = map[string]string{"env": string(EnvProduction)}
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}
