package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates the stored leaderboard adapter configuration
func (s *SnapshotConfig) Validate() error {
	var errs []string

	if !oneOf(s.Adapter, "memory", "redis", "sql", "file") {
		errs = append(errs, "adapter must be one of: memory, redis, sql, file")
	}

	// Validate adapter-specific configs
	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "sql":
		if err := s.SQL.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sql config: %v", err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates queue configuration
func (q *QueueConfig) Validate() error {
	var errs []string

	if err := q.Keys.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("keys: %v", err))
	}
	if !oneOf(q.Projection, "push", "store", "both") {
		errs = append(errs, "projection must be one of: push, store, both")
	}
	if !oneOf(q.Dispatch, "sync", "async") {
		errs = append(errs, "dispatch must be one of: sync, async")
	}
	if q.Dispatch == "async" {
		if q.AsyncQueueSize <= 0 {
			errs = append(errs, "async_queue_size must be positive")
		}
		if q.AsyncWorkers <= 0 {
			errs = append(errs, "async_workers must be positive")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates stream configuration
func (s *StreamConfig) Validate() error {
	if s.Buffer <= 0 {
		return errors.New("buffer must be positive")
	}
	if s.Heartbeat <= 0 {
		return errors.New("heartbeat must be positive")
	}
	return nil
}

// Validate validates webhook configuration
func (w *WebhookConfig) Validate() error {
	for i, ep := range w.Endpoints {
		u, err := url.Parse(strings.TrimSpace(ep))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("endpoints[%d] must be an absolute http(s) URL", i)
		}
	}
	if len(w.Endpoints) > 0 && w.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	validLevels := []string{"debug", "info", "warn", "error"}
	isValidLevel := false
	for _, level := range validLevels {
		if l.Level == level {
			isValidLevel = true
			break
		}
	}

	if !isValidLevel {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(validLevels, ", ")))
	}

	validFormats := []string{"json", "text"}
	isValidFormat := false
	for _, format := range validFormats {
		if l.Format == format {
			isValidFormat = true
			break
		}
	}

	if !isValidFormat {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(validFormats, ", ")))
	}

	validOutputs := []string{"stdout", "stderr"}
	isValidOutput := false
	for _, output := range validOutputs {
		if l.Output == output {
			isValidOutput = true
			break
		}
	}

	if !isValidOutput {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(validOutputs, ", ")))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	var errs []string

	if m.Enabled {
		if m.Address == "" {
			errs = append(errs, "address cannot be empty when metrics are enabled")
		}

		if m.Path == "" {
			errs = append(errs, "path cannot be empty when metrics are enabled")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}
