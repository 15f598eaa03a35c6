package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"coupong/core"
)

// Sink posts leaderboard updates to configured HTTP endpoints.
// It is synchronous; subscribe it on an async bus when endpoints are slow.
type Sink struct {
	client    *http.Client
	endpoints []string
	logger    *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// Synchronize posts the update message to every endpoint. Every endpoint is attempted;
// failures are joined.
func (s *Sink) Synchronize(ctx context.Context, snap core.Snapshot) error {
	if len(s.endpoints) == 0 {
		return nil
	}
	body, err := snap.MarshalMessage()
	if err != nil {
		return fmt.Errorf("encode leaderboard update: %w", err)
	}
	var errs []error
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, body); err != nil {
			s.logger.WarnContext(ctx, "webhook delivery failed", "endpoint", ep, "category", snap.Category, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Sink) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	return nil
}
