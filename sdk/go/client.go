package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the coupong leaderboard HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// Health probes /healthz and returns status + store check. An unhealthy server still yields
// its decoded status alongside ErrUnhealthy.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := c.newRequest(ctx, c.baseURL+"/healthz")
	if err != nil {
		return HealthStatus{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if resp.StatusCode == http.StatusServiceUnavailable {
		if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
			return HealthStatus{}, err
		}
		return hs, ErrUnhealthy
	}
	if err := decodeJSON(resp, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// Leaderboard fetches the stored leaderboard of a category.
// ErrNotFound is returned when the category has none or the server only pushes updates.
func (c *Client) Leaderboard(ctx context.Context, category string) (Leaderboard, error) {
	if strings.TrimSpace(category) == "" {
		return Leaderboard{}, ErrEmptyCategory
	}
	req, err := c.newRequest(ctx, fmt.Sprintf("%s/leaderboards/%s", c.baseURL, url.PathEscape(category)))
	if err != nil {
		return Leaderboard{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Leaderboard{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Leaderboard{}, ErrNotFound
	}
	var lb Leaderboard
	if err := decodeJSON(resp, &lb); err != nil {
		return Leaderboard{}, err
	}
	return lb, nil
}

// SubscribeUpdates connects to the WebSocket stream and emits one Update per category in each message.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeUpdates(ctx context.Context) (<-chan Update, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan Update, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var msg map[string][]string
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			for category, members := range msg {
				if members == nil {
					members = []string{}
				}
				select {
				case out <- Update{Category: category, Members: members}:
				case <-ctx.Done():
					return
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, u string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	return req, nil
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
