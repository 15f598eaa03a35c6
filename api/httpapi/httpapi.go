package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coupong/adapters/sse"
	wsadapter "coupong/adapters/websocket"
	"coupong/core"
)

// Pinger reports whether the queue store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LeaderboardReader reads stored leaderboard projections.
type LeaderboardReader interface {
	Load(ctx context.Context, c core.Category) (core.Snapshot, error)
}

// Stream is the hub streaming handlers subscribe to.
type Stream interface {
	Subscribe(buffer int) (string, <-chan []byte)
	Unsubscribe(id string)
}

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigins enables CORS for the listed origins ("*" allows any).
	AllowCORSOrigins []string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles per-client rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// StreamBuffer is the per-subscriber message buffer for /stream and /ws.
	StreamBuffer int
	// StreamHeartbeat is the SSE keep-alive interval.
	StreamHeartbeat time.Duration
	// Metrics, if set, is mounted at {prefix}/metrics.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Deps are the collaborators the API reads from. Leaderboards is nil when only push projections run.
type Deps struct {
	Health       Pinger
	Leaderboards LeaderboardReader
	Stream       Stream
}

// NewRouter builds the HTTP surface.
// Routes:
//   - GET {prefix}/healthz
//   - GET {prefix}/stream                  (server-sent events)
//   - GET {prefix}/ws                      (WebSocket)
//   - GET {prefix}/leaderboards/{category} (stored projection)
//   - GET {prefix}/metrics                 (when Options.Metrics is set)
func NewRouter(deps Deps, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(opts.AllowCORSOrigins) > 0 {
		r.Use(corsMiddleware(opts.AllowCORSOrigins))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		r.Use(rateLimitMiddleware(NewClientRateLimiter(perMinute(opts.RateLimitRPM), opts.RateLimitBurst)))
	}

	routes := func(r chi.Router) {
		r.Get("/healthz", healthHandler(deps.Health))
		if opts.Metrics != nil {
			r.Handle("/metrics", opts.Metrics)
		}

		r.Group(func(r chi.Router) {
			if len(opts.APIKeys) > 0 {
				r.Use(apiKeyMiddleware(opts.APIKeys))
			}
			if deps.Stream != nil {
				r.Handle("/stream", sse.Handler(deps.Stream, sse.Options{
					Buffer:    opts.StreamBuffer,
					Heartbeat: opts.StreamHeartbeat,
					Logger:    logger,
				}))
				r.Handle("/ws", wsadapter.Handler(deps.Stream, wsadapter.Options{
					Buffer:      opts.StreamBuffer,
					CheckOrigin: originChecker(opts.AllowCORSOrigins),
					Logger:      logger,
				}))
			}
			r.Get("/leaderboards/{category}", leaderboardHandler(deps.Leaderboards, logger))
		})
	}
	if prefix := routePrefix(opts.PathPrefix); prefix != "" {
		r.Route(prefix, routes)
	} else {
		routes(r)
	}
	return r
}

func routePrefix(prefix string) string {
	if prefix == "" || prefix == "/" {
		return ""
	}
	if prefix[0] != '/' {
		prefix = "/" + prefix
	}
	if prefix[len(prefix)-1] == '/' {
		prefix = prefix[:len(prefix)-1]
	}
	return prefix
}

// healthHandler verifies the queue store answers a ping.
func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{
			"status": "healthy",
			"checks": map[string]any{"store": "ok"},
		}
		code := http.StatusOK
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				code = http.StatusServiceUnavailable
				status["status"] = "unhealthy"
				status["checks"] = map[string]any{"store": "failed"}
			}
		}
		writeJSON(w, code, status)
	}
}

func leaderboardHandler(reader LeaderboardReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			writeError(w, http.StatusNotFound, "not_found", "stored leaderboards are disabled", nil)
			return
		}
		c, err := core.NormalizeCategory(core.Category(chi.URLParam(r, "category")))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_category", err.Error(), nil)
			return
		}
		snap, err := reader.Load(r.Context(), c)
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no leaderboard for category", map[string]string{"category": string(c)})
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "load leaderboard failed", "category", c, "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "failed to load leaderboard", nil)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSON(w, status, apiError{Code: code, Message: msg, Details: details})
}
