package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"coupong/adapters/jsonfile"
	mem "coupong/adapters/memory"
	redisAdapter "coupong/adapters/redis"
	sqlxAdapter "coupong/adapters/sqlx"
	"coupong/api/httpapi"
	"coupong/config"
	"coupong/coupon"
	"coupong/engine"
	"coupong/integrations/webhook"
	"coupong/metrics"
	"coupong/projection"
	"coupong/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Queue   *coupon.Queue
	Server  *http.Server
	Metrics *MetricsServer
}

// MetricsServer serves Prometheus metrics on its own listener. Nil when metrics are disabled.
type MetricsServer struct {
	*http.Server
}

func provideConfig() (*config.Config, error) {
	profile := os.Getenv("COUPONG_PROFILE")
	if path := os.Getenv("COUPONG_CONFIG"); path != "" {
		return config.LoadProfileFile(profile, path)
	}
	if profile != "" {
		return config.LoadProfile(profile)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideRegistry(cfg *config.Config) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	if cfg.Metrics.CollectSystem {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return reg
}

func provideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func provideHub(logger *slog.Logger, m *metrics.Metrics) *realtime.Hub {
	return realtime.NewHub(realtime.WithLogger(logger), realtime.WithMetrics(m))
}

func provideRedisClient(cfg *config.Config) (*goredis.Client, func(), error) {
	client, err := redisAdapter.NewClient(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func provideSnapshotStore(cfg *config.Config, client *goredis.Client) (projection.SnapshotStore, func(), error) {
	return setupSnapshots(cfg, client)
}

func provideQueue(cfg *config.Config, client *goredis.Client, snaps projection.SnapshotStore, hub *realtime.Hub, logger *slog.Logger, m *metrics.Metrics) (*coupon.Queue, func(), error) {
	mode, err := projection.ParseMode(cfg.Queue.Projection)
	if err != nil {
		return nil, nil, err
	}
	dispatch := engine.DispatchSync
	if cfg.Queue.Dispatch == "async" {
		dispatch = engine.DispatchAsync
	}
	opts := []coupon.Option{
		coupon.WithRedisClient(client),
		coupon.WithKeySpace(cfg.Queue.Keys),
		coupon.WithProjection(mode, snaps, hub),
		coupon.WithDispatchMode(dispatch,
			engine.WithQueueSize(cfg.Queue.AsyncQueueSize),
			engine.WithWorkers(cfg.Queue.AsyncWorkers),
		),
		coupon.WithLogger(logger),
		coupon.WithMetrics(m),
	}
	if len(cfg.Webhook.Endpoints) > 0 {
		opts = append(opts, coupon.WithSynchronizer(webhook.New(cfg.Webhook.Endpoints,
			webhook.WithClient(&http.Client{Timeout: cfg.Webhook.Timeout}),
			webhook.WithLogger(logger),
		)))
	}
	q, err := coupon.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	return q, q.Close, nil
}

func provideHandler(cfg *config.Config, q *coupon.Queue, snaps projection.SnapshotStore, hub *realtime.Hub, logger *slog.Logger) http.Handler {
	deps := httpapi.Deps{Health: q, Stream: hub}
	if mode, _ := projection.ParseMode(cfg.Queue.Projection); mode.Stores() {
		deps.Leaderboards = snaps
	}
	return httpapi.NewRouter(deps, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigins: cfg.Server.CORSOrigins,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		StreamBuffer:     cfg.Stream.Buffer,
		StreamHeartbeat:  cfg.Stream.Heartbeat,
		Logger:           logger,
	})
}

// provideServer leaves WriteTimeout unset; /stream and /ws responses are long-lived.
// provideServer builds the API server. Request contexts are cancelled once Shutdown starts
// so open streams return instead of holding the drain until the timeout.
func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}

func provideMetricsServer(cfg *config.Config, reg *prometheus.Registry) *MetricsServer {
	if !cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &MetricsServer{Server: &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler).With("service", "coupong")
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupSnapshots creates the stored leaderboard adapter selected by configuration.
func setupSnapshots(cfg *config.Config, client *goredis.Client) (projection.SnapshotStore, func(), error) {
	noop := func() {}
	switch cfg.Snapshots.Adapter {
	case "memory":
		return mem.New(), noop, nil
	case "redis":
		return redisAdapter.NewSnapshotStore(client, cfg.Queue.Keys), noop, nil
	case "sql":
		store, err := sqlxAdapter.New(cfg.Snapshots.SQL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "file":
		store, err := jsonfile.New(cfg.Snapshots.File.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown snapshot adapter: %s", cfg.Snapshots.Adapter)
	}
}
