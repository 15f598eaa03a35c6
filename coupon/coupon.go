package coupon

import (
	"errors"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	redisAdapter "coupong/adapters/redis"
	"coupong/core"
	"coupong/engine"
	"coupong/metrics"
	"coupong/projection"
)

// Option configures the queue builder.
type Option func(*config)

type config struct {
	store     engine.SortedSetStore
	keys      core.KeySpace
	mode      engine.DispatchMode
	busOpts   []engine.BusOption
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	extra     []engine.Synchronizer
	projMode  projection.Mode
	snapshots projection.SnapshotStore
	publisher projection.Publisher
}

// WithStore sets the sorted-set store holding the queues.
func WithStore(s engine.SortedSetStore) Option { return func(c *config) { c.store = s } }

// WithRedisClient uses an existing go-redis client as the sorted-set store.
func WithRedisClient(client *goredis.Client) Option {
	return func(c *config) { c.store = redisAdapter.NewWithClient(client) }
}

// WithKeySpace overrides the queue and leaderboard key prefixes.
func WithKeySpace(k core.KeySpace) Option { return func(c *config) { c.keys = k } }

// WithProjection selects how leaderboards are republished. store is required for store modes,
// pub for push modes.
func WithProjection(mode projection.Mode, store projection.SnapshotStore, pub projection.Publisher) Option {
	return func(c *config) {
		c.projMode = mode
		c.snapshots = store
		c.publisher = pub
	}
}

// WithDispatchMode selects sync or async synchronization dispatch.
func WithDispatchMode(m engine.DispatchMode, opts ...engine.BusOption) Option {
	return func(c *config) {
		c.mode = m
		c.busOpts = append(c.busOpts, opts...)
	}
}

// WithSynchronizer subscribes an additional projection, e.g. a webhook sink.
func WithSynchronizer(s engine.Synchronizer) Option {
	return func(c *config) {
		if s != nil {
			c.extra = append(c.extra, s)
		}
	}
}

func WithLogger(l *slog.Logger) Option      { return func(c *config) { c.logger = l } }
func WithTracer(t trace.Tracer) Option      { return func(c *config) { c.tracer = t } }
func WithMetrics(m *metrics.Metrics) Option { return func(c *config) { c.metrics = m } }

// Queue is an assembled queue service and the bus feeding its projections.
type Queue struct {
	*engine.QueueService
	Bus *engine.EventBus
}

// Close drains pending asynchronous synchronizations.
func (q *Queue) Close() { q.Bus.Close() }

// New builds a configured queue. Defaults:
//   - keys: LEADERBOARDQUEUE: / LEADERBOARD:
//   - dispatch: sync
//   - projection: none unless WithProjection or WithSynchronizer is given
func New(opts ...Option) (*Queue, error) {
	cfg := &config{keys: core.DefaultKeySpace(), mode: engine.DispatchSync, logger: slog.Default()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.store == nil {
		return nil, errors.New("coupon: a sorted-set store is required")
	}
	if err := cfg.keys.Validate(); err != nil {
		return nil, err
	}

	var syncs []engine.Synchronizer
	if cfg.projMode != "" {
		built, err := projection.Build(cfg.projMode, cfg.snapshots, cfg.publisher, cfg.logger)
		if err != nil {
			return nil, err
		}
		syncs = built
	}
	syncs = append(syncs, cfg.extra...)

	bus := engine.NewEventBus(cfg.mode, append([]engine.BusOption{engine.WithBusLogger(cfg.logger)}, cfg.busOpts...)...)
	for _, s := range syncs {
		bus.Subscribe(s)
	}
	svc := engine.NewQueueService(cfg.store, bus,
		engine.WithKeySpace(cfg.keys),
		engine.WithLogger(cfg.logger),
		engine.WithTracer(cfg.tracer),
		engine.WithMetrics(cfg.metrics),
	)
	return &Queue{QueueService: svc, Bus: bus}, nil
}
