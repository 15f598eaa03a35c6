package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coupong/core"
	"coupong/metrics"
)

// AddResult describes a successful queue write.
type AddResult struct {
	// Inserted is false when an existing member only had its score updated.
	Inserted bool `json:"inserted"`
	// Synced reports whether the leaderboard synchronization that followed succeeded.
	Synced bool `json:"synced"`
}

// RemoveResult describes a removal. Synced stays false when nothing was removed,
// since the leaderboard is left untouched.
type RemoveResult struct {
	Removed bool `json:"removed"`
	Synced  bool `json:"synced"`
}

// ClearResult describes a cleared queue.
type ClearResult struct {
	Removed int64 `json:"removed"`
	Synced  bool  `json:"synced"`
}

// QueueService owns the per-category queues and keeps their leaderboards in sync.
// Store failures are logged here and returned as *core.StoreError values.
type QueueService struct {
	store   SortedSetStore
	sync    Synchronizer
	keys    core.KeySpace
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

// ServiceOption configures a QueueService.
type ServiceOption func(*QueueService)

// WithKeySpace overrides the key prefixes.
func WithKeySpace(k core.KeySpace) ServiceOption { return func(q *QueueService) { q.keys = k } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(q *QueueService) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) ServiceOption {
	return func(q *QueueService) {
		if t != nil {
			q.tracer = t
		}
	}
}

// WithMetrics records operation counts and latency.
func WithMetrics(m *metrics.Metrics) ServiceOption { return func(q *QueueService) { q.metrics = m } }

func NewQueueService(store SortedSetStore, sync Synchronizer, opts ...ServiceOption) *QueueService {
	if store == nil || sync == nil {
		panic("NewQueueService requires non-nil store and synchronizer")
	}
	q := &QueueService{
		store:  store,
		sync:   sync,
		keys:   core.DefaultKeySpace(),
		logger: slog.Default(),
		tracer: otel.Tracer("coupong/engine"),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// KeySpace returns the key prefixes in use.
func (q *QueueService) KeySpace() core.KeySpace { return q.keys }

// observe wraps an operation with a span, metrics and failure logging.
func (q *QueueService) observe(ctx context.Context, op string, c core.Category, fn func(ctx context.Context) error) error {
	ctx, span := q.tracer.Start(ctx, "QueueService."+op, trace.WithAttributes(
		attribute.String("operation", op),
		attribute.String("category", string(c)),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	q.metrics.ObserveOperation(op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		q.logger.ErrorContext(ctx, "queue operation failed", "operation", op, "category", c, "error", err)
	}
	return err
}

func normalize(c core.Category, m core.MemberID) (core.Category, core.MemberID, error) {
	c, err := core.NormalizeCategory(c)
	if err != nil {
		return "", "", err
	}
	m, err = core.NormalizeMemberID(m)
	if err != nil {
		return "", "", err
	}
	return c, m, nil
}

// AddToZSet queues member under category with score (the attempt timestamp).
// Every successful write, including a score update, triggers exactly one synchronization.
func (q *QueueService) AddToZSet(ctx context.Context, c core.Category, m core.MemberID, score float64) (AddResult, error) {
	c, m, err := normalize(c, m)
	if err != nil {
		return AddResult{}, err
	}
	var res AddResult
	err = q.observe(ctx, "add", c, func(ctx context.Context) error {
		key := q.keys.QueueKey(c)
		added, err := q.store.Add(ctx, key, m, score)
		if err != nil {
			return &core.StoreError{Op: "add", Key: key, Err: err}
		}
		res.Inserted = added
		q.logger.InfoContext(ctx, "member queued", "category", c, "member", m, "score", score, "inserted", added)
		res.Synced = q.synchronize(ctx, c, core.Float64(score)) == nil
		return nil
	})
	return res, err
}

// GetZSet returns the full membership of a category in store order.
func (q *QueueService) GetZSet(ctx context.Context, c core.Category) ([]core.MemberID, error) {
	c, err := core.NormalizeCategory(c)
	if err != nil {
		return nil, err
	}
	var out []core.MemberID
	err = q.observe(ctx, "members", c, func(ctx context.Context) error {
		key := q.keys.QueueKey(c)
		members, err := q.store.Range(ctx, key, 0, -1)
		if err != nil {
			return &core.StoreError{Op: "range", Key: key, Err: err}
		}
		out = members
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// GetTopRankSetWithScore returns at most limit members in ascending score order, with scores.
func (q *QueueService) GetTopRankSetWithScore(ctx context.Context, c core.Category, limit int) ([]core.ScoredMember, error) {
	c, err := core.NormalizeCategory(c)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []core.ScoredMember{}, nil
	}
	var out []core.ScoredMember
	err = q.observe(ctx, "top_with_scores", c, func(ctx context.Context) error {
		key := q.keys.QueueKey(c)
		entries, err := q.store.RangeWithScores(ctx, key, 0, int64(limit)-1)
		if err != nil {
			return &core.StoreError{Op: "range_with_scores", Key: key, Err: err}
		}
		out = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.ScoredMember{}
	}
	return out, nil
}

// GetTopRankSet returns at most limit members in ascending score order.
func (q *QueueService) GetTopRankSet(ctx context.Context, c core.Category, limit int) ([]core.MemberID, error) {
	c, err := core.NormalizeCategory(c)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []core.MemberID{}, nil
	}
	var out []core.MemberID
	err = q.observe(ctx, "top", c, func(ctx context.Context) error {
		key := q.keys.QueueKey(c)
		members, err := q.store.Range(ctx, key, 0, int64(limit)-1)
		if err != nil {
			return &core.StoreError{Op: "range", Key: key, Err: err}
		}
		out = members
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// RemoveItemFromZSet removes member from the category queue. Removing an absent member is not an error.
// A successful removal synchronizes the leaderboard with a nil score.
func (q *QueueService) RemoveItemFromZSet(ctx context.Context, c core.Category, m core.MemberID) (RemoveResult, error) {
	c, m, err := normalize(c, m)
	if err != nil {
		return RemoveResult{}, err
	}
	var res RemoveResult
	err = q.observe(ctx, "remove", c, func(ctx context.Context) error {
		q.logger.InfoContext(ctx, "removing member from queue", "category", c, "member", m)
		key := q.keys.QueueKey(c)
		ok, err := q.store.Remove(ctx, key, m)
		if err != nil {
			return &core.StoreError{Op: "remove", Key: key, Err: err}
		}
		res.Removed = ok
		if ok {
			res.Synced = q.synchronize(ctx, c, nil) == nil
		}
		return nil
	})
	return res, err
}

// ClearQueue empties the category queue and synchronizes the leaderboard with a nil score.
func (q *QueueService) ClearQueue(ctx context.Context, c core.Category) (ClearResult, error) {
	c, err := core.NormalizeCategory(c)
	if err != nil {
		return ClearResult{}, err
	}
	var res ClearResult
	err = q.observe(ctx, "clear", c, func(ctx context.Context) error {
		key := q.keys.QueueKey(c)
		n, err := q.store.RemoveRange(ctx, key, 0, -1)
		if err != nil {
			return &core.StoreError{Op: "remove_range", Key: key, Err: err}
		}
		res.Removed = n
		q.logger.InfoContext(ctx, "queue cleared", "category", c, "removed", n)
		res.Synced = q.synchronize(ctx, c, nil) == nil
		return nil
	})
	return res, err
}

// IsUserInQueue reports whether member holds a rank in the category queue.
// An absent member yields false with a nil error; store failures are returned.
func (q *QueueService) IsUserInQueue(ctx context.Context, c core.Category, m core.MemberID) (bool, error) {
	c, m, err := normalize(c, m)
	if err != nil {
		return false, err
	}
	var found bool
	err = q.observe(ctx, "rank", c, func(ctx context.Context) error {
		key := q.keys.QueueKey(c)
		_, ok, err := q.store.Rank(ctx, key, m)
		if err != nil {
			return &core.StoreError{Op: "rank", Key: key, Err: err}
		}
		found = ok
		return nil
	})
	return found, err
}

// Ping checks the sorted-set store is reachable.
func (q *QueueService) Ping(ctx context.Context) error {
	if err := q.store.Ping(ctx); err != nil {
		return &core.StoreError{Op: "ping", Err: err}
	}
	return nil
}

// synchronize reads the full membership back and republishes it. Failures are logged, not propagated
// into the write that triggered them.
func (q *QueueService) synchronize(ctx context.Context, c core.Category, score *float64) error {
	key := q.keys.QueueKey(c)
	members, err := q.store.Range(ctx, key, 0, -1)
	if err != nil {
		err = &core.StoreError{Op: "range", Key: key, Err: err}
		q.metrics.ObserveSync(err)
		q.logger.ErrorContext(ctx, "leaderboard synchronization failed", "category", c, "error", err)
		return err
	}
	q.logger.InfoContext(ctx, "synchronizing leaderboard", "category", c, "members", len(members))
	err = q.sync.Synchronize(ctx, core.NewSnapshot(c, members, score))
	q.metrics.ObserveSync(err)
	if err != nil {
		q.logger.ErrorContext(ctx, "leaderboard synchronization failed", "category", c, "error", err)
	}
	return err
}

func nonNil(m []core.MemberID) []core.MemberID {
	if m == nil {
		return []core.MemberID{}
	}
	return m
}
