package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"coupong/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

var (
	ErrDispatchQueueFull = errors.New("synchronization queue full")
	ErrBusClosed         = errors.New("synchronization bus closed")
)

type dispatchItem struct {
	ctx  context.Context
	snap core.Snapshot
}

// EventBus fans a snapshot out to every subscribed projection, synchronously or through a worker pool.
// It implements Synchronizer, so the queue service sees a single synchronization contract.
type EventBus struct {
	mode         DispatchMode
	mu           sync.RWMutex
	subs         map[int64]Synchronizer
	nextID       int64
	closed       bool
	asyncQueue   chan dispatchItem
	asyncWorkers int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       *slog.Logger
}

// BusOption configures an EventBus.
type BusOption func(*EventBus)

// WithBusLogger sets the logger used for async dispatch failures.
func WithBusLogger(l *slog.Logger) BusOption {
	return func(e *EventBus) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithQueueSize bounds the async dispatch queue.
func WithQueueSize(n int) BusOption {
	return func(e *EventBus) {
		if n > 0 {
			e.asyncQueue = make(chan dispatchItem, n)
		}
	}
}

// WithWorkers sets the async worker count. More than one worker may reorder snapshots of a category.
func WithWorkers(n int) BusOption {
	return func(e *EventBus) {
		if n > 0 {
			e.asyncWorkers = n
		}
	}
}

func NewEventBus(mode DispatchMode, opts ...BusOption) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		mode:         mode,
		subs:         make(map[int64]Synchronizer),
		asyncQueue:   make(chan dispatchItem, 2048),
		asyncWorkers: 1,
		ctx:          ctx,
		cancel:       cancel,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(eb)
	}
	if mode == DispatchAsync {
		eb.startWorkers()
	}
	return eb
}

func (e *EventBus) startWorkers() {
	for i := 0; i < e.asyncWorkers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case item := <-e.asyncQueue:
					e.dispatchAsync(item)
				case <-e.ctx.Done():
					// drain what was accepted before Close
					for {
						select {
						case item := <-e.asyncQueue:
							e.dispatchAsync(item)
						default:
							return
						}
					}
				}
			}
		}()
	}
}

func (e *EventBus) dispatchAsync(item dispatchItem) {
	if err := e.dispatch(item.ctx, item.snap); err != nil {
		e.logger.ErrorContext(item.ctx, "leaderboard synchronization failed",
			"category", item.snap.Category, "error", err)
	}
}

// Close stops accepting snapshots and waits for queued ones to be dispatched.
func (e *EventBus) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.cancel()
	e.wg.Wait()
}

// Subscribe registers a projection. Returns unsubscribe func.
func (e *EventBus) Subscribe(s Synchronizer) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.subs[id] = s
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Synchronize hands the snapshot to every projection. In async mode only enqueue failures are returned.
func (e *EventBus) Synchronize(ctx context.Context, snap core.Snapshot) error {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}
	if e.mode == DispatchAsync {
		select {
		case e.asyncQueue <- dispatchItem{ctx: context.WithoutCancel(ctx), snap: snap.Clone()}:
			return nil
		default:
			return ErrDispatchQueueFull
		}
	}
	return e.dispatch(ctx, snap)
}

func (e *EventBus) dispatch(ctx context.Context, snap core.Snapshot) error {
	e.mu.RLock()
	// copy to avoid holding lock during projection calls
	targets := make([]Synchronizer, 0, len(e.subs))
	for _, s := range e.subs {
		targets = append(targets, s)
	}
	e.mu.RUnlock()
	var errs []error
	for _, s := range targets {
		if err := s.Synchronize(ctx, snap.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
