package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"coupong/metrics"
)

// Hub broadcasts leaderboard messages to every attached subscriber.
// Publishing never blocks: a subscriber whose buffer is full misses that message.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]chan []byte
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics records publishes and drops.
func WithMetrics(m *metrics.Metrics) Option { return func(h *Hub) { h.metrics = m } }

func NewHub(opts ...Option) *Hub {
	h := &Hub{subs: map[string]chan []byte{}, logger: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscribe attaches a subscriber with the given buffer and returns its id and message channel.
func (h *Hub) Subscribe(buffer int) (string, <-chan []byte) {
	if buffer < 0 {
		buffer = 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan []byte, buffer)
	h.subs[id] = ch
	h.metrics.SetSubscribers(len(h.subs))
	return id, ch
}

// Unsubscribe detaches a subscriber and closes its channel. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
		h.metrics.SetSubscribers(len(h.subs))
	}
}

// Subscribers returns the number of attached subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers msg to every subscriber and returns how many received it.
func (h *Hub) Publish(ctx context.Context, msg []byte) int {
	// sends are non-blocking, so holding the read lock keeps Unsubscribe from closing a channel mid-send
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.subs) == 0 {
		h.logger.WarnContext(ctx, "no subscribers for leaderboard stream, message dropped")
		h.metrics.MessageDropped(metrics.DropNoSubscribers)
		return 0
	}

	delivered := 0
	for id, ch := range h.subs {
		select {
		case ch <- msg:
			delivered++
		default:
			h.logger.DebugContext(ctx, "subscriber buffer full, message dropped", "subscriber", id)
			h.metrics.MessageDropped(metrics.DropBufferFull)
		}
	}
	h.metrics.MessagePublished(delivered)
	return delivered
}
