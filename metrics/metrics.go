// Package metrics exposes Prometheus collectors for the queue, the projections and the fan-out hub.
//
// A nil *Metrics is valid and records nothing, so components can be built without a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coupong"

// Drop reasons for undelivered fan-out messages.
const (
	DropNoSubscribers = "no_subscribers"
	DropBufferFull    = "buffer_full"
)

// Metrics groups every collector the service records to.
type Metrics struct {
	opTotal     *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	syncTotal   *prometheus.CounterVec
	published   prometheus.Counter
	delivered   prometheus.Counter
	dropped     *prometheus.CounterVec
	subscribers prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "operations_total",
			Help:      "Queue operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "operation_duration_seconds",
			Help:      "Queue operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		syncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "synchronizations_total",
			Help:      "Leaderboard synchronizations by outcome.",
		}, []string{"outcome"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_published_total",
			Help:      "Messages handed to the fan-out hub.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_delivered_total",
			Help:      "Per-subscriber message deliveries.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_dropped_total",
			Help:      "Messages or deliveries dropped by reason.",
		}, []string{"reason"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Currently attached stream subscribers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.opTotal, m.opDuration, m.syncTotal, m.published, m.delivered, m.dropped, m.subscribers)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveOperation records one queue operation.
func (m *Metrics) ObserveOperation(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.opTotal.WithLabelValues(op, outcome(err)).Inc()
	m.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveSync records one synchronization attempt.
func (m *Metrics) ObserveSync(err error) {
	if m == nil {
		return
	}
	m.syncTotal.WithLabelValues(outcome(err)).Inc()
}

// MessagePublished records a publish that reached delivered subscribers.
func (m *Metrics) MessagePublished(delivered int) {
	if m == nil {
		return
	}
	m.published.Inc()
	m.delivered.Add(float64(delivered))
}

// MessageDropped records an undelivered message.
func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// SetSubscribers updates the attached subscriber gauge.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}
