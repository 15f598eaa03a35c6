package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOperation("add", nil, time.Millisecond)
	m.ObserveOperation("add", errors.New("boom"), time.Millisecond)
	m.ObserveSync(nil)
	m.MessagePublished(3)
	m.MessageDropped(DropNoSubscribers)
	m.SetSubscribers(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.opTotal.WithLabelValues("add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opTotal.WithLabelValues("add", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.delivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues(DropNoSubscribers)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.subscribers))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("add", nil, 0)
		m.ObserveSync(nil)
		m.MessagePublished(1)
		m.MessageDropped(DropBufferFull)
		m.SetSubscribers(1)
	})
}
