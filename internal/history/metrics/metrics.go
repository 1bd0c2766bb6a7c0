package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the history subsystem.
type Metrics struct {
	EventsRecorded    *prometheus.CounterVec
	IdempotentReplays prometheus.Counter
	PagesServed       prometheus.Counter
	InvalidCursors    prometheus.Counter
	RecordDuration    prometheus.Histogram
	StreamDropped     prometheus.Counter
}

// New creates and registers all history metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timetrail_history_events_recorded_total",
			Help: "History events appended, by lifecycle action",
		}, []string{"action"}),
		IdempotentReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timetrail_history_idempotent_replays_total",
			Help: "Record calls resolved by returning a previously stored event",
		}),
		PagesServed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timetrail_history_pages_served_total",
			Help: "History pages returned to readers",
		}),
		InvalidCursors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timetrail_history_invalid_cursors_total",
			Help: "Read requests rejected for a malformed pagination cursor",
		}),
		RecordDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetrail_history_record_duration_seconds",
			Help:    "Latency of recording one history event",
			Buckets: prometheus.DefBuckets,
		}),
		StreamDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timetrail_history_stream_dropped_total",
			Help: "Recorded events dropped because the stream buffer was full",
		}),
	}
}

// RecordEvent increments the recorded-events counter for an action.
func (m *Metrics) RecordEvent(action string) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(action).Inc()
}

// RecordReplay increments the idempotent-replay counter.
func (m *Metrics) RecordReplay() {
	if m == nil {
		return
	}
	m.IdempotentReplays.Inc()
}

// RecordPage increments the pages-served counter.
func (m *Metrics) RecordPage() {
	if m == nil {
		return
	}
	m.PagesServed.Inc()
}

// RecordInvalidCursor increments the invalid-cursor counter.
func (m *Metrics) RecordInvalidCursor() {
	if m == nil {
		return
	}
	m.InvalidCursors.Inc()
}

// ObserveRecordDuration records the latency of one record call.
func (m *Metrics) ObserveRecordDuration(seconds float64) {
	if m == nil {
		return
	}
	m.RecordDuration.Observe(seconds)
}

// RecordStreamDrop increments the dropped-stream-events counter.
func (m *Metrics) RecordStreamDrop() {
	if m == nil {
		return
	}
	m.StreamDropped.Inc()
}
