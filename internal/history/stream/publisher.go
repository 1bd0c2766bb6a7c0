// Package stream fans recorded history events out to downstream consumers.
//
// The publisher decouples the write path from the broker: Record hands an
// event to a buffered channel and returns; a worker drains the channel into
// a sink. A full buffer drops the event with a warning; stream delivery is
// best-effort and must never block or fail a write.
package stream

import (
	"context"
	"log/slog"

	"timetrail/internal/history"
	"timetrail/internal/history/metrics"
)

// Sink receives drained events. Implementations: Kafka (production), Noop
// (brokers unconfigured), and test fakes.
type Sink interface {
	Send(ctx context.Context, event history.Event) error
}

// Publisher buffers recorded events for asynchronous delivery.
type Publisher struct {
	sink    Sink
	inbox   chan history.Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ history.StreamPublisher = (*Publisher)(nil)

// PublisherOption customizes a Publisher.
type PublisherOption func(*Publisher)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

// WithBuffer sets the inbox capacity.
func WithBuffer(size int) PublisherOption {
	return func(p *Publisher) { p.inbox = make(chan history.Event, size) }
}

// NewPublisher constructs a Publisher with a default buffer of 256 events.
func NewPublisher(sink Sink, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		sink:   sink,
		inbox:  make(chan history.Event, 256),
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish enqueues an event without blocking. When the buffer is full the
// event is dropped and counted; the durable row already exists, so a lost
// stream publish is an acceptable gap.
func (p *Publisher) Publish(event history.Event) {
	select {
	case p.inbox <- event:
	default:
		p.metrics.RecordStreamDrop()
		p.logger.Warn("stream buffer full, dropping history event",
			"event_id", event.ID,
			"target_type", event.TargetType,
			"action", event.Action,
		)
	}
}

// Run drains the inbox into the sink until ctx is cancelled. Sink errors are
// logged and the event is dropped; the worker keeps running.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-p.inbox:
			if err := p.sink.Send(ctx, event); err != nil {
				p.metrics.RecordStreamDrop()
				p.logger.ErrorContext(ctx, "failed to publish history event to stream",
					"event_id", event.ID,
					"error", err,
				)
			}
		}
	}
}
