package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"timetrail/internal/history"
	"timetrail/internal/platform/config"
)

// KafkaSink publishes history events to a Kafka topic, keyed by company so
// a tenant's events stay ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink builds a Kafka client for the configured brokers and ensures
// the topic exists with the configured partition layout.
func NewKafkaSink(ctx context.Context, cfg config.KafkaConfig) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := ensureTopic(ctx, client, cfg); err != nil {
		client.Close()
		return nil, err
	}
	return &KafkaSink{client: client, topic: cfg.Topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, cfg config.KafkaConfig) error {
	adm := kadm.NewClient(client)
	responses, err := adm.CreateTopics(ctx, cfg.Partitions, cfg.ReplicationFactor, nil, cfg.Topic)
	if err != nil {
		return fmt.Errorf("create topic %q: %w", cfg.Topic, err)
	}
	for _, response := range responses {
		if response.Err != nil && !errors.Is(response.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %q: %w", cfg.Topic, response.Err)
		}
	}
	return nil
}

// payload is the JSON shape published to Kafka. Field names follow the wire
// shape of a HistoryEvent so consumers share one schema with the HTTP API.
type payload struct {
	ID          string         `json:"id"`
	CompanyID   string         `json:"companyId"`
	UserID      string         `json:"userId"`
	TargetType  string         `json:"targetType"`
	TargetID    string         `json:"targetId"`
	Action      string         `json:"action"`
	ActorUserID string         `json:"actorUserId"`
	Reason      string         `json:"reason,omitempty"`
	Diff        map[string]any `json:"diff,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	OccurredAt  string         `json:"occurredAt"`
}

// Send produces one event synchronously. The publisher worker already
// decouples this from the write path, so waiting for the broker here keeps
// delivery accounting simple.
func (s *KafkaSink) Send(ctx context.Context, event history.Event) error {
	body, err := json.Marshal(payload{
		ID:          event.ID.String(),
		CompanyID:   event.CompanyID.String(),
		UserID:      event.UserID.String(),
		TargetType:  string(event.TargetType),
		TargetID:    event.TargetID,
		Action:      string(event.Action),
		ActorUserID: event.ActorUserID.String(),
		Reason:      event.Reason,
		Diff:        event.Diff,
		Metadata:    event.Metadata,
		OccurredAt:  event.OccurredAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal stream payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.CompanyID.String()),
		Value: body,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce history event: %w", err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (s *KafkaSink) Close() {
	s.client.Close()
}

// NoopSink discards events. Used when no brokers are configured.
type NoopSink struct{}

func (NoopSink) Send(context.Context, history.Event) error { return nil }
