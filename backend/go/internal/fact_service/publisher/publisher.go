// Package publisher sends fact events to Kafka.
package publisher

import (
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes fact events. Implementations must not block the caller
// on broker round trips.
type EventPublisher interface {
	Publish(ctx context.Context, event models.FactEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes fact events to a Kafka topic, keyed by fact id.
type KafkaPublisher struct {
	writer   messageWriter
	topic    string
	instance string
	logger   *logger.Logger
}

// NewKafkaPublisher creates a KafkaPublisher that stamps every event with
// instance. The writer is switched to async mode; delivery failures are logged
// from the completion callback.
func NewKafkaPublisher(writer *kafka.Writer, instance string, logger *logger.Logger) *KafkaPublisher {
	writer.Async = true
	writer.Completion = func(messages []kafka.Message, err error) {
		if err != nil {
			logger.WithError(models.ErrorInfoFrom(err, "kafka_error")).
				WithPayload(map[string]interface{}{"topic": writer.Topic, "messages": len(messages)}).
				Error("Failed to deliver fact events")
		}
	}
	return &KafkaPublisher{writer: writer, topic: writer.Topic, instance: instance, logger: logger}
}

// Publish encodes the event and hands it to the writer.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.FactEvent) error {
	if event.Instance == "" {
		event.Instance = p.instance
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal fact event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.FactID),
		Value: msgBytes,
	})
	if err != nil {
		p.logger.WithError(models.ErrorInfoFrom(err, "kafka_error")).
			WithPayload(map[string]interface{}{"topic": p.topic, "type": event.Type}).
			Error("Failed to write fact event to Kafka")
		return err
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.FactEvent) error { return nil }
func (NopPublisher) Close() error                                   { return nil }
