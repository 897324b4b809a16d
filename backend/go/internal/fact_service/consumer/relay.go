// Package consumer relays fact events published by other server instances to
// the websocket clients of this instance.
package consumer

import (
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
)

// Notifier receives facts announced by other instances.
type Notifier interface {
	BroadcastNewFact(fact models.Fact)
}

// messageReader is the subset of *kafka.Reader used here.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// retryDelay bounds the fetch loop when the broker keeps failing.
const retryDelay = time.Second

// Relay consumes the fact event topic and rebroadcasts fact.generated events
// that did not originate from this instance.
type Relay struct {
	reader   messageReader
	instance string
	logger   *logger.Logger
	done     chan struct{}
}

// NewRelay creates a Relay. Each instance joins its own consumer group so that
// every instance sees every event.
func NewRelay(brokers []string, topic, instance string, logger *logger.Logger) *Relay {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "factverse-relay-" + instance,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	})
	return newRelay(reader, instance, logger)
}

func newRelay(reader messageReader, instance string, logger *logger.Logger) *Relay {
	return &Relay{
		reader:   reader,
		instance: instance,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins consuming in the background until ctx is cancelled or the
// reader is closed.
func (r *Relay) Start(ctx context.Context, notifier Notifier) {
	go func() {
		defer close(r.done)
		for {
			msg, err := r.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					r.logger.Info("Stopping fact event relay...")
					return
				}
				r.logger.WithError(models.ErrorInfoFrom(err, "kafka_error")).Error("Error fetching fact event from Kafka")
				select {
				case <-ctx.Done():
					return
				case <-time.After(retryDelay):
				}
				continue
			}

			if err := r.handle(msg, notifier); err != nil {
				r.logger.WithError(models.ErrorInfoFrom(err, "decode_error")).WithPayload(map[string]interface{}{
					"topic":     msg.Topic,
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("Skipping malformed fact event")
			}

			if err := r.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				r.logger.WithError(models.ErrorInfoFrom(err, "kafka_error")).Error("Failed to commit fact event")
			}
		}
	}()
}

func (r *Relay) handle(msg kafka.Message, notifier Notifier) error {
	var event models.FactEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}
	if event.Type != models.EventFactGenerated || event.Fact == nil {
		return nil
	}
	if event.Instance == r.instance {
		return nil
	}
	notifier.BroadcastNewFact(*event.Fact)
	return nil
}

// Done is closed once the consume loop has exited.
func (r *Relay) Done() <-chan struct{} { return r.done }

// Close closes the underlying Kafka reader.
func (r *Relay) Close() error {
	return r.reader.Close()
}
