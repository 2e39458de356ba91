// Package kafka publishes transition events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/notify"
)

type Config struct {
	Brokers []string
	Topic   string
}

// messageWriter is the subset of *kafka.Writer the dispatcher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Dispatcher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

var _ notify.Dispatcher = (*Dispatcher)(nil)

// New builds a dispatcher. With no brokers it runs in log-only mode.
func New(cfg Config, logger zerolog.Logger) *Dispatcher {
	logger = logger.With().Str("component", "notify_kafka").Logger()
	d := &Dispatcher{topic: cfg.Topic, logger: logger}

	if len(cfg.Brokers) == 0 {
		logger.Info().Msg("Kafka disabled, using log-only mode")
		return d
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	d.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("Kafka dispatcher initialized")
	return d
}

// Dispatch keys messages by inspection id so every event for one inspection
// lands on the same partition, in commit order.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.TransitionEvent) error {
	payload, err := notify.Payload(event)
	if err != nil {
		return err
	}

	d.logger.Debug().
		Str("topic", d.topic).
		Str("key", event.InspectionID).
		RawJSON("payload", payload).
		Msg("Publishing transition event")

	if d.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.InspectionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(notify.EventType)},
			{Key: "tenantId", Value: []byte(event.TenantID)},
		},
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write to kafka topic %s: %w", d.topic, err)
	}
	return nil
}

func (d *Dispatcher) Name() string { return "kafka" }

func (d *Dispatcher) Close() error {
	if d.writer == nil {
		return nil
	}
	if err := d.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
