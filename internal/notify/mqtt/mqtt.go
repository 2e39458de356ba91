// Package mqtt publishes transition events to an MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/notify"
)

const (
	connectTimeout = 30 * time.Second
	publishTimeout = 10 * time.Second
	// At-least-once: a duplicate status update is harmless, a lost one is not.
	qos = 1
)

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic is a prefix; events go to <Topic>/<tenantId>/<inspectionId>.
	Topic string
}

// publisher is the subset of paho.Client the dispatcher uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

type Dispatcher struct {
	client publisher
	topic  string
	logger zerolog.Logger
}

var _ notify.Dispatcher = (*Dispatcher)(nil)

// Connect dials the broker and returns a ready dispatcher. The client
// reconnects on its own after a lost connection.
func Connect(ctx context.Context, cfg Config, logger zerolog.Logger) (*Dispatcher, error) {
	logger = logger.With().Str("component", "notify_mqtt").Logger()

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn().Err(err).Str("broker", cfg.Broker).Msg("connection to MQTT broker lost")
	})

	client := paho.NewClient(opts)
	if err := wait(ctx, client.Connect(), connectTimeout); err != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	return &Dispatcher{client: client, topic: strings.TrimSuffix(cfg.Topic, "/"), logger: logger}, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, event domain.TransitionEvent) error {
	if !d.client.IsConnected() {
		return fmt.Errorf("not connected to mqtt broker")
	}
	payload, err := notify.Payload(event)
	if err != nil {
		return err
	}

	topic := d.topicFor(event)
	d.logger.Debug().Str("topic", topic).Msg("Publishing transition event")
	if err := wait(ctx, d.client.Publish(topic, qos, false, payload), publishTimeout); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (d *Dispatcher) topicFor(event domain.TransitionEvent) string {
	return fmt.Sprintf("%s/%s/%s", d.topic, event.TenantID, event.InspectionID)
}

func (d *Dispatcher) Name() string { return "mqtt" }

func (d *Dispatcher) Close() error {
	d.client.Disconnect(250)
	return nil
}

// wait blocks until the token completes, the timeout passes or ctx ends.
func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
