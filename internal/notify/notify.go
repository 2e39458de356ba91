// Package notify delivers transition events to an outbound system after the
// transition has committed.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vbonduro/inspectflow/internal/domain"
)

// EventType labels every transition message on the wire.
const EventType = "inspection.transitioned"

// Dispatcher sends one event. Callers treat errors as advisory: a failed
// notification never undoes a transition.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.TransitionEvent) error
	Name() string
	Close() error
}

// Payload is the JSON body shared by every backend.
func Payload(event domain.TransitionEvent) ([]byte, error) {
	b, err := json.Marshal(struct {
		Type string `json:"type"`
		domain.TransitionEvent
	}{Type: EventType, TransitionEvent: event})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transition event: %w", err)
	}
	return b, nil
}

// LogDispatcher writes events to the log only. It is the default when no
// broker is configured.
type LogDispatcher struct {
	logger zerolog.Logger
}

func NewLogDispatcher(logger zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With().Str("component", "notify").Logger()}
}

func (d *LogDispatcher) Dispatch(_ context.Context, event domain.TransitionEvent) error {
	payload, err := Payload(event)
	if err != nil {
		return err
	}
	d.logger.Info().
		Str("inspection_id", event.InspectionID).
		Str("tenant_id", event.TenantID).
		RawJSON("payload", payload).
		Msg("transition notification")
	return nil
}

func (d *LogDispatcher) Name() string { return "log" }

func (d *LogDispatcher) Close() error { return nil }
