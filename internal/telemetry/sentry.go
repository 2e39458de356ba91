// Package telemetry reports unexpected internal errors to Sentry.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

type Options struct {
	DSN         string
	Environment string
	Release     string
	// Transport overrides the HTTP transport, e.g. with a recorder in tests.
	Transport sentry.Transport
}

// Reporter captures internal errors on its own hub. The zero value and a
// Reporter built without a DSN are disabled and drop everything.
type Reporter struct {
	hub *sentry.Hub
}

func New(opts Options) (*Reporter, error) {
	if opts.DSN == "" && opts.Transport == nil {
		return &Reporter{}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          opts.Release,
		Transport:        opts.Transport,
		SampleRate:       1.0,
		AttachStacktrace: false,
		ServerName:       "",
		BeforeSend:       scrub,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// CaptureInternal sends err tagged with the operation and correlation id,
// so a caller's reported id can be matched to the event.
func (r *Reporter) CaptureInternal(operation, correlationID string, err error) {
	if !r.Enabled() || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", operation)
		scope.SetTag("correlation_id", correlationID)
		scope.SetLevel(sentry.LevelError)
		scope.SetFingerprint([]string{operation, fmt.Sprintf("%T", err)})
		r.hub.CaptureException(err)
	})
}

func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}

// scrub drops host and user detail before an event leaves the process.
func scrub(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	return event
}
