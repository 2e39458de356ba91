// Package audit writes the audit trail in the background so that recording
// never slows down or fails the operation being audited.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/metrics"
)

const (
	DefaultBuffer = 256
	writeTimeout  = 5 * time.Second
)

// Sink persists entries; store.AuditStore is the production sink.
type Sink interface {
	Append(ctx context.Context, e domain.AuditEntry) error
}

type Recorder struct {
	sink    Sink
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	closed  bool
	entries chan domain.AuditEntry
	done    chan struct{}
}

// NewRecorder starts the single writer goroutine. Close must be called to
// flush and stop it.
func NewRecorder(sink Sink, logger zerolog.Logger, m *metrics.Metrics, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	r := &Recorder{
		sink:    sink,
		logger:  logger.With().Str("component", "audit").Logger(),
		metrics: m,
		now:     time.Now,
		entries: make(chan domain.AuditEntry, buffer),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues e without blocking. When the buffer is full or the recorder
// is closed the entry is dropped and counted.
func (r *Recorder) Record(e domain.AuditEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(e, "recorder closed")
		return
	}
	select {
	case r.entries <- e:
	default:
		r.drop(e, "buffer full")
	}
}

// Close writes everything already queued, then stops the writer.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.entries)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.sink.Append(ctx, e)
		cancel()
		if err != nil {
			r.metrics.RecordAuditDropped()
			r.logger.Error().Err(err).Str("action", e.Action).Str("entity_id", e.EntityID).Msg("failed to write audit entry")
		}
	}
}

func (r *Recorder) drop(e domain.AuditEntry, reason string) {
	r.metrics.RecordAuditDropped()
	r.logger.Warn().Str("reason", reason).Str("action", e.Action).Str("entity_id", e.EntityID).Msg("audit entry dropped")
}
