// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inspectflow"

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Workflow metrics
	InspectionsCreated  prometheus.Counter
	TransitionsApplied  *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec

	// Queue metrics
	TasksEnqueued   *prometheus.CounterVec
	TasksFinished   *prometheus.CounterVec
	TaskRetries     prometheus.Counter
	QueueDepth      *prometheus.GaugeVec
	DrainDuration   prometheus.Histogram
	ParseConfidence *prometheus.HistogramVec

	// Side-effect metrics
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	AuditDropped        prometheus.Counter
	InternalErrors      *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InspectionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inspections_created_total",
			Help:      "Total number of inspections created",
		}),
		TransitionsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_applied_total",
			Help:      "Total number of committed state transitions",
		}, []string{"from", "to"}),
		TransitionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_rejected_total",
			Help:      "Total number of transition requests that did not commit",
		}, []string{"reason"}),

		TasksEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_tasks_enqueued_total",
			Help:      "Total number of voice note tasks enqueued",
		}, []string{"priority"}),
		TasksFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_tasks_finished_total",
			Help:      "Total number of tasks that reached a terminal status",
		}, []string{"status"}),
		TaskRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_task_retries_total",
			Help:      "Total number of failed attempts returned to pending",
		}),
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_tasks",
			Help:      "Number of tasks currently held by the queue",
		}, []string{"status"}),
		DrainDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_drain_duration_seconds",
			Help:      "Duration of one drain cycle in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		ParseConfidence: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "voice_parse_confidence",
			Help:      "Confidence of stored voice annotations",
			Buckets:   []float64{0.1, 0.25, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}, []string{"source"}),

		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of transition notifications dispatched",
		}, []string{"backend"}),
		NotificationsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of transition notifications that failed",
		}, []string{"backend"}),
		AuditDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_dropped_total",
			Help:      "Total number of audit entries dropped or failed to write",
		}),
		InternalErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "internal_errors_total",
			Help:      "Total number of unexpected errors hidden behind a correlation id",
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordInspectionCreated() {
	if m == nil {
		return
	}
	m.InspectionsCreated.Inc()
}

func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsApplied.WithLabelValues(from, to).Inc()
}

// RecordTransitionRejected counts a refused transition; reason is one of
// validation, not_found, version_conflict, invalid_transition or internal.
func (m *Metrics) RecordTransitionRejected(reason string) {
	if m == nil {
		return
	}
	m.TransitionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordEnqueued(priority string) {
	if m == nil {
		return
	}
	m.TasksEnqueued.WithLabelValues(priority).Inc()
}

func (m *Metrics) RecordTaskFinished(status string) {
	if m == nil {
		return
	}
	m.TasksFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.TaskRetries.Inc()
}

// RecordQueueDepth publishes a snapshot of task counts by status.
func (m *Metrics) RecordQueueDepth(pending, processing, completed, failed int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues("pending").Set(float64(pending))
	m.QueueDepth.WithLabelValues("processing").Set(float64(processing))
	m.QueueDepth.WithLabelValues("completed").Set(float64(completed))
	m.QueueDepth.WithLabelValues("failed").Set(float64(failed))
}

func (m *Metrics) RecordDrain(durationSeconds float64) {
	if m == nil {
		return
	}
	m.DrainDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordConfidence(source string, confidence float64) {
	if m == nil {
		return
	}
	m.ParseConfidence.WithLabelValues(source).Observe(confidence)
}

func (m *Metrics) RecordNotification(backend string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.NotificationsFailed.WithLabelValues(backend).Inc()
		return
	}
	m.NotificationsSent.WithLabelValues(backend).Inc()
}

func (m *Metrics) RecordAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}

func (m *Metrics) RecordInternalError(operation string) {
	if m == nil {
		return
	}
	m.InternalErrors.WithLabelValues(operation).Inc()
}
