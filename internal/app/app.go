// Package app assembles the inspection service from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/inspectflow/internal/audit"
	"github.com/vbonduro/inspectflow/internal/config"
	"github.com/vbonduro/inspectflow/internal/db"
	"github.com/vbonduro/inspectflow/internal/metrics"
	"github.com/vbonduro/inspectflow/internal/notify"
	"github.com/vbonduro/inspectflow/internal/notify/kafka"
	"github.com/vbonduro/inspectflow/internal/notify/mqtt"
	"github.com/vbonduro/inspectflow/internal/queue"
	"github.com/vbonduro/inspectflow/internal/service"
	"github.com/vbonduro/inspectflow/internal/store"
	"github.com/vbonduro/inspectflow/internal/telemetry"
	"github.com/vbonduro/inspectflow/internal/voice"
	"github.com/vbonduro/inspectflow/internal/voice/claude"
	"github.com/vbonduro/inspectflow/internal/workflow"
)

const (
	auditBuffer     = 256
	shutdownTimeout = 5 * time.Second
)

// App owns every long-lived component. Close releases them in reverse
// order of construction.
type App struct {
	Service  *service.InspectionService
	Queue    *queue.Queue
	Registry *prometheus.Registry

	cfg      *config.Config
	db       *sql.DB
	audit    *audit.Recorder
	notifier notify.Dispatcher
	reporter *telemetry.Reporter
	logger   zerolog.Logger
}

// Option adjusts how New builds the app.
type Option func(*options)

type options struct {
	database *sql.DB
	refiner  voice.Refiner
	notifier notify.Dispatcher
}

// WithDatabase supplies an already-open database instead of opening DBPath.
func WithDatabase(d *sql.DB) Option {
	return func(o *options) { o.database = d }
}

// WithRefiner overrides the refiner selected from configuration.
func WithRefiner(r voice.Refiner) Option {
	return func(o *options) { o.refiner = r }
}

// WithNotifier overrides the notification backend selected from configuration.
func WithNotifier(n notify.Dispatcher) Option {
	return func(o *options) { o.notifier = n }
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger, db: o.database}
	if a.db == nil {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.db = database
	}

	reporter, err := telemetry.New(telemetry.Options{DSN: cfg.SentryDSN, Environment: cfg.Environment})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.reporter = reporter

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.Registry)

	a.notifier = o.notifier
	if a.notifier == nil {
		n, err := newNotifier(ctx, cfg, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.notifier = n
	}

	refiner := o.refiner
	if refiner == nil && cfg.ClaudeAPIKey != "" {
		refiner = claude.NewRefiner(cfg.ClaudeAPIKey, cfg.ClaudeModel, claude.WithLogger(logger))
		logger.Info().Str("model", cfg.ClaudeModel).Msg("using Claude refiner for low-confidence notes")
	}

	inspections := store.NewInspectionStore(a.db)
	items := store.NewItemStore(a.db)
	annotations := store.NewAnnotationStore(a.db)
	a.audit = audit.NewRecorder(store.NewAuditStore(a.db), logger, m, auditBuffer)

	processor := service.NewAnnotationProcessor(service.ProcessorConfig{
		Inspections: inspections,
		Items:       items,
		Annotations: annotations,
		Refiner:     refiner,
		Threshold:   cfg.VoiceConfidenceThreshold,
		Audit:       a.audit,
		Metrics:     m,
		Logger:      logger,
	})
	a.Queue = queue.New(queue.Config{
		DrainInterval: cfg.QueueDrainInterval,
		BatchSize:     cfg.QueueBatchSize,
		MaxRetries:    cfg.QueueMaxRetries,
		Retention:     cfg.QueueRetention,
	}, processor, logger, queue.WithMetrics(m))

	a.Service = service.NewInspectionService(service.Dependencies{
		Engine:      workflow.NewEngine(inspections, logger),
		Items:       items,
		Annotations: annotations,
		Queue:       a.Queue,
		Notifier:    a.notifier,
		Audit:       a.audit,
		Reporter:    a.reporter,
		Metrics:     m,
		Logger:      logger,
	})
	return a, nil
}

func newNotifier(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (notify.Dispatcher, error) {
	switch cfg.NotifyBackend {
	case config.NotifyKafka:
		return kafka.New(kafka.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger), nil
	case config.NotifyMQTT:
		d, err := mqtt.Connect(ctx, mqtt.Config{Broker: cfg.MQTTBroker, ClientID: cfg.MQTTClientID, Topic: cfg.MQTTTopic}, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return notify.NewLogDispatcher(logger), nil
	}
}

// Run drives the queue and serves /metrics until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}))
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Queue.Run(ctx)
	})
	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.MetricsAddr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close flushes pending audit entries and error reports, then releases
// the notifier and the database.
func (a *App) Close() error {
	var errs []error
	if a.audit != nil {
		a.audit.Close()
	}
	if a.reporter != nil {
		a.reporter.Flush(shutdownTimeout)
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close notifier: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
