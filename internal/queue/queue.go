// Package queue schedules voice notes for asynchronous processing with
// priority ordering and bounded retry. Tasks live in process memory only and
// are lost on restart.
package queue

import (
	"container/heap"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/metrics"
)

// Result is what a successful processing attempt produced.
type Result struct {
	AnnotationID string
	Warnings     []string
}

// Processor turns one task into a stored annotation. It receives a copy of
// the task and must not retain it.
type Processor interface {
	Process(ctx context.Context, task domain.QueueTask) (Result, error)
}

type ProcessorFunc func(ctx context.Context, task domain.QueueTask) (Result, error)

func (f ProcessorFunc) Process(ctx context.Context, task domain.QueueTask) (Result, error) {
	return f(ctx, task)
}

type Config struct {
	DrainInterval time.Duration
	BatchSize     int
	MaxRetries    int
	Retention     time.Duration
}

func DefaultConfig() Config {
	return Config{
		DrainInterval: 5 * time.Second,
		BatchSize:     5,
		MaxRetries:    3,
		Retention:     24 * time.Hour,
	}
}

type Queue struct {
	cfg     Config
	proc    Processor
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string

	mu      sync.Mutex
	pending taskHeap
	live    map[string]*entry // pending and processing
	seq     uint64

	// finished holds completed and failed tasks for cfg.Retention. Expired
	// entries are purged at the start of every drain; there is no janitor
	// goroutine.
	finished *cache.Cache
}

type Option func(*Queue)

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(q *Queue) { q.newID = newID }
}

func New(cfg Config, proc Processor, logger zerolog.Logger, opts ...Option) *Queue {
	def := DefaultConfig()
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = def.DrainInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}

	q := &Queue{
		cfg:      cfg,
		proc:     proc,
		logger:   logger.With().Str("component", "queue").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
		live:     make(map[string]*entry),
		finished: cache.New(cfg.Retention, 0),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue accepts a note and returns its task id. An empty priority means
// medium.
func (q *Queue) Enqueue(note domain.VoiceNote, priority domain.Priority) (string, error) {
	if strings.TrimSpace(note.RawText) == "" {
		return "", domain.Invalid("rawText", "must not be empty")
	}
	p, err := domain.ParsePriority(string(priority))
	if err != nil {
		return "", err
	}

	now := q.now().UTC()
	task := domain.QueueTask{
		ID:         q.newID(),
		Note:       note,
		Priority:   p,
		Status:     domain.TaskPending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}

	q.mu.Lock()
	q.seq++
	e := &entry{task: task, seq: q.seq}
	heap.Push(&q.pending, e)
	q.live[task.ID] = e
	q.mu.Unlock()

	q.metrics.RecordEnqueued(string(p))
	q.logger.Debug().Str("task_id", task.ID).Str("priority", string(p)).Msg("task enqueued")
	return task.ID, nil
}

// Status returns a snapshot of the task, or nil when the id is unknown or
// its retention window has passed.
func (q *Queue) Status(id string) *domain.QueueTask {
	q.mu.Lock()
	if e, ok := q.live[id]; ok {
		t := clone(e.task)
		q.mu.Unlock()
		return &t
	}
	q.mu.Unlock()

	if v, ok := q.finished.Get(id); ok {
		t := clone(v.(domain.QueueTask))
		return &t
	}
	return nil
}

func (q *Queue) Stats() domain.QueueStats {
	q.mu.Lock()
	st := domain.QueueStats{
		Pending:    q.pending.Len(),
		Processing: len(q.live) - q.pending.Len(),
	}
	q.mu.Unlock()

	for _, item := range q.finished.Items() {
		task := item.Object.(domain.QueueTask)
		if !task.Status.IsTerminal() {
			continue
		}
		if task.Status == domain.TaskCompleted {
			st.Completed++
		} else {
			st.Failed++
		}
	}
	return st
}

// Drain runs one cycle: purge expired terminal tasks, then process up to
// BatchSize pending tasks concurrently and wait for all of them. Processing
// is not cancelled when ctx is; a started task always runs to an outcome.
func (q *Queue) Drain(ctx context.Context) int {
	start := time.Now()
	q.finished.DeleteExpired()

	batch := q.claim()
	if len(batch) == 0 {
		q.recordDepth()
		return 0
	}

	pctx := context.WithoutCancel(ctx)
	var g errgroup.Group
	for _, task := range batch {
		g.Go(func() error {
			res, err := q.proc.Process(pctx, task)
			q.complete(task.ID, res, err)
			return nil
		})
	}
	_ = g.Wait()

	q.metrics.RecordDrain(time.Since(start).Seconds())
	q.recordDepth()
	return len(batch)
}

// Run drains every DrainInterval until ctx is cancelled. An in-flight drain
// finishes before Run returns.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.cfg.DrainInterval)
	defer ticker.Stop()

	q.logger.Info().Dur("interval", q.cfg.DrainInterval).Int("batch_size", q.cfg.BatchSize).Msg("queue started")
	for {
		select {
		case <-ctx.Done():
			q.logger.Info().Int("pending", q.Stats().Pending).Msg("queue stopped")
			return nil
		case <-ticker.C:
			q.Drain(ctx)
		}
	}
}

func (q *Queue) claim() []domain.QueueTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now().UTC()
	var batch []domain.QueueTask
	for len(batch) < q.cfg.BatchSize && q.pending.Len() > 0 {
		e := heap.Pop(&q.pending).(*entry)
		e.task.Status = domain.TaskProcessing
		e.task.UpdatedAt = now
		batch = append(batch, clone(e.task))
	}
	return batch
}

func (q *Queue) complete(id string, res Result, procErr error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.live[id]
	if !ok {
		return
	}
	now := q.now().UTC()
	e.task.UpdatedAt = now

	if procErr == nil {
		e.task.Status = domain.TaskCompleted
		e.task.AnnotationID = res.AnnotationID
		e.task.Warnings = res.Warnings
		e.task.LastError = ""
		q.logger.Debug().Str("task_id", id).Str("annotation_id", res.AnnotationID).Msg("task completed")
	} else {
		e.task.RetryCount++
		perr := &domain.QueueProcessingError{TaskID: id, Attempt: e.task.RetryCount, Err: procErr}
		e.task.LastError = perr.Error()

		if e.task.RetryCount < q.cfg.MaxRetries {
			e.task.Status = domain.TaskPending
			// The original sequence number is kept, so a retried task does not
			// lose its place behind newer tasks of the same priority.
			heap.Push(&q.pending, e)
			q.metrics.RecordRetry()
			q.logger.Warn().Err(perr).Str("task_id", id).Int("retry_count", e.task.RetryCount).Msg("task failed, will retry")
		} else {
			e.task.Status = domain.TaskFailed
			q.logger.Error().Err(perr).Str("task_id", id).Int("retry_count", e.task.RetryCount).Msg("task failed permanently")
		}
	}

	if e.task.Status.IsTerminal() {
		q.retire(e, now)
		q.metrics.RecordTaskFinished(string(e.task.Status))
	}
}

// retire moves a terminal task from the live set into retention. Caller
// holds q.mu.
func (q *Queue) retire(e *entry, now time.Time) {
	e.task.FinishedAt = &now
	delete(q.live, e.task.ID)
	q.finished.Set(e.task.ID, clone(e.task), cache.DefaultExpiration)
}

func (q *Queue) recordDepth() {
	st := q.Stats()
	q.metrics.RecordQueueDepth(st.Pending, st.Processing, st.Completed, st.Failed)
}

func clone(t domain.QueueTask) domain.QueueTask {
	if t.Warnings != nil {
		t.Warnings = append([]string(nil), t.Warnings...)
	}
	if t.FinishedAt != nil {
		at := *t.FinishedAt
		t.FinishedAt = &at
	}
	if t.Note.AudioDurationSeconds != nil {
		d := *t.Note.AudioDurationSeconds
		t.Note.AudioDurationSeconds = &d
	}
	return t
}
