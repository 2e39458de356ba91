package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a Processor that remembers the order it saw tasks in.
type recorder struct {
	mu   sync.Mutex
	seen []string
	fail func(task domain.QueueTask) error
}

func (r *recorder) Process(_ context.Context, task domain.QueueTask) (Result, error) {
	r.mu.Lock()
	r.seen = append(r.seen, task.Note.RawText)
	r.mu.Unlock()
	if r.fail != nil {
		if err := r.fail(task); err != nil {
			return Result{}, err
		}
	}
	return Result{AnnotationID: "ann-" + task.ID, Warnings: []string{"checked"}}, nil
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func note(text string) domain.VoiceNote {
	return domain.VoiceNote{TenantID: "shop-1", ActorID: "tech-1", InspectionID: "insp-1", RawText: text}
}

func newTestQueue(cfg Config, proc Processor, opts ...Option) *Queue {
	n := 0
	opts = append([]Option{WithIDGenerator(func() string { n++; return fmt.Sprintf("task-%d", n) })}, opts...)
	return New(cfg, proc, zerolog.Nop(), opts...)
}

func TestPriorityThenFIFO(t *testing.T) {
	rec := &recorder{}
	q := newTestQueue(Config{BatchSize: 1}, rec)

	for _, in := range []struct {
		text string
		p    domain.Priority
	}{
		{"low-1", domain.PriorityLow},
		{"medium-1", domain.PriorityMedium},
		{"low-2", domain.PriorityLow},
		{"high-1", domain.PriorityHigh},
		{"medium-2", ""},
		{"high-2", domain.PriorityHigh},
	} {
		_, err := q.Enqueue(note(in.text), in.p)
		require.NoError(t, err)
	}

	for q.Drain(context.Background()) > 0 {
	}

	assert.Equal(t, []string{"high-1", "high-2", "medium-1", "medium-2", "low-1", "low-2"}, rec.order())
}

func TestHighPriorityOvertakesPendingLow(t *testing.T) {
	rec := &recorder{}
	q := newTestQueue(Config{BatchSize: 1}, rec)

	_, err := q.Enqueue(note("low"), domain.PriorityLow)
	require.NoError(t, err)
	_, err = q.Enqueue(note("high"), domain.PriorityHigh)
	require.NoError(t, err)

	q.Drain(context.Background())
	assert.Equal(t, []string{"high"}, rec.order())
}

func TestCompletedTask(t *testing.T) {
	q := newTestQueue(Config{}, &recorder{})

	id, err := q.Enqueue(note("front brakes at 5mm"), domain.PriorityMedium)
	require.NoError(t, err)

	pending := q.Status(id)
	require.NotNil(t, pending)
	assert.Equal(t, domain.TaskPending, pending.Status)
	assert.Equal(t, domain.PriorityMedium, pending.Priority)

	assert.Equal(t, 1, q.Drain(context.Background()))

	done := q.Status(id)
	require.NotNil(t, done)
	assert.Equal(t, domain.TaskCompleted, done.Status)
	assert.Equal(t, "ann-"+id, done.AnnotationID)
	assert.Equal(t, []string{"checked"}, done.Warnings)
	assert.NotNil(t, done.FinishedAt)
	assert.Zero(t, done.RetryCount)

	assert.Equal(t, domain.QueueStats{Completed: 1}, q.Stats())
}

func TestRetriesThenFails(t *testing.T) {
	rec := &recorder{fail: func(domain.QueueTask) error { return errors.New("store unavailable") }}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := newTestQueue(Config{MaxRetries: 3}, rec, WithMetrics(m))

	id, err := q.Enqueue(note("tires"), domain.PriorityHigh)
	require.NoError(t, err)

	for attempt := 1; attempt <= 2; attempt++ {
		q.Drain(context.Background())
		task := q.Status(id)
		require.NotNil(t, task)
		assert.Equal(t, domain.TaskPending, task.Status, "attempt %d", attempt)
		assert.Equal(t, attempt, task.RetryCount)
		assert.Contains(t, task.LastError, "store unavailable")
	}

	q.Drain(context.Background())
	task := q.Status(id)
	require.NotNil(t, task)
	assert.Equal(t, domain.TaskFailed, task.Status)
	assert.Equal(t, 3, task.RetryCount)
	assert.Contains(t, task.LastError, "attempt 3")

	assert.Zero(t, q.Drain(context.Background()), "failed tasks are not retried automatically")
	assert.Len(t, rec.order(), 3)
	assert.Equal(t, domain.QueueStats{Failed: 1}, q.Stats())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TaskRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksFinished.WithLabelValues("failed")))
}

func TestRetryKeepsPlaceInTier(t *testing.T) {
	failOnce := map[string]bool{"first": true}
	var mu sync.Mutex
	rec := &recorder{fail: func(task domain.QueueTask) error {
		mu.Lock()
		defer mu.Unlock()
		if failOnce[task.Note.RawText] {
			delete(failOnce, task.Note.RawText)
			return errors.New("transient")
		}
		return nil
	}}
	q := newTestQueue(Config{BatchSize: 1}, rec)

	_, err := q.Enqueue(note("first"), domain.PriorityMedium)
	require.NoError(t, err)
	_, err = q.Enqueue(note("second"), domain.PriorityMedium)
	require.NoError(t, err)

	for q.Drain(context.Background()) > 0 {
	}
	assert.Equal(t, []string{"first", "first", "second"}, rec.order())
}

func TestBatchRunsConcurrently(t *testing.T) {
	release := make(chan struct{})
	proc := ProcessorFunc(func(ctx context.Context, task domain.QueueTask) (Result, error) {
		<-release
		return Result{AnnotationID: "ann"}, nil
	})
	q := newTestQueue(Config{BatchSize: 5}, proc)

	for n := 0; n < 7; n++ {
		_, err := q.Enqueue(note(fmt.Sprintf("note %d", n)), domain.PriorityLow)
		require.NoError(t, err)
	}

	done := make(chan int)
	go func() { done <- q.Drain(context.Background()) }()

	require.Eventually(t, func() bool {
		st := q.Stats()
		return st.Processing == 5 && st.Pending == 2
	}, time.Second, 5*time.Millisecond)

	close(release)
	assert.Equal(t, 5, <-done)
	assert.Equal(t, domain.QueueStats{Pending: 2, Completed: 5}, q.Stats())
}

func TestProcessingIgnoresCancellation(t *testing.T) {
	var sawErr error
	proc := ProcessorFunc(func(ctx context.Context, task domain.QueueTask) (Result, error) {
		sawErr = ctx.Err()
		return Result{}, nil
	})
	q := newTestQueue(Config{}, proc)
	id, err := q.Enqueue(note("battery"), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Drain(ctx)

	assert.NoError(t, sawErr)
	assert.Equal(t, domain.TaskCompleted, q.Status(id).Status)
}

func TestRetentionPurgesTerminalTasks(t *testing.T) {
	q := newTestQueue(Config{Retention: 30 * time.Millisecond}, &recorder{})

	id, err := q.Enqueue(note("wipers"), domain.PriorityLow)
	require.NoError(t, err)
	q.Drain(context.Background())
	require.NotNil(t, q.Status(id))

	require.Eventually(t, func() bool { return q.Status(id) == nil }, time.Second, 10*time.Millisecond)

	q.Drain(context.Background())
	assert.Equal(t, domain.QueueStats{}, q.Stats())
}

func TestEnqueueValidation(t *testing.T) {
	q := newTestQueue(Config{}, &recorder{})

	_, err := q.Enqueue(note("   "), domain.PriorityHigh)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = q.Enqueue(note("brakes"), "urgent")
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, domain.QueueStats{}, q.Stats())
}

func TestStatusUnknownAndSnapshot(t *testing.T) {
	q := newTestQueue(Config{}, &recorder{})
	assert.Nil(t, q.Status("task-404"))

	id, err := q.Enqueue(note("coolant"), domain.PriorityLow)
	require.NoError(t, err)
	q.Drain(context.Background())

	snap := q.Status(id)
	require.NotNil(t, snap)
	snap.Warnings[0] = "tampered"
	assert.Equal(t, []string{"checked"}, q.Status(id).Warnings)
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	q := newTestQueue(Config{DrainInterval: 5 * time.Millisecond}, &recorder{})
	id, err := q.Enqueue(note("exhaust"), domain.PriorityLow)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error)
	go func() { stopped <- q.Run(ctx) }()

	require.Eventually(t, func() bool {
		task := q.Status(id)
		return task != nil && task.Status == domain.TaskCompleted
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-stopped)
}
