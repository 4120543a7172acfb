// Package async runs extraction jobs in the background and reports their
// progress on the event bus.
package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/events"
	"github.com/joseph-ayodele/invoice-tracker/internal/pipeline"
)

// ErrShuttingDown is returned by Submit once Shutdown has begun.
var ErrShuttingDown = errors.New("orchestrator is shutting down")

type Runner interface {
	Run(ctx context.Context, doc entity.RawDocument) pipeline.Outcome
}

type OrderStore interface {
	CreateOrder(ctx context.Context, rec *entity.InvoiceRecord) (*entity.InvoiceRecord, error)
}

type Publisher interface {
	Publish(ev events.Event)
}

// Task is a handle on a submitted job.
type Task struct {
	ID     string
	done   chan struct{}
	result events.Event

	mu     sync.Mutex
	status constants.JobStatus
}

func newTask() *Task {
	return &Task{ID: uuid.NewString(), done: make(chan struct{}), status: constants.JobStatusQueued}
}

// Status is the last status published for the job; queued until the first event is out.
func (t *Task) Status() constants.JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) setStatus(s constants.JobStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Done is closed when the job reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result is the terminal event; valid after Done is closed.
func (t *Task) Result() events.Event {
	<-t.done
	return t.result
}

type Orchestrator struct {
	runner       Runner
	store        OrderStore
	pub          Publisher
	logger       *slog.Logger
	jobTimeout   time.Duration
	storeTimeout time.Duration

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
	tasks   map[string]*Task // in flight
}

type Option func(*Orchestrator)

// WithStoreTimeout bounds persisting a record. The store runs after the job
// deadline has been spent on extraction, so it gets its own budget.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.storeTimeout = d
		}
	}
}

// WithJobTimeout bounds a whole job so it always reaches a terminal state.
func WithJobTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.jobTimeout = d
		}
	}
}

func NewOrchestrator(runner Runner, store OrderStore, pub Publisher, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		runner:       runner,
		store:        store,
		pub:          pub,
		logger:       logger,
		jobTimeout:   3 * time.Minute,
		storeTimeout: 30 * time.Second,
		tasks:        map[string]*Task{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit accepts a document and starts its job on a new goroutine. The job
// does not inherit ctx cancellation; it runs until it reaches a terminal state.
func (o *Orchestrator) Submit(ctx context.Context, doc entity.RawDocument) (*Task, error) {
	o.mu.Lock()
	if o.closing {
		o.mu.Unlock()
		return nil, ErrShuttingDown
	}
	task := newTask()
	o.wg.Add(1)
	o.tasks[task.ID] = task
	o.mu.Unlock()

	o.logger.Info("job.submitted", "job_id", task.ID, "status", task.Status(), "file", doc.Filename, "kind", doc.Kind,
		"req_id", common.RequestIDFromContext(ctx))

	jobCtx := common.WithJobID(context.WithoutCancel(ctx), task.ID)
	go o.run(jobCtx, task, doc)
	return task, nil
}

// InFlight reports the number of jobs that have not reached a terminal state.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tasks)
}

// Status reports the current status of an in-flight job.
func (o *Orchestrator) Status(jobID string) (constants.JobStatus, bool) {
	o.mu.Lock()
	t, ok := o.tasks[jobID]
	o.mu.Unlock()
	if !ok {
		return "", false
	}
	return t.Status(), true
}

// Shutdown stops accepting jobs and waits for running ones or ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.logger.Info("orchestrator.stopped")
		return nil
	case <-ctx.Done():
		o.logger.Warn("orchestrator.shutdown_timeout", "in_flight", o.InFlight())
		return ctx.Err()
	}
}

func (o *Orchestrator) run(ctx context.Context, task *Task, doc entity.RawDocument) {
	log := common.LoggerFrom(ctx, o.logger)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("job.panic", "panic", r)
			task.result = o.emit(events.JobEvent(task.ID, constants.JobStatusError, fmt.Sprintf("internal error: %v", r)))
		}
		close(task.done)
		o.mu.Lock()
		delete(o.tasks, task.ID)
		o.mu.Unlock()
		o.wg.Done()
		log.Info("job.finished", "status", task.result.Status, "elapsed_ms", time.Since(start).Milliseconds())
	}()

	runCtx, cancel := context.WithTimeout(ctx, o.jobTimeout)
	defer cancel()

	o.emit(events.JobEvent(task.ID, constants.JobStatusProcessing, "processing document"))

	out := o.runner.Run(runCtx, doc)

	if !out.Succeeded() {
		task.result = o.fail(task.ID, out)
		return
	}

	rec := out.Record
	rec.Status = constants.OrderStatusExtracted
	ev := events.JobEvent(task.ID, constants.JobStatusExtracted, "data extracted")
	ev.Data = rec
	o.emit(ev)

	// extraction may have spent the whole job deadline
	storeCtx, storeCancel := context.WithTimeout(context.WithoutCancel(ctx), o.storeTimeout)
	defer storeCancel()
	stored, err := o.store.CreateOrder(storeCtx, rec)
	if err != nil {
		err = common.Persistence("create order", err)
		log.Error("job.persist_failed", "error", err)
		task.result = o.emit(events.JobEvent(task.ID, constants.JobStatusError, err.Error()))
		return
	}

	done := events.JobEvent(task.ID, constants.JobStatusCompleted, "invoice stored")
	done.OrderID = stored.ID
	done.Data = stored
	task.result = o.emit(done)
	log.Info("job.completed", "order_id", stored.ID, "method", out.Method, "provenance", out.Provenance)
}

// fail reports a pipeline failure. A generated fallback record is emitted as
// extracted data first and never persisted.
func (o *Orchestrator) fail(jobID string, out pipeline.Outcome) events.Event {
	if out.Fallback != nil {
		ev := events.JobEvent(jobID, constants.JobStatusExtracted, "no usable text; sample data generated")
		ev.Fallback = true
		ev.Data = out.Fallback
		o.emit(ev)
	}

	msg := "extraction failed"
	if out.Err != nil {
		msg = out.Err.Error()
	}
	ev := events.JobEvent(jobID, constants.JobStatusError, msg)
	if out.Fallback != nil {
		ev.Fallback = true
		ev.Data = out.Fallback
	}
	o.logger.Warn("job.failed", "job_id", jobID, "error", out.Err, "fallback", out.Fallback != nil)
	return o.emit(ev)
}

// emit publishes best-effort; a misbehaving publisher never fails a job.
// The task's status moves once the event has been handed to the publisher.
func (o *Orchestrator) emit(ev events.Event) (sent events.Event) {
	sent = ev
	defer o.track(ev)
	if o.pub == nil {
		return sent
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("job.publish_panic", "job_id", ev.JobID, "panic", r)
		}
	}()
	o.pub.Publish(ev)
	return sent
}

func (o *Orchestrator) track(ev events.Event) {
	o.mu.Lock()
	t, ok := o.tasks[ev.JobID]
	o.mu.Unlock()
	if ok {
		t.setStatus(ev.Status)
	}
}
