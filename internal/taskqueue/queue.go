// Package taskqueue runs scans as asynchronous tasks: submit a scanner
// name, get a task handle, poll it for state and result. Failed scrapes
// are retried with a fixed delay up to a bounded attempt count; scanner
// resolution and settings validation happen before the first attempt and
// are never retried.
package taskqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"upscan/internal/interfaces"
	"upscan/internal/model"
	"upscan/internal/scanner"
	"upscan/internal/settings"
)

// SettingsSource is the per-scanner settings lookup the queue consults
// before starting any attempt.
type SettingsSource interface {
	ForScanner(name string) (settings.ScannerSettings, error)
}

// Recorder receives the normalized profile of every successful scan.
// Recording failures are logged, never surfaced as task failures.
type Recorder interface {
	RecordRun(ctx context.Context, scannerName, taskID string, profile *model.Profile) error
}

// Config tunes the retry policy.
type Config struct {
	// MaxAttempts is the total number of scrape attempts per task.
	MaxAttempts int

	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration

	// AttemptTimeout bounds a single scrape attempt.
	AttemptTimeout time.Duration
}

// DefaultConfig matches the production retry policy: three attempts
// total, five seconds apart.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		RetryDelay:     5 * time.Second,
		AttemptTimeout: 3 * time.Minute,
	}
}

// Task is one asynchronous scan. Fields are owned by the queue; read
// them through Queue.Status to get a consistent snapshot.
type Task struct {
	ID          string
	Scanner     string
	State       model.TaskState
	Attempts    int
	Error       string
	Profile     *model.Profile
	SubmittedAt time.Time
	EndedAt     *time.Time

	// Events streams state changes; closed when the task reaches a
	// terminal state.
	Events chan model.TaskEvent
}

// Queue executes scan tasks on worker goroutines, one per task.
type Queue struct {
	cfg      Config
	registry *scanner.Registry
	settings SettingsSource
	recorder Recorder
	logger   interfaces.Logger

	mu     sync.Mutex
	tasks  map[string]*Task
	closed bool
	wg     sync.WaitGroup
}

func New(cfg Config, reg *scanner.Registry, src SettingsSource, rec Recorder, logger interfaces.Logger) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultConfig().RetryDelay
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	return &Queue{
		cfg:      cfg,
		registry: reg,
		settings: src,
		recorder: rec,
		logger:   logger,
		tasks:    map[string]*Task{},
	}
}

// Enqueue submits a scan for the named scanner and returns its handle in
// the pending state. The name is validated inside the task, not here, so
// enqueueing never fails for an unknown scanner.
func (q *Queue) Enqueue(scannerName string) (*Task, error) {
	task := &Task{
		ID:          uuid.New().String(),
		Scanner:     scannerName,
		State:       model.TaskPending,
		SubmittedAt: time.Now().UTC(),
		Events:      make(chan model.TaskEvent, 16),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, errors.New("task queue is shut down")
	}
	q.tasks[task.ID] = task
	q.wg.Add(1)
	q.mu.Unlock()

	q.emit(task, model.TaskEvent{TaskID: task.ID, Type: model.TaskEventStatus, State: model.TaskPending})
	go q.execute(task)

	return task, nil
}

// Status returns a snapshot of the task, or false when the ID is unknown.
func (q *Queue) Status(taskID string) (model.TaskStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return model.TaskStatus{}, false
	}
	return q.snapshotLocked(task), true
}

// List returns snapshots of every known task.
func (q *Queue) List() []model.TaskStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.TaskStatus, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, q.snapshotLocked(t))
	}
	return out
}

// Shutdown stops accepting tasks and waits for running ones to finish.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) snapshotLocked(t *Task) model.TaskStatus {
	st := model.TaskStatus{
		TaskID:      t.ID,
		Scanner:     t.Scanner,
		State:       t.State,
		Attempts:    t.Attempts,
		SubmittedAt: t.SubmittedAt,
		EndedAt:     t.EndedAt,
	}
	switch {
	case t.State == model.TaskSucceeded && t.Profile != nil:
		st.Result = t.Profile
	case t.Error != "":
		st.Result = t.Error
	}
	return st
}

func (q *Queue) execute(task *Task) {
	defer q.wg.Done()
	defer func() {
		q.mu.Lock()
		now := time.Now().UTC()
		task.EndedAt = &now
		q.mu.Unlock()
		close(task.Events)
	}()

	q.logger.Info("scan task started",
		interfaces.Field{Key: "task_id", Value: task.ID},
		interfaces.Field{Key: "scanner", Value: task.Scanner})

	// Resolution and validation failures are terminal immediately: the
	// scanner set and the settings document will not change between
	// attempts, and no browser session has been opened yet.
	creator, err := q.registry.Resolve(task.Scanner)
	if err != nil {
		q.fail(task, err)
		return
	}
	cfg, err := q.settings.ForScanner(task.Scanner)
	if err != nil {
		q.fail(task, err)
		return
	}
	sc, err := creator.Create(cfg)
	if err != nil {
		q.fail(task, err)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		q.setState(task, model.TaskRunning, attempt)

		ctx, cancel := context.WithTimeout(context.Background(), q.cfg.AttemptTimeout)
		profile, err := sc.Run(ctx)
		cancel()

		if err == nil {
			q.succeed(task, profile)
			return
		}
		lastErr = err
		q.logger.Error("scan attempt failed",
			interfaces.Field{Key: "task_id", Value: task.ID},
			interfaces.Field{Key: "attempt", Value: attempt},
			interfaces.Field{Key: "error", Value: err.Error()})

		if attempt < q.cfg.MaxAttempts {
			q.setState(task, model.TaskRetrying, attempt)
			time.Sleep(q.cfg.RetryDelay)
		}
	}
	q.fail(task, lastErr)
}

func (q *Queue) setState(task *Task, state model.TaskState, attempt int) {
	q.mu.Lock()
	task.State = state
	task.Attempts = attempt
	q.mu.Unlock()
	q.emit(task, model.TaskEvent{TaskID: task.ID, Type: model.TaskEventStatus, State: state, Attempt: attempt})
}

func (q *Queue) succeed(task *Task, profile *model.Profile) {
	// Record before flipping the state so a poller that observes success
	// can already see the run in the history.
	if q.recorder != nil {
		if err := q.recorder.RecordRun(context.Background(), task.Scanner, task.ID, profile); err != nil {
			q.logger.Warn("recording run failed",
				interfaces.Field{Key: "task_id", Value: task.ID},
				interfaces.Field{Key: "error", Value: err.Error()})
		}
	}

	q.mu.Lock()
	task.State = model.TaskSucceeded
	task.Profile = profile
	q.mu.Unlock()

	q.logger.Info("scan task succeeded", interfaces.Field{Key: "task_id", Value: task.ID})
	q.emit(task, model.TaskEvent{TaskID: task.ID, Type: model.TaskEventResult, State: model.TaskSucceeded})
}

func (q *Queue) fail(task *Task, cause error) {
	q.mu.Lock()
	task.State = model.TaskFailed
	task.Error = cause.Error()
	q.mu.Unlock()

	q.logger.Error("scan task failed",
		interfaces.Field{Key: "task_id", Value: task.ID},
		interfaces.Field{Key: "scanner", Value: task.Scanner},
		interfaces.Field{Key: "error", Value: cause.Error()})
	q.emit(task, model.TaskEvent{TaskID: task.ID, Type: model.TaskEventStatus, State: model.TaskFailed, Error: cause.Error()})
}

// emit performs a non-blocking send; events are dropped when the buffer
// is full rather than stalling the worker.
func (q *Queue) emit(task *Task, ev model.TaskEvent) {
	select {
	case task.Events <- ev:
	default:
	}
}
