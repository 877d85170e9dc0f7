package taskqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"upscan/internal/model"
	"upscan/internal/scanner"
	"upscan/internal/settings"
	"upscan/internal/testutil"
)

// ─── Stubs ─────────────────────────────────────────────────────────────

// stubScanner fails its first FailFirst runs, then succeeds with Profile.
type stubScanner struct {
	FailFirst int
	Profile   *model.Profile

	mu   sync.Mutex
	runs int
}

func (s *stubScanner) Run(_ context.Context) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	if s.runs <= s.FailFirst {
		return nil, errors.New("scrape failed")
	}
	return s.Profile, nil
}

func (s *stubScanner) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

type stubCreator struct {
	scanner *stubScanner

	mu    sync.Mutex
	calls int
}

func (c *stubCreator) Create(_ settings.ScannerSettings) (scanner.Scanner, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.scanner, nil
}

func (c *stubCreator) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// stubSettings serves one settings block, or an error.
type stubSettings struct {
	block settings.ScannerSettings
	err   error
}

func (s *stubSettings) ForScanner(_ string) (settings.ScannerSettings, error) {
	return s.block, s.err
}

func validSettings() *stubSettings {
	return &stubSettings{block: settings.ScannerSettings{
		"url":           "https://example.com/login",
		"username":      "u",
		"password":      "p",
		"secret_answer": "a",
	}}
}

func fastConfig() Config {
	return Config{MaxAttempts: 3, RetryDelay: time.Millisecond, AttemptTimeout: time.Second}
}

// waitTerminal drains the task's event stream until the queue closes it,
// collecting every event seen along the way.
func waitTerminal(t *testing.T, task *Task) []model.TaskEvent {
	t.Helper()
	var events []model.TaskEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-task.Events:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("task did not reach a terminal state")
		}
	}
}

// ─── Tests ─────────────────────────────────────────────────────────────

func TestEnqueueSuccess(t *testing.T) {
	t.Parallel()

	sc := &stubScanner{Profile: &model.Profile{ID: "xyz789", FirstName: "Jane"}}
	reg := scanner.NewRegistry()
	reg.Register("upwork", &stubCreator{scanner: sc})
	rec := &testutil.DummyRecorder{}

	q := New(fastConfig(), reg, validSettings(), rec, &testutil.DummyLogger{})
	defer q.Shutdown()

	task, err := q.Enqueue("upwork")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitTerminal(t, task)

	status, ok := q.Status(task.ID)
	if !ok {
		t.Fatal("task vanished")
	}
	if status.State != model.TaskSucceeded {
		t.Fatalf("State = %s, want succeeded", status.State)
	}
	if status.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", status.Attempts)
	}
	p, ok := status.Result.(*model.Profile)
	if !ok || p.ID != "xyz789" {
		t.Errorf("Result = %v, want the profile", status.Result)
	}
	if status.EndedAt == nil {
		t.Error("EndedAt not set on a terminal task")
	}

	recorded := rec.Runs()
	if len(recorded) != 1 || recorded[0].TaskID != task.ID || recorded[0].Profile.ID != "xyz789" {
		t.Errorf("recorded runs = %+v", recorded)
	}
}

func TestEnqueueUnknownScanner(t *testing.T) {
	t.Parallel()

	q := New(fastConfig(), scanner.NewRegistry(), validSettings(), nil, &testutil.DummyLogger{})
	defer q.Shutdown()

	task, err := q.Enqueue("nonexistent")
	if err != nil {
		t.Fatalf("Enqueue must accept unknown names: %v", err)
	}
	waitTerminal(t, task)

	status, _ := q.Status(task.ID)
	if status.State != model.TaskFailed {
		t.Fatalf("State = %s, want failed", status.State)
	}
	if status.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0 (no attempt for unknown scanner)", status.Attempts)
	}
	msg, _ := status.Result.(string)
	if msg == "" {
		t.Error("failed task should carry an error summary")
	}
}

func TestEnqueueInvalidSettings(t *testing.T) {
	t.Parallel()

	creator := &stubCreator{scanner: &stubScanner{}}
	reg := scanner.NewRegistry()
	reg.Register("upwork", creator)
	src := &stubSettings{err: &settings.ValidationError{Scanner: "upwork", Missing: []string{"password"}}}

	q := New(fastConfig(), reg, src, nil, &testutil.DummyLogger{})
	defer q.Shutdown()

	task, _ := q.Enqueue("upwork")
	waitTerminal(t, task)

	status, _ := q.Status(task.ID)
	if status.State != model.TaskFailed {
		t.Fatalf("State = %s, want failed", status.State)
	}
	if status.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0 (validation is not retried)", status.Attempts)
	}
	if creator.Calls() != 0 {
		t.Errorf("creator called %d times despite invalid settings", creator.Calls())
	}
}

func TestRetryExhaustion(t *testing.T) {
	t.Parallel()

	sc := &stubScanner{FailFirst: 100}
	reg := scanner.NewRegistry()
	reg.Register("upwork", &stubCreator{scanner: sc})

	cfg := fastConfig()
	cfg.MaxAttempts = 2
	q := New(cfg, reg, validSettings(), nil, &testutil.DummyLogger{})
	defer q.Shutdown()

	task, _ := q.Enqueue("upwork")
	events := waitTerminal(t, task)

	status, _ := q.Status(task.ID)
	if status.State != model.TaskFailed {
		t.Fatalf("State = %s, want failed", status.State)
	}
	if sc.Runs() != 2 {
		t.Errorf("scanner ran %d times, want exactly 2", sc.Runs())
	}
	if status.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", status.Attempts)
	}

	sawRetrying := false
	for _, ev := range events {
		if ev.State == model.TaskRetrying {
			sawRetrying = true
		}
	}
	if !sawRetrying {
		t.Error("event stream never showed the retrying state")
	}
}

func TestRetryThenSucceed(t *testing.T) {
	t.Parallel()

	sc := &stubScanner{FailFirst: 1, Profile: &model.Profile{ID: "xyz789"}}
	reg := scanner.NewRegistry()
	reg.Register("upwork", &stubCreator{scanner: sc})

	q := New(fastConfig(), reg, validSettings(), nil, &testutil.DummyLogger{})
	defer q.Shutdown()

	task, _ := q.Enqueue("upwork")
	waitTerminal(t, task)

	status, _ := q.Status(task.ID)
	if status.State != model.TaskSucceeded {
		t.Fatalf("State = %s, want succeeded after one retry", status.State)
	}
	if status.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", status.Attempts)
	}
}

func TestStatusUnknownTask(t *testing.T) {
	t.Parallel()

	q := New(fastConfig(), scanner.NewRegistry(), validSettings(), nil, &testutil.DummyLogger{})
	defer q.Shutdown()

	if _, ok := q.Status("no-such-id"); ok {
		t.Error("Status returned ok for an unknown task ID")
	}
}

func TestShutdownRejectsNewTasks(t *testing.T) {
	t.Parallel()

	q := New(fastConfig(), scanner.NewRegistry(), validSettings(), nil, &testutil.DummyLogger{})
	q.Shutdown()

	if _, err := q.Enqueue("upwork"); err == nil {
		t.Error("Enqueue after Shutdown should fail")
	}
}

func TestListIncludesAllTasks(t *testing.T) {
	t.Parallel()

	q := New(fastConfig(), scanner.NewRegistry(), validSettings(), nil, &testutil.DummyLogger{})
	defer q.Shutdown()

	t1, _ := q.Enqueue("a")
	t2, _ := q.Enqueue("b")
	waitTerminal(t, t1)
	waitTerminal(t, t2)

	list := q.List()
	if len(list) != 2 {
		t.Fatalf("List returned %d tasks, want 2", len(list))
	}
}
