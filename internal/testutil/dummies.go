// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"upscan/internal/interfaces"
	"upscan/internal/model"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements interfaces.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...interfaces.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...interfaces.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...interfaces.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...interfaces.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...interfaces.Field) interfaces.Logger { return l }

// ─── BrowserSession ────────────────────────────────────────────────────

// DummyBrowser implements interfaces.BrowserSession. Navigations and fetches
// are recorded; responses come from the FetchResults map keyed by URL. URLs
// with no entry return an empty map.
type DummyBrowser struct {
	// CookieJar is returned verbatim from Cookies.
	CookieJar []model.Cookie

	// FetchResults maps request URLs to canned fetch responses.
	FetchResults map[string]any

	// FailFetch maps request URLs to errors returned instead of a response.
	FailFetch map[string]error

	// ScriptErr, when set, is returned from every ExecuteScript call.
	ScriptErr error

	mu          sync.Mutex
	Navigations []string
	Fetches     []*model.FetchRequest
	Scripts     []string
	CloseCount  int
}

func (d *DummyBrowser) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Navigations = append(d.Navigations, url)
	return nil
}

func (d *DummyBrowser) Cookies(_ context.Context) ([]model.Cookie, error) {
	return d.CookieJar, nil
}

func (d *DummyBrowser) ExecuteScript(_ context.Context, script string, _ any) error {
	d.mu.Lock()
	d.Scripts = append(d.Scripts, script)
	d.mu.Unlock()
	return d.ScriptErr
}

func (d *DummyBrowser) Fetch(_ context.Context, req *model.FetchRequest) (any, error) {
	d.mu.Lock()
	d.Fetches = append(d.Fetches, req)
	d.mu.Unlock()

	if err, ok := d.FailFetch[req.URL]; ok {
		return nil, err
	}
	if res, ok := d.FetchResults[req.URL]; ok {
		return res, nil
	}
	return map[string]any{}, nil
}

func (d *DummyBrowser) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCount++
	return nil
}

// Opener returns an interfaces.OpenSession handing out this dummy.
func (d *DummyBrowser) Opener() interfaces.OpenSession {
	return func(_ context.Context) (interfaces.BrowserSession, error) {
		return d, nil
	}
}

// FailingOpener returns an interfaces.OpenSession that always fails.
func FailingOpener(msg string) interfaces.OpenSession {
	return func(_ context.Context) (interfaces.BrowserSession, error) {
		return nil, fmt.Errorf("%s", msg)
	}
}

// ─── Recorder ──────────────────────────────────────────────────────────

// DummyRecorder records RecordRun calls in memory.
type DummyRecorder struct {
	Err error

	mu       sync.Mutex
	Recorded []RecordedRun
}

// RecordedRun is one captured RecordRun call.
type RecordedRun struct {
	Scanner string
	TaskID  string
	Profile *model.Profile
}

func (r *DummyRecorder) RecordRun(_ context.Context, scanner, taskID string, profile *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Recorded = append(r.Recorded, RecordedRun{Scanner: scanner, TaskID: taskID, Profile: profile})
	return r.Err
}

// Runs returns a snapshot of the recorded calls.
func (r *DummyRecorder) Runs() []RecordedRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedRun, len(r.Recorded))
	copy(out, r.Recorded)
	return out
}
