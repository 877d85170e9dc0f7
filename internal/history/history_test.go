package history

import (
	"context"
	"encoding/json"
	"testing"

	"upscan/internal/model"
	"upscan/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListRuns(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	p := &model.Profile{ID: "xyz789", FirstName: "Jane", Metadata: map[string]any{}}
	if err := store.RecordRun(ctx, "upwork", "task-1", p); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := store.ListRuns(ctx, "upwork", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].TaskID != "task-1" || runs[0].Scanner != "upwork" {
		t.Errorf("run = %+v", runs[0])
	}
	if runs[0].Diff != nil {
		t.Error("first run should have no diff")
	}

	var stored model.Profile
	if err := json.Unmarshal(runs[0].Result, &stored); err != nil {
		t.Fatalf("decoding stored result: %v", err)
	}
	if stored.ID != "xyz789" {
		t.Errorf("stored ID = %q, want xyz789", stored.ID)
	}
}

func TestSecondRunCarriesDiff(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first := &model.Profile{ID: "xyz789", JobTitle: "Backend Engineer", Metadata: map[string]any{}}
	second := &model.Profile{ID: "xyz789", JobTitle: "Staff Engineer", Metadata: map[string]any{}}

	if err := store.RecordRun(ctx, "upwork", "task-1", first); err != nil {
		t.Fatalf("RecordRun first: %v", err)
	}
	if err := store.RecordRun(ctx, "upwork", "task-2", second); err != nil {
		t.Fatalf("RecordRun second: %v", err)
	}

	runs, err := store.ListRuns(ctx, "upwork", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	// Newest first.
	if runs[0].TaskID != "task-2" {
		t.Errorf("runs[0].TaskID = %q, want task-2", runs[0].TaskID)
	}
	if runs[0].Diff == nil {
		t.Fatal("second run should carry a diff against the first")
	}

	var chunks []chunk
	if err := json.Unmarshal(runs[0].Diff, &chunks); err != nil {
		t.Fatalf("decoding diff: %v", err)
	}
	var added, removed bool
	for _, c := range chunks {
		switch c.Type {
		case "added":
			added = true
		case "removed":
			removed = true
		default:
			t.Errorf("unexpected chunk type %q", c.Type)
		}
	}
	if !added || !removed {
		t.Errorf("diff chunks = %+v, want both added and removed content", chunks)
	}
}

func TestIdenticalRunsProduceNoDiff(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	p := &model.Profile{ID: "xyz789", Metadata: map[string]any{}}
	if err := store.RecordRun(ctx, "upwork", "task-1", p); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := store.RecordRun(ctx, "upwork", "task-2", p); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := store.ListRuns(ctx, "upwork", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if runs[0].Diff != nil {
		t.Errorf("identical runs should not diff, got %s", runs[0].Diff)
	}
}

func TestListRunsScopedByScanner(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.RecordRun(ctx, "upwork", "task-1", &model.Profile{ID: "a"}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := store.RecordRun(ctx, "other", "task-2", &model.Profile{ID: "b"}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := store.ListRuns(ctx, "upwork", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].TaskID != "task-1" {
		t.Errorf("runs = %+v, want only the upwork run", runs)
	}
}

func TestListRunsLimit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		if err := store.RecordRun(ctx, "upwork", id, &model.Profile{ID: id}); err != nil {
			t.Fatalf("RecordRun %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, "upwork", 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d runs, want limit of 2", len(runs))
	}
}
