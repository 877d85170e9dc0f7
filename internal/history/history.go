// Package history persists the normalized profile of every successful
// scan in SQLite and computes a field-level diff against the previous run
// of the same scanner, so profile changes between scans are observable.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"upscan/internal/interfaces"
	"upscan/internal/model"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

// Store is the SQLite-backed run history.
type Store struct {
	db     *sql.DB
	logger interfaces.Logger
}

// Run is one recorded scan result.
type Run struct {
	ID        string          `json:"id"`
	Scanner   string          `json:"scanner"`
	TaskID    string          `json:"task_id"`
	Result    json.RawMessage `json:"result"`
	Diff      json.RawMessage `json:"diff,omitempty"`
	CreatedAt int64           `json:"created_at"`
}

// NewStore opens (creating if needed) the run database under storageRoot.
func NewStore(storageRoot string, logger interfaces.Logger) (*Store, error) {
	if logger == nil {
		return nil, errors.New("history: nil logger provided")
	}
	if err := os.MkdirAll(storageRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(storageRoot, "runs.db"))
	if err != nil {
		return nil, fmt.Errorf("opening run database: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("run history initialized", interfaces.Field{Key: "storage_root", Value: storageRoot})
	return &Store{db: db, logger: logger}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(schemaSQL))
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// RecordRun stores the profile for one successful scan and the diff
// against the scanner's previous run, if any.
func (s *Store) RecordRun(ctx context.Context, scannerName, taskID string, profile *model.Profile) error {
	result, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	var diffJSON sql.NullString
	prev, err := s.latestResult(ctx, scannerName)
	if err != nil {
		return err
	}
	if prev != "" {
		d, err := diffRuns(prev, string(result))
		if err != nil {
			s.logger.Warn("computing run diff failed",
				interfaces.Field{Key: "scanner", Value: scannerName},
				interfaces.Field{Key: "error", Value: err.Error()})
		} else if d != "" {
			diffJSON = sql.NullString{String: d, Valid: true}
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, scanner, task_id, result_json, diff_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), scannerName, taskID, string(result), diffJSON, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs for a scanner, newest first.
func (s *Store) ListRuns(ctx context.Context, scannerName string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scanner, task_id, result_json, diff_json, created_at
		 FROM runs WHERE scanner = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		scannerName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var result string
		var diff sql.NullString
		if err := rows.Scan(&r.ID, &r.Scanner, &r.TaskID, &result, &diff, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Result = json.RawMessage(result)
		if diff.Valid {
			r.Diff = json.RawMessage(diff.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) latestResult(ctx context.Context, scannerName string) (string, error) {
	var result string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM runs WHERE scanner = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		scannerName).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return result, nil
}

// chunk is one added or removed piece of a run diff.
type chunk struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// diffRuns computes a semantic text diff between two serialized profiles
// and returns it as a JSON array of chunks. Equal regions are omitted;
// an empty string means the runs are identical.
func diffRuns(base, head string) (string, error) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(base, head, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	chunks := make([]chunk, 0)
	for _, d := range diffs {
		var chunkType string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			chunkType = "added"
		case diffmatchpatch.DiffDelete:
			chunkType = "removed"
		default:
			continue
		}
		if strings.TrimSpace(d.Text) != "" {
			chunks = append(chunks, chunk{Type: chunkType, Content: d.Text})
		}
	}
	if len(chunks) == 0 {
		return "", nil
	}

	enc, err := json.Marshal(chunks)
	if err != nil {
		return "", err
	}
	return string(enc), nil
}
