// Package settings reads scanner credentials from a directory of flat
// JSON documents. The store is read-only during a scan; writes happen
// out-of-band.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"upscan/internal/interfaces"
)

// ScannerSettings is the per-scanner key/value block. Immutable for the
// duration of one scan.
type ScannerSettings map[string]string

// Get returns the value for key, or the empty string when absent.
func (s ScannerSettings) Get(key string) string { return s[key] }

// requiredKeys must be present before any network activity starts.
var requiredKeys = []string{"url", "username", "password", "secret_answer"}

// ValidationError reports settings that are missing required keys or a
// settings directory that held no parseable document.
type ValidationError struct {
	Scanner string
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("settings for scanner %q missing required keys: %s",
			e.Scanner, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid scanner settings: %s", e.Reason)
}

// Store looks up scanner settings by name from a directory of JSON files.
type Store struct {
	dir    string
	logger interfaces.Logger
}

func NewStore(dir string, logger interfaces.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// load returns the first successfully parsed JSON document in the
// directory. Files are visited in name order so the choice is
// deterministic; malformed documents are skipped.
func (s *Store) load() (map[string]ScannerSettings, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("reading settings directory %q: %v", s.dir, err)}
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("no JSON file found in settings directory %q", s.dir)}
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var doc map[string]ScannerSettings
		if err := json.Unmarshal(raw, &doc); err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping malformed settings document",
					interfaces.Field{Key: "file", Value: name},
					interfaces.Field{Key: "error", Value: err.Error()})
			}
			continue
		}
		return doc, nil
	}

	return nil, &ValidationError{Reason: fmt.Sprintf("no settings document in %q could be decoded", s.dir)}
}

// ForScanner returns the validated settings block for the named scanner.
// Missing required keys fail with a *ValidationError before any browser
// session is opened.
func (s *Store) ForScanner(name string) (ScannerSettings, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	block := doc[name]
	var missing []string
	for _, key := range requiredKeys {
		if block.Get(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Scanner: name, Missing: missing}
	}
	return block, nil
}
