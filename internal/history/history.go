// Package history persists completed run records to a JSON file so past
// results can be listed and compared across invocations.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/verikit/verikit/internal/suite"
)

// Record is one completed run.
type Record struct {
	RunID       string            `json:"run_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Suite       string            `json:"suite"`
	Environment string            `json:"environment,omitempty"`
	SnapshotID  string            `json:"snapshot_id,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Total       int               `json:"total"`
	Passed      int               `json:"passed"`
	Failed      int               `json:"failed"`
	Errors      int               `json:"errors"`
	Results     []suite.TaskResult `json:"results"`
}

// Manager reads and appends the history file. One process appends at a
// time; the file is rewritten whole through a temp file rename.
type Manager struct {
	path string
	log  *slog.Logger
}

// NewManager creates a manager over the given history file.
func NewManager(path string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{path: path, log: log}
}

// Append records a finished suite run and returns the stored record.
func (m *Manager) Append(res suite.Result, params map[string]string) (Record, error) {
	rec := Record{
		RunID:       uuid.NewString()[:8],
		Timestamp:   time.Now().UTC(),
		Suite:       res.SuiteName,
		Environment: res.Environment,
		SnapshotID:  res.SnapshotID,
		Params:      params,
		Total:       res.Total,
		Passed:      res.Passed,
		Failed:      res.Failed,
		Errors:      res.Errors,
		Results:     res.Results,
	}
	records, err := m.load()
	if err != nil {
		return Record{}, err
	}
	records = append(records, rec)
	if err := m.save(records); err != nil {
		return Record{}, err
	}
	m.log.Info("run recorded", "run_id", rec.RunID, "suite", rec.Suite,
		"passed", rec.Passed, "failed", rec.Failed, "errors", rec.Errors)
	return rec, nil
}

// Recent returns the newest n records, newest first. n <= 0 returns all.
func (m *Manager) Recent(n int) ([]Record, error) {
	records, err := m.load()
	if err != nil {
		return nil, err
	}
	reverse(records)
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}

// BySuite returns the newest n records of one suite, newest first.
func (m *Manager) BySuite(name string, n int) ([]Record, error) {
	records, err := m.load()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, rec := range records {
		if rec.Suite == name {
			out = append(out, rec)
		}
	}
	reverse(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Manager) load() ([]Record, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history %q: %w", m.path, err)
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse history %q: %w", m.path, err)
	}
	return records, nil
}

func (m *Manager) save(records []Record) error {
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir %q: %w", dir, err)
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write history %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace history %q: %w", m.path, err)
	}
	return nil
}

func reverse(records []Record) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
