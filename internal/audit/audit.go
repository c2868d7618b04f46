// Package audit provides an append-only log of usage file edits and ingest
// runs.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Operations recorded in the log.
const (
	OpAdd     = "add"
	OpReplace = "replace"
	OpRemove  = "remove"
	OpSet     = "set"
	OpIngest  = "ingest"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	Operation string                 `json:"op"`
	Entity    string                 `json:"entity"` // macro, level, keyword, run
	Name      string                 `json:"name,omitempty"`
	File      string                 `json:"file,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// Logger appends entries to a JSON-lines file.
type Logger struct {
	path    string
	enabled bool
	mu      sync.Mutex
}

// New creates a logger writing to path. If enabled is false, the logger is
// a no-op.
func New(path string, enabled bool) *Logger {
	if !enabled {
		return &Logger{enabled: false}
	}
	return &Logger{path: path, enabled: true}
}

// Enabled returns true if the logger writes entries.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Log writes an entry to the audit log.
func (l *Logger) Log(entry Entry) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// LogMacro records a macro edit in a usage file.
func (l *Logger) LogMacro(op, name, file string) error {
	return l.Log(Entry{Operation: op, Entity: "macro", Name: name, File: file})
}

// LogTable records a level or keyword assignment.
func (l *Logger) LogTable(entity, name string, value int, file string) error {
	return l.Log(Entry{
		Operation: OpSet,
		Entity:    entity,
		Name:      name,
		File:      file,
		Extra:     map[string]interface{}{"value": value},
	})
}

// LogIngest records a finished ingest run.
func (l *Logger) LogIngest(runID string, units, degraded, identities int) error {
	return l.Log(Entry{
		Operation: OpIngest,
		Entity:    "run",
		Name:      runID,
		Extra: map[string]interface{}{
			"units":          units,
			"degraded_units": degraded,
			"identities":     identities,
		},
	})
}

// Read reads all entries. Malformed lines are skipped.
func (l *Logger) Read() ([]Entry, error) {
	if !l.enabled {
		return nil, nil
	}

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return entries, nil
}

// ReadForName reads entries about one macro, table entry or run.
func (l *Logger) ReadForName(name string) ([]Entry, error) {
	all, err := l.Read()
	if err != nil {
		return nil, err
	}

	var filtered []Entry
	for _, entry := range all {
		if entry.Name == name {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}

// ReadSince reads entries at or after since.
func (l *Logger) ReadSince(since time.Time) ([]Entry, error) {
	all, err := l.Read()
	if err != nil {
		return nil, err
	}

	var filtered []Entry
	for _, entry := range all {
		if !entry.Timestamp.Before(since) {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}
