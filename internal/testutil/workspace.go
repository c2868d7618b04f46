// Package testutil provides helpers for tests that work on files in a
// temporary project directory.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Workspace is a temporary project directory.
type Workspace struct {
	t   testing.TB
	Dir string
}

// NewWorkspace creates an empty workspace removed when the test ends.
func NewWorkspace(t testing.TB) *Workspace {
	t.Helper()
	return &Workspace{t: t, Dir: t.TempDir()}
}

// Path returns the absolute path of rel inside the workspace.
func (w *Workspace) Path(rel string) string {
	return filepath.Join(w.Dir, filepath.FromSlash(rel))
}

// WriteFile writes content to rel, creating parent directories, and returns
// the absolute path.
func (w *Workspace) WriteFile(rel, content string) string {
	w.t.Helper()
	p := w.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		w.t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		w.t.Fatalf("failed to write %s: %v", rel, err)
	}
	return p
}

// WriteRecords writes scanner records, one per line.
func (w *Workspace) WriteRecords(rel string, lines ...string) string {
	w.t.Helper()
	return w.WriteFile(rel, strings.Join(lines, "\n")+"\n")
}

// ReadFile returns the content of rel.
func (w *Workspace) ReadFile(rel string) string {
	w.t.Helper()
	data, err := os.ReadFile(w.Path(rel))
	if err != nil {
		w.t.Fatalf("failed to read %s: %v", rel, err)
	}
	return string(data)
}

// AssertFileExists fails the test if the file does not exist.
func (w *Workspace) AssertFileExists(rel string) {
	w.t.Helper()
	if _, err := os.Stat(w.Path(rel)); os.IsNotExist(err) {
		w.t.Errorf("expected file to exist: %s", rel)
	}
}

// AssertFileContains fails the test if the file does not contain substr.
func (w *Workspace) AssertFileContains(rel, substr string) {
	w.t.Helper()
	if content := w.ReadFile(rel); !strings.Contains(content, substr) {
		w.t.Errorf("expected file %s to contain %q, got:\n%s", rel, substr, content)
	}
}

// AssertFileNotContains fails the test if the file contains substr.
func (w *Workspace) AssertFileNotContains(rel, substr string) {
	w.t.Helper()
	if content := w.ReadFile(rel); strings.Contains(content, substr) {
		w.t.Errorf("expected file %s to not contain %q, got:\n%s", rel, substr, content)
	}
}
