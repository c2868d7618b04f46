package index

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Lock is the writer lock for an index. Only one ingest run may write a
// given index at a time; readers never take it.
type Lock struct {
	path string
	file *os.File
}

// LockPath returns the lock file used for the index at dbPath.
func LockPath(dbPath string) string {
	return dbPath + ".lock"
}

// AcquireLock takes the writer lock for the index at dbPath without
// blocking. When another process holds it, the returned error wraps
// ErrIndexLocked and names the holder's pid if it is known.
func AcquireLock(dbPath string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	path := LockPath(dbPath)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open index lock: %w", err)
	}

	ok, err := tryLock(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !ok {
		holder := lockHolder(f)
		f.Close()
		if holder != "" {
			return nil, fmt.Errorf("%w (pid %s)", ErrIndexLocked, holder)
		}
		return nil, ErrIndexLocked
	}

	// The pid is informational only; the OS lock is what excludes writers.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{path: path, file: f}, nil
}

func lockHolder(f *os.File) string {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid := string(bytes.TrimSpace(buf[:n]))
	if _, err := strconv.Atoi(pid); err != nil {
		return ""
	}
	return pid
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	_ = f.Truncate(0)
	if err := unlock(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
