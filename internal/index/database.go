// Package index stores decoded call-site identities in SQLite so emitted log
// hashes can be traced back to the call sites that produced them.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

// Database is the SQLite database handle.
type Database struct {
	db *sql.DB
}

var (
	// ErrNoRuns indicates the index has never recorded an ingest run.
	ErrNoRuns = errors.New("index has no recorded runs")
	// ErrRunNotFound indicates the requested run ID is not in the index.
	ErrRunNotFound = errors.New("run not found in index")
	// ErrIndexLocked indicates another process is writing the index.
	ErrIndexLocked = errors.New("index is locked by another run")
)

// CurrentDBVersion is the current database schema version.
// v2: column positions on identities, run summaries.
const CurrentDBVersion = 2

// DB returns the underlying sql.DB for advanced queries.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Open opens or creates the database at path. An index written by an older
// schema is discarded and recreated; it only holds derived data.
func Open(path string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		db, err := sql.Open("sqlite", path)
		if err == nil {
			compatible := isSchemaCompatible(db)
			db.Close()
			if !compatible {
				if err := removeDatabaseFiles(path); err != nil {
					return nil, err
				}
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Database{db: db}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// OpenInMemory opens an in-memory database (for testing).
func OpenInMemory() (*Database, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	d := &Database{db: db}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

func removeDatabaseFiles(dbPath string) error {
	paths := []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

// isSchemaCompatible reports whether the stored schema version matches.
// Databases without a meta table are treated as incompatible.
func isSchemaCompatible(db *sql.DB) bool {
	var value string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = 'version'`).Scan(&value)
	if err != nil {
		return false
	}
	v, err := strconv.Atoi(value)
	return err == nil && v == CurrentDBVersion
}

func (d *Database) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		-- One row per ingest run
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,          -- uuid
			started_at INTEGER NOT NULL,  -- Unix seconds
			finished_at INTEGER,
			usage_files TEXT NOT NULL DEFAULT '',
			units INTEGER NOT NULL DEFAULT 0,
			degraded_units INTEGER NOT NULL DEFAULT 0,
			identities INTEGER NOT NULL DEFAULT 0
		);

		-- Decoded call-site identities
		CREATE TABLE IF NOT EXISTS identities (
			run_id TEXT NOT NULL,
			macro TEXT NOT NULL,
			uid TEXT NOT NULL,
			hash INTEGER NOT NULL,
			file_path TEXT NOT NULL,
			line_number INTEGER NOT NULL DEFAULT 0,
			column_number INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_identities_run_hash ON identities(run_id, hash);
		CREATE INDEX IF NOT EXISTS idx_identities_run_uid ON identities(run_id, uid);
		CREATE INDEX IF NOT EXISTS idx_identities_file ON identities(file_path);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	_, err := d.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		strconv.Itoa(CurrentDBVersion))
	if err != nil {
		return fmt.Errorf("failed to set database version: %w", err)
	}
	return nil
}
