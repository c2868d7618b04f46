package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one decoded call site.
type Record struct {
	RunID  string `json:"run_id,omitempty"`
	Macro  string `json:"macro"`
	ID     string `json:"id"`
	Hash   int32  `json:"hash"`
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// Run summarizes one ingest run.
type Run struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
	UsageFiles    []string  `json:"usage_files,omitempty"`
	Units         int       `json:"units"`
	DegradedUnits int       `json:"degraded_units"`
	Identities    int       `json:"identities"`
}

// RunStats are the totals written when a run finishes.
type RunStats struct {
	Units         int
	DegradedUnits int
	Identities    int
}

// Collision is a hash shared by more than one distinct identity in a run.
type Collision struct {
	Hash int32    `json:"hash"`
	IDs  []string `json:"ids"`
}

// usageFileSep joins usage file paths in the runs table.
const usageFileSep = "\n"

// BeginRun records a new run and returns its ID.
func (d *Database) BeginRun(usageFiles []string) (string, error) {
	id := uuid.NewString()
	_, err := d.db.Exec(
		`INSERT INTO runs (id, started_at, usage_files) VALUES (?, ?, ?)`,
		id, time.Now().Unix(), strings.Join(usageFiles, usageFileSep),
	)
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	return id, nil
}

// FinishRun stamps a run's completion time and totals.
func (d *Database) FinishRun(runID string, stats RunStats) error {
	res, err := d.db.Exec(
		`UPDATE runs SET finished_at = ?, units = ?, degraded_units = ?, identities = ? WHERE id = ?`,
		time.Now().Unix(), stats.Units, stats.DegradedUnits, stats.Identities, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// RecordIdentities stores a batch of identities for a run in one transaction.
func (d *Database) RecordIdentities(runID string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO identities (run_id, macro, uid, hash, file_path, line_number, column_number)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(runID, r.Macro, r.ID, r.Hash, r.File, r.Line, r.Column); err != nil {
			return fmt.Errorf("failed to record identity %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// LatestRun returns the most recently started finished run. Runs that were
// interrupted never get finished_at and are not served to lookups.
func (d *Database) LatestRun() (Run, error) {
	row := d.db.QueryRow(`
		SELECT id, started_at, COALESCE(finished_at, 0), usage_files, units, degraded_units, identities
		FROM runs WHERE finished_at IS NOT NULL
		ORDER BY started_at DESC, rowid DESC LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	return run, err
}

// GetRun returns a run by ID.
func (d *Database) GetRun(runID string) (Run, error) {
	row := d.db.QueryRow(`
		SELECT id, started_at, COALESCE(finished_at, 0), usage_files, units, degraded_units, identities
		FROM runs WHERE id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns runs newest first.
func (d *Database) ListRuns() ([]Run, error) {
	rows, err := d.db.Query(`
		SELECT id, started_at, COALESCE(finished_at, 0), usage_files, units, degraded_units, identities
		FROM runs ORDER BY started_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows *sql.Rows) (Run, error) {
		return scanRun(rows)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (Run, error) {
	var run Run
	var started, finished int64
	var usageFiles string
	if err := s.Scan(&run.ID, &started, &finished, &usageFiles, &run.Units, &run.DegradedUnits, &run.Identities); err != nil {
		return Run{}, err
	}
	run.StartedAt = time.Unix(started, 0)
	if finished > 0 {
		run.FinishedAt = time.Unix(finished, 0)
	}
	if usageFiles != "" {
		run.UsageFiles = strings.Split(usageFiles, usageFileSep)
	}
	return run, nil
}

// LookupHash returns the call sites in the latest run that decoded to hash.
func (d *Database) LookupHash(hash int32) ([]Record, error) {
	run, err := d.LatestRun()
	if err != nil {
		return nil, err
	}
	return d.queryIdentities(`WHERE run_id = ? AND hash = ?`, run.ID, hash)
}

// LookupID returns the call sites in the latest run with the given id.
func (d *Database) LookupID(id string) ([]Record, error) {
	run, err := d.LatestRun()
	if err != nil {
		return nil, err
	}
	return d.queryIdentities(`WHERE run_id = ? AND uid = ?`, run.ID, id)
}

// RunIdentities returns every identity recorded for a run.
func (d *Database) RunIdentities(runID string) ([]Record, error) {
	return d.queryIdentities(`WHERE run_id = ?`, runID)
}

func (d *Database) queryIdentities(where string, args ...any) ([]Record, error) {
	rows, err := d.db.Query(`
		SELECT run_id, macro, uid, hash, file_path, line_number, column_number
		FROM identities `+where+`
		ORDER BY file_path, line_number, column_number
	`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows *sql.Rows) (Record, error) {
		var r Record
		err := rows.Scan(&r.RunID, &r.Macro, &r.ID, &r.Hash, &r.File, &r.Line, &r.Column)
		return r, err
	})
}

// Collisions returns hashes that more than one distinct id decoded to in a run.
func (d *Database) Collisions(runID string) ([]Collision, error) {
	rows, err := d.db.Query(`
		SELECT DISTINCT hash, uid FROM identities
		WHERE run_id = ? AND hash IN (
			SELECT hash FROM identities WHERE run_id = ?
			GROUP BY hash HAVING COUNT(DISTINCT uid) > 1
		)
		ORDER BY hash, uid
	`, runID, runID)
	if err != nil {
		return nil, err
	}

	type pair struct {
		hash int32
		id   string
	}
	pairs, err := collect(rows, func(rows *sql.Rows) (pair, error) {
		var p pair
		err := rows.Scan(&p.hash, &p.id)
		return p, err
	})
	if err != nil {
		return nil, err
	}

	var out []Collision
	for _, p := range pairs {
		if n := len(out); n > 0 && out[n-1].Hash == p.hash {
			out[n-1].IDs = append(out[n-1].IDs, p.id)
			continue
		}
		out = append(out, Collision{Hash: p.hash, IDs: []string{p.id}})
	}
	return out, nil
}

// PruneRuns deletes all but the newest keep runs and their identities.
// It returns the number of runs removed.
func (d *Database) PruneRuns(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	runs, err := d.ListRuns()
	if err != nil {
		return 0, err
	}
	if len(runs) <= keep {
		return 0, nil
	}

	ids := make([]string, 0, len(runs)-keep)
	for _, r := range runs[keep:] {
		ids = append(ids, r.ID)
	}
	placeholders, args := runIDSet(ids)

	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM identities WHERE run_id IN (`+placeholders+`)`, args...); err != nil {
		return 0, fmt.Errorf("failed to prune identities: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ids), nil
}
