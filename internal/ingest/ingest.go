// Package ingest decodes the unique IDs of scanned macro invocations against
// a usage registry, one source unit (file) at a time.
//
// A decode failure stops decoding for the rest of its unit: the unit is
// marked degraded and its remaining records are only counted. Other units
// are unaffected.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aidanlsb/tracemacro/internal/registry"
	"github.com/aidanlsb/tracemacro/internal/uid"
)

// Diagnostic codes.
const (
	CodeMalformedUniqueID    = "MALFORMED_UNIQUE_ID"
	CodeInvalidEncoderScheme = "INVALID_ENCODER_SCHEME"
	CodeUnknownMacro         = "UNKNOWN_MACRO"
	CodeDecodeFailed         = "DECODE_FAILED"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARN"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic is a problem found at a call site.
type Diagnostic struct {
	Severity Severity     `json:"-"`
	Level    string       `json:"level"`
	Code     string       `json:"code"`
	Macro    string       `json:"macro"`
	Location uid.Location `json:"location"`
	Message  string       `json:"message"`
	Err      error        `json:"-"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Severity, d.Message)
}

// Identity is a successfully decoded call site.
type Identity struct {
	Macro    string       `json:"macro"`
	ID       string       `json:"id"`
	Hash     int32        `json:"hash"`
	Location uid.Location `json:"location"`
}

// UnitResult is the outcome of one source unit.
type UnitResult struct {
	File        string       `json:"file"`
	Identities  []Identity   `json:"identities,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	// Degraded is set once a decode error stopped processing of the unit.
	Degraded bool `json:"degraded"`
	// Skipped counts records that were not decoded: macros marked
	// skip_processing, and everything after the unit degraded.
	Skipped int `json:"skipped"`
}

// Result is the outcome of a run.
type Result struct {
	Units []UnitResult `json:"units"`
}

// Options configure Run.
type Options struct {
	// Jobs is the number of units processed concurrently (minimum 1).
	Jobs int

	// OnUnit, when set, is called once per unit in input order from the
	// goroutine that called Run. A returned error aborts the run.
	OnUnit func(UnitResult) error
}

// Run decodes every record against reg.
//
// Decode errors never fail the run; they are reported as diagnostics on the
// unit. Run returns an error only if ctx is cancelled or OnUnit fails.
func Run(ctx context.Context, reg *registry.Registry, records []Record, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}

	units := GroupUnits(records)
	result := &Result{Units: make([]UnitResult, len(units))}
	if len(units) == 0 {
		return result, nil
	}

	type workResult struct {
		index int
		unit  UnitResult
	}

	workCh := make(chan int)
	doneCh := make(chan workResult, jobs)
	innerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				doneCh <- workResult{index: idx, unit: ProcessUnit(reg, units[idx])}
			}
		}()
	}

	go func() {
		defer close(workCh)
		for i := range units {
			select {
			case <-innerCtx.Done():
				return
			case workCh <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(doneCh)
	}()

	ready := make(map[int]UnitResult)
	next := 0
	var runErr error
	for w := range doneCh {
		if runErr != nil {
			continue // drain
		}
		ready[w.index] = w.unit
		for {
			u, ok := ready[next]
			if !ok {
				break
			}
			delete(ready, next)
			result.Units[next] = u
			if opts.OnUnit != nil {
				if err := opts.OnUnit(u); err != nil {
					runErr = fmt.Errorf("unit %s: %w", u.File, err)
					cancel()
					break
				}
			}
			next++
		}
	}

	result.Units = result.Units[:next]
	if runErr != nil {
		return result, runErr
	}
	if next < len(units) {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("ingest cancelled after %d of %d units: %w", next, len(units), err)
		}
		return result, fmt.Errorf("ingest stopped after %d of %d units", next, len(units))
	}
	return result, nil
}

// ProcessUnit decodes one unit's records.
func ProcessUnit(reg *registry.Registry, unit Unit) UnitResult {
	out := UnitResult{File: unit.File}

	for _, rec := range unit.Records {
		if out.Degraded {
			out.Skipped++
			continue
		}

		def, err := reg.Lookup(rec.Macro)
		if err != nil {
			out.Diagnostics = append(out.Diagnostics, newDiagnostic(SeverityWarning, CodeUnknownMacro, rec,
				fmt.Sprintf("macro %s is not defined in the usage registry", rec.Macro), err))
			continue
		}
		if def.SkipProcessing {
			reg.IncHidden()
			out.Skipped++
			continue
		}

		id, err := uid.Decode(def.Encoder(), rec.Token, rec.Location)
		if err != nil {
			out.Diagnostics = append(out.Diagnostics, newDiagnostic(SeverityError, decodeErrorCode(err), rec, err.Error(), err))
			out.Degraded = true
			continue
		}

		out.Identities = append(out.Identities, Identity{
			Macro:    rec.Macro,
			ID:       id.ID,
			Hash:     id.Hash,
			Location: rec.Location,
		})
	}

	return out
}

func newDiagnostic(sev Severity, code string, rec Record, msg string, err error) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Level:    sev.String(),
		Code:     code,
		Macro:    rec.Macro,
		Location: rec.Location,
		Message:  msg,
		Err:      err,
	}
}

func decodeErrorCode(err error) string {
	var malformed *uid.MalformedUniqueIDError
	var invalid *uid.InvalidEncoderSchemeError
	switch {
	case errors.As(err, &malformed):
		return CodeMalformedUniqueID
	case errors.As(err, &invalid):
		return CodeInvalidEncoderScheme
	default:
		return CodeDecodeFailed
	}
}

// IdentityCount returns the number of decoded identities.
func (r *Result) IdentityCount() int {
	n := 0
	for _, u := range r.Units {
		n += len(u.Identities)
	}
	return n
}

// DegradedUnits returns the number of units that hit a decode error.
func (r *Result) DegradedUnits() int {
	n := 0
	for _, u := range r.Units {
		if u.Degraded {
			n++
		}
	}
	return n
}

// Counts returns error and warning totals.
func (r *Result) Counts() (errs, warnings int) {
	for _, u := range r.Units {
		for _, d := range u.Diagnostics {
			if d.Severity == SeverityWarning {
				warnings++
			} else {
				errs++
			}
		}
	}
	return errs, warnings
}

// Collision is a hash shared by distinct ids.
type Collision struct {
	Hash int32    `json:"hash"`
	IDs  []string `json:"ids"`
}

// Collisions finds hashes that more than one distinct id decoded to.
func (r *Result) Collisions() []Collision {
	byHash := make(map[int32]map[string]struct{})
	for _, u := range r.Units {
		for _, id := range u.Identities {
			set, ok := byHash[id.Hash]
			if !ok {
				set = make(map[string]struct{})
				byHash[id.Hash] = set
			}
			set[id.ID] = struct{}{}
		}
	}

	var out []Collision
	for hash, set := range byHash {
		if len(set) < 2 {
			continue
		}
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out = append(out, Collision{Hash: hash, IDs: ids})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out
}
