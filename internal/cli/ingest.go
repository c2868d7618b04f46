package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/tracemacro/internal/index"
	"github.com/aidanlsb/tracemacro/internal/ingest"
	"github.com/aidanlsb/tracemacro/internal/paths"
	"github.com/aidanlsb/tracemacro/internal/ui"
)

var (
	ingestJobs    int
	ingestStrict  bool
	ingestNoIndex bool
	ingestKeep    int
	ingestRoot    string
)

// ingestSummary is the JSON payload of an ingest run.
type ingestSummary struct {
	RunID         string              `json:"run_id,omitempty"`
	Index         string              `json:"index,omitempty"`
	UsageFiles    []string            `json:"usage_files"`
	Units         int                 `json:"units"`
	DegradedUnits int                 `json:"degraded_units"`
	Identities    int                 `json:"identities"`
	Skipped       int                 `json:"skipped"`
	Hidden        int                 `json:"hidden"`
	Errors        int                 `json:"errors"`
	Warnings      int                 `json:"warnings"`
	Diagnostics   []ingest.Diagnostic `json:"diagnostics,omitempty"`
	Collisions    []index.Collision   `json:"collisions,omitempty"`
	Pruned        int                 `json:"pruned,omitempty"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [records-file|-]",
	Short: "Decode scanner records and store call-site identities",
	Long: `Reads scanner records (file, line, column, macro, token; tab separated,
one per line) and decodes each token with its macro's encoder.

A token that fails to decode stops decoding for the rest of its file: the
file is reported as degraded and the remaining files continue. Decoded
identities are written to the identity index as a new run.

Exits non-zero when any file degraded, or with --strict when there were
warnings or hash collisions.

Examples:
  scanner src/ | tmx ingest
  tmx ingest scan.tsv --jobs 8 --keep 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	start := time.Now()
	conf := getConfig()

	var in io.Reader = os.Stdin
	source := "stdin"
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return handleError(ErrFileReadError, err, "")
		}
		defer f.Close()
		in = f
		source = args[0]
	}

	records, err := ingest.ParseRecords(in)
	if err != nil {
		return handleError(ErrRecordsInvalid, fmt.Errorf("%s: %w", source, err),
			"Records are file<TAB>line<TAB>column<TAB>macro<TAB>token")
	}

	if ingestRoot != "" {
		for i := range records {
			records[i].Location.File = paths.RelativeTo(records[i].Location.File, ingestRoot)
		}
	}

	reg, files, err := loadMergedRegistry()
	if err != nil {
		return err
	}

	jobs := ingestJobs
	if !cmd.Flags().Changed("jobs") {
		jobs = conf.GetJobs()
	}
	strict := ingestStrict || conf.Strict

	summary := ingestSummary{UsageFiles: files}

	var db *index.Database
	if !ingestNoIndex {
		indexPath := getIndexPath()
		lock, err := index.AcquireLock(indexPath)
		if err != nil {
			return handleError(errorCode(err, ErrDatabaseError), err, "Another ingest is writing to this index")
		}
		defer lock.Release()

		db, err = index.Open(indexPath)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		defer db.Close()

		summary.RunID, err = db.BeginRun(files)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		summary.Index = indexPath
	}

	var spinner *ui.Spinner
	if !isJSONOutput() {
		spinner = ui.NewSpinner(fmt.Sprintf("Ingesting %s", ui.Count(len(records), "record", "records")))
		spinner.Start()
	}

	done := 0
	result, runErr := ingest.Run(cmd.Context(), reg, records, ingest.Options{
		Jobs: jobs,
		OnUnit: func(u ingest.UnitResult) error {
			done++
			if spinner != nil {
				spinner.SetMessage(fmt.Sprintf("Ingesting %s", ui.FilePath(u.File)))
			}
			if db == nil {
				return nil
			}
			return db.RecordIdentities(summary.RunID, toIndexRecords(u.Identities))
		},
	})
	if spinner != nil {
		spinner.Stop()
	}

	summary.Units = len(result.Units)
	summary.DegradedUnits = result.DegradedUnits()
	summary.Identities = result.IdentityCount()
	summary.Hidden = reg.Hidden()
	summary.Errors, summary.Warnings = result.Counts()
	for _, u := range result.Units {
		summary.Skipped += u.Skipped
		summary.Diagnostics = append(summary.Diagnostics, u.Diagnostics...)
	}

	if runErr == nil {
		// Units that finished before an interrupt are still a partial run.
		runErr = cmd.Context().Err()
	}

	// A partial run is left unfinished so lookups keep serving the previous
	// complete run.
	if db != nil && runErr == nil {
		runErr = db.FinishRun(summary.RunID, index.RunStats{
			Units:         summary.Units,
			DegradedUnits: summary.DegradedUnits,
			Identities:    summary.Identities,
		})
		if runErr == nil {
			warnAudit(auditLogger().LogIngest(summary.RunID, summary.Units, summary.DegradedUnits, summary.Identities))
		}
	}
	if runErr != nil {
		code := errorCode(runErr, ErrDatabaseError)
		if code == ErrIngestCancelled {
			return handleError(code, fmt.Errorf("ingest interrupted after %d units: %w", done, runErr),
				"The partial run is kept unfinished; lookups use the last complete run")
		}
		return handleError(code, fmt.Errorf("ingest aborted after %d units: %w", done, runErr), "")
	}

	if db != nil {
		summary.Collisions, err = db.Collisions(summary.RunID)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		if ingestKeep > 0 {
			summary.Pruned, err = db.PruneRuns(ingestKeep)
			if err != nil {
				return handleError(ErrDatabaseError, err, "")
			}
		}
	} else {
		for _, c := range result.Collisions() {
			summary.Collisions = append(summary.Collisions, index.Collision{Hash: c.Hash, IDs: c.IDs})
		}
	}

	failCode := ""
	switch {
	case summary.DegradedUnits > 0:
		failCode = ErrUnitsDegraded
	case strict && (summary.Warnings > 0 || len(summary.Collisions) > 0):
		failCode = ErrStrictWarnings
	}

	if isJSONOutput() {
		return outputIngestJSON(summary, failCode, time.Since(start))
	}

	printIngestText(summary)
	if failCode != "" {
		return fmt.Errorf("%s", failMessage(summary, failCode))
	}
	return nil
}

func toIndexRecords(ids []ingest.Identity) []index.Record {
	out := make([]index.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, index.Record{
			Macro:  id.Macro,
			ID:     id.ID,
			Hash:   id.Hash,
			File:   id.Location.File,
			Line:   id.Location.Line,
			Column: id.Location.Column,
		})
	}
	return out
}

func failMessage(s ingestSummary, code string) string {
	if code == ErrUnitsDegraded {
		return fmt.Sprintf("%s failed to decode", ui.Count(s.DegradedUnits, "file", "files"))
	}
	return fmt.Sprintf("strict mode: %s, %s",
		ui.Count(s.Warnings, "warning", "warnings"),
		ui.Count(len(s.Collisions), "hash collision", "hash collisions"))
}

func collisionWarnings(s ingestSummary) []Warning {
	var warnings []Warning
	for _, c := range s.Collisions {
		warnings = append(warnings, Warning{
			Code:    "HASH_COLLISION",
			Message: fmt.Sprintf("hash %d is shared by %v", c.Hash, c.IDs),
		})
	}
	for _, d := range s.Diagnostics {
		if d.Severity == ingest.SeverityWarning {
			warnings = append(warnings, diagnosticWarning(d))
		}
	}
	return warnings
}

func outputIngestJSON(s ingestSummary, failCode string, elapsed time.Duration) error {
	meta := &Meta{Count: s.Identities, RunID: s.RunID, TimeMs: elapsed.Milliseconds()}
	warnings := collisionWarnings(s)
	if failCode == "" {
		outputSuccessWithWarnings(s, warnings, meta)
		return nil
	}
	return outputFailure(s, warnings, meta, failCode, failMessage(s, failCode))
}

func printIngestText(s ingestSummary) {
	for _, d := range s.Diagnostics {
		label := ui.Error(d.Severity.String() + ":")
		if d.Severity == ingest.SeverityWarning {
			label = ui.Warning(d.Severity.String() + ":")
		}
		fmt.Printf("%s %s - %s\n", label, ui.Location(d.Location), d.Message)
	}
	for _, c := range s.Collisions {
		fmt.Println(ui.Warningf("hash %d is shared by %v", c.Hash, c.IDs))
	}
	if len(s.Diagnostics) > 0 || len(s.Collisions) > 0 {
		fmt.Println()
	}

	if s.DegradedUnits == 0 && s.Errors == 0 {
		fmt.Println(ui.Successf("Ingested %s from %s",
			ui.Count(s.Identities, "identity", "identities"),
			ui.Count(s.Units, "file", "files")))
	} else {
		fmt.Println(ui.Errorf("Ingested %s; %d of %s degraded",
			ui.Count(s.Identities, "identity", "identities"),
			s.DegradedUnits, ui.Count(s.Units, "file", "files")))
	}
	if s.Skipped > 0 {
		fmt.Println(ui.Hint(fmt.Sprintf("  %s not decoded (%d from skip_processing macros)",
			ui.Count(s.Skipped, "record", "records"), s.Hidden)))
	}
	if s.RunID != "" {
		fmt.Println(ui.Hint(fmt.Sprintf("  run %s in %s", s.RunID, s.Index)))
	}
	if s.Pruned > 0 {
		fmt.Println(ui.Hint(fmt.Sprintf("  pruned %s", ui.Count(s.Pruned, "old run", "old runs"))))
	}
}

func init() {
	ingestCmd.Flags().IntVarP(&ingestJobs, "jobs", "j", 1, "Files decoded concurrently (default from config)")
	ingestCmd.Flags().BoolVar(&ingestStrict, "strict", false, "Fail on warnings and hash collisions")
	ingestCmd.Flags().BoolVar(&ingestNoIndex, "no-index", false, "Decode and report without writing the index")
	ingestCmd.Flags().StringVar(&ingestRoot, "root", "", "Store source paths relative to this directory")
	ingestCmd.Flags().IntVar(&ingestKeep, "keep", 0, "After ingesting, keep only the newest N runs (0 keeps all)")
	rootCmd.AddCommand(ingestCmd)
}
