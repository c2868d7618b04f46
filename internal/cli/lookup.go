package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/tracemacro/internal/index"
	"github.com/aidanlsb/tracemacro/internal/ui"
	"github.com/aidanlsb/tracemacro/internal/uid"
)

var lookupByID bool

// openIndexReadOnly opens the existing index; it does not create one.
func openIndexReadOnly() (*index.Database, error) {
	path := getIndexPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, handleErrorMsg(ErrIndexEmpty, fmt.Sprintf("no identity index at %s", path),
			"Run 'tmx ingest' first")
	}
	db, err := index.Open(path)
	if err != nil {
		return nil, handleError(ErrDatabaseError, err, "")
	}
	return db, nil
}

var lookupCmd = &cobra.Command{
	Use:   "lookup HASH",
	Short: "Find the call sites that produced a hash",
	Long: `Looks up a hash from an emitted log line in the latest ingest run.

With --id, the argument is a decoded id instead and every call site using it
is listed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openIndexReadOnly()
		if err != nil {
			return err
		}
		defer db.Close()

		var records []index.Record
		if lookupByID {
			records, err = db.LookupID(args[0])
		} else {
			hash, perr := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 32)
			if perr != nil {
				return handleErrorMsg(ErrInvalidInput, fmt.Sprintf("hash must be a 32-bit integer, got %q", args[0]),
					"Use --id to look up a decoded id")
			}
			records, err = db.LookupHash(int32(hash))
		}
		if err != nil {
			if errors.Is(err, index.ErrNoRuns) {
				return handleError(ErrIndexEmpty, err, "Run 'tmx ingest' first")
			}
			return handleError(ErrDatabaseError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"query": args[0], "results": records}, &Meta{Count: len(records)})
			return nil
		}

		if len(records) == 0 {
			return handleErrorMsg(ErrNotFound, fmt.Sprintf("no call sites for %s in the latest run", args[0]), "")
		}
		tbl := ui.NewTable(4)
		for _, r := range records {
			loc := uid.Location{File: r.File, Line: r.Line, Column: r.Column}
			tbl.AddRow(ui.Location(loc), ui.Accent.Render(r.Macro), r.ID, strconv.Itoa(int(r.Hash)))
		}
		fmt.Print(tbl.String())
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs [RUN_ID]",
	Short: "List ingest runs, or show one run's collisions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openIndexReadOnly()
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			return showRun(db, args[0])
		}

		runs, err := db.ListRuns()
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"runs": runs}, &Meta{Count: len(runs)})
			return nil
		}
		if len(runs) == 0 {
			fmt.Println(ui.Hint("No runs recorded."))
			return nil
		}
		tbl := ui.NewTable(5)
		tbl.SetHeader("RUN", "STARTED", "FILES", "DEGRADED", "IDENTITIES")
		for _, r := range runs {
			tbl.AddRow(
				ui.Accent.Render(r.ID),
				r.StartedAt.Format("2006-01-02 15:04:05"),
				strconv.Itoa(r.Units),
				strconv.Itoa(r.DegradedUnits),
				strconv.Itoa(r.Identities),
			)
		}
		fmt.Print(tbl.String())
		return nil
	},
}

func showRun(db *index.Database, runID string) error {
	run, err := db.GetRun(runID)
	if err != nil {
		if errors.Is(err, index.ErrRunNotFound) {
			return handleError(ErrNotFound, err, "Run 'tmx runs' to list run IDs")
		}
		return handleError(ErrDatabaseError, err, "")
	}
	collisions, err := db.Collisions(runID)
	if err != nil {
		return handleError(ErrDatabaseError, err, "")
	}

	if isJSONOutput() {
		outputSuccess(map[string]interface{}{"run": run, "collisions": collisions}, nil)
		return nil
	}

	fmt.Println(ui.Header("Run " + run.ID))
	fmt.Printf("  started:    %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if !run.FinishedAt.IsZero() {
		fmt.Printf("  finished:   %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	for _, f := range run.UsageFiles {
		fmt.Printf("  usage file: %s\n", ui.FilePath(f))
	}
	fmt.Printf("  files:      %d (%d degraded)\n", run.Units, run.DegradedUnits)
	fmt.Printf("  identities: %d\n", run.Identities)
	if len(collisions) == 0 {
		fmt.Println(ui.Success("No hash collisions"))
		return nil
	}
	for _, c := range collisions {
		fmt.Println(ui.Warningf("hash %d is shared by %s", c.Hash, strings.Join(c.IDs, ", ")))
	}
	return nil
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupByID, "id", false, "Treat the argument as a decoded id")
	rootCmd.AddCommand(lookupCmd, runsCmd)
}
