package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/tracemacro/internal/audit"
	"github.com/aidanlsb/tracemacro/internal/ui"
)

var historySince time.Duration

func auditLogger() *audit.Logger {
	c := getConfig()
	return audit.New(c.GetAuditPath(getUsagePath()), c.Audit)
}

// warnAudit reports a failed audit write without failing the command.
func warnAudit(err error) {
	if err != nil && !isJSONOutput() {
		fmt.Fprintln(os.Stderr, ui.Warningf("audit log: %v", err))
	}
}

var historyCmd = &cobra.Command{
	Use:   "history [NAME]",
	Short: "Show recorded usage file edits and ingest runs",
	Long: `Reads the audit log kept next to the usage file when audit = true in
config. With NAME, only entries for that macro, level, keyword or run are
shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l := auditLogger()
		if !l.Enabled() {
			return handleErrorMsg(ErrConfigInvalid, "audit log is disabled", "Set audit = true in config (tmx config set audit true)")
		}

		var entries []audit.Entry
		var err error
		switch {
		case len(args) == 1:
			entries, err = l.ReadForName(args[0])
		case historySince > 0:
			entries, err = l.ReadSince(time.Now().Add(-historySince))
		default:
			entries, err = l.Read()
		}
		if err != nil {
			return handleError(ErrFileReadError, err, "")
		}
		if len(args) == 1 && historySince > 0 {
			cutoff := time.Now().Add(-historySince)
			kept := entries[:0]
			for _, e := range entries {
				if !e.Timestamp.Before(cutoff) {
					kept = append(kept, e)
				}
			}
			entries = kept
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"entries": entries}, &Meta{Count: len(entries)})
			return nil
		}
		if len(entries) == 0 {
			fmt.Println(ui.Hint("No history recorded."))
			return nil
		}

		tbl := ui.NewTable(4)
		for _, e := range entries {
			detail := e.File
			if v, ok := e.Extra["value"]; ok {
				detail = fmt.Sprintf("= %v", v)
			} else if e.Operation == audit.OpIngest {
				detail = fmt.Sprintf("%v files, %v degraded, %v identities",
					e.Extra["units"], e.Extra["degraded_units"], e.Extra["identities"])
			}
			tbl.AddRow(
				ui.Muted.Render(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
				e.Operation+" "+e.Entity,
				ui.Accent.Render(e.Name),
				detail,
			)
		}
		fmt.Print(tbl.String())
		return nil
	},
}

func init() {
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "Only entries newer than this (e.g. 24h)")
	rootCmd.AddCommand(historyCmd)
}
