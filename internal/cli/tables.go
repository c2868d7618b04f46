package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/tracemacro/internal/registry"
	"github.com/aidanlsb/tracemacro/internal/ui"
	"github.com/aidanlsb/tracemacro/internal/usagefile"
)

// symbolTable is one of the usage file's name→value tables.
type symbolTable struct {
	name   string // "level" or "keyword"
	plural string
	get    func(*registry.Registry) map[string]int
	set    func(*registry.Registry, string, int)
}

var (
	levelTable = symbolTable{
		name:   "level",
		plural: "levels",
		get:    (*registry.Registry).Levels,
		set:    (*registry.Registry).SetLevel,
	}
	keywordTable = symbolTable{
		name:   "keyword",
		plural: "keywords",
		get:    (*registry.Registry).Keywords,
		set:    (*registry.Registry).SetKeyword,
	}
)

func newTableCommand(t symbolTable) *cobra.Command {
	parent := &cobra.Command{
		Use:   t.name,
		Short: fmt.Sprintf("Inspect and edit trace %s", t.plural),
	}

	parent.AddCommand(&cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s from the usage file and its includes", t.plural),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := loadMergedRegistry()
			if err != nil {
				return err
			}
			values := t.get(reg)

			if isJSONOutput() {
				outputSuccess(map[string]interface{}{t.plural: values}, &Meta{Count: len(values)})
				return nil
			}
			if len(values) == 0 {
				fmt.Println(ui.Hint(fmt.Sprintf("No %s defined.", t.plural)))
				return nil
			}
			tbl := ui.NewTable(2)
			for _, name := range registry.SortedNames(values) {
				tbl.AddRow(ui.Accent.Render(name), strconv.Itoa(values[name]))
			}
			fmt.Print(tbl.String())
			return nil
		},
	})

	parent.AddCommand(&cobra.Command{
		Use:   "set NAME VALUE",
		Short: fmt.Sprintf("Set a %s value in the usage file", t.name),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return handleErrorMsg(ErrInvalidInput, fmt.Sprintf("%s name is required", t.name), "")
			}
			value, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return handleErrorMsg(ErrInvalidInput, fmt.Sprintf("%s value must be an integer, got %q", t.name, args[1]), "")
			}

			reg, path, err := loadPrimaryRegistry()
			if err != nil {
				return err
			}
			t.set(reg, name, value)
			if err := usagefile.Save(path, reg); err != nil {
				return handleError(ErrFileWriteError, err, "")
			}
			warnAudit(auditLogger().LogTable(t.name, name, value, path))

			if isJSONOutput() {
				outputSuccess(map[string]interface{}{"name": name, "value": value, "usage_file": path}, nil)
				return nil
			}
			fmt.Println(ui.Successf("Set %s %s = %d", t.name, ui.Accent.Render(name), value))
			return nil
		},
	})

	return parent
}

func init() {
	rootCmd.AddCommand(newTableCommand(levelTable), newTableCommand(keywordTable))
}
