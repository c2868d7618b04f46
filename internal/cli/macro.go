package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/tracemacro/internal/audit"
	"github.com/aidanlsb/tracemacro/internal/macro"
	"github.com/aidanlsb/tracemacro/internal/ui"
	"github.com/aidanlsb/tracemacro/internal/usagefile"
)

// macroJSON is the JSON view of a definition.
type macroJSON struct {
	Name             string            `json:"macro_name"`
	EncodedPrefix    string            `json:"encoded_prefix,omitempty"`
	EncodedArgNumber int               `json:"encoded_arg_number"`
	IDEncoder        string            `json:"id_encoder"`
	ExportModules    []string          `json:"export_modules,omitempty"`
	CustomSettings   map[string]string `json:"custom_settings,omitempty"`
	Source           string            `json:"source,omitempty"`
}

func toMacroJSON(d macro.Definition) macroJSON {
	return macroJSON{
		Name:             d.MacroName,
		EncodedPrefix:    d.EncodedPrefix,
		EncodedArgNumber: d.EncodedArgNumber,
		IDEncoder:        d.Encoder().String(),
		ExportModules:    d.ExportModules,
		CustomSettings:   d.CustomSettings,
		Source:           d.ConfigSource,
	}
}

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Inspect and edit macro definitions",
}

var macroListModule string

var macroListCmd = &cobra.Command{
	Use:   "list",
	Short: "List macros from the usage file and its includes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := loadMergedRegistry()
		if err != nil {
			return err
		}
		var defs []macro.Definition
		module := macro.NormalizeModuleName(macroListModule)
		for _, d := range reg.Definitions() {
			if module != "" && !d.HasExportModule(module) {
				continue
			}
			defs = append(defs, d)
		}

		if isJSONOutput() {
			items := make([]macroJSON, 0, len(defs))
			for _, d := range defs {
				items = append(items, toMacroJSON(d))
			}
			outputSuccess(map[string]interface{}{"macros": items}, &Meta{Count: len(items)})
			return nil
		}

		if len(defs) == 0 {
			fmt.Println(ui.Hint("No macros defined. Add one with 'tmx macro add NAME'."))
			return nil
		}

		tbl := ui.NewTable(5)
		tbl.SetHeader("NAME", "ENCODER", "ARGS", "MODULES", "SOURCE")
		for _, d := range defs {
			tbl.AddRow(
				ui.Accent.Render(d.MacroName),
				d.Encoder().String(),
				fmt.Sprintf("%d", d.EncodedArgNumber),
				strings.Join(d.ExportModules, ","),
				ui.Muted.Render(d.ConfigSource),
			)
		}
		fmt.Print(tbl.String())
		return nil
	},
}

var macroShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show one macro definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := loadMergedRegistry()
		if err != nil {
			return err
		}
		def, err := reg.Lookup(args[0])
		if err != nil {
			return handleError(ErrMacroNotFound, err, "Run 'tmx macro list' to see defined macros")
		}

		if isJSONOutput() {
			outputSuccess(toMacroJSON(def), nil)
			return nil
		}

		rendered, err := ui.RenderMarkdown(macroMarkdown(def), ui.NewDisplayContext().MarkdownWidth())
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		fmt.Print(rendered)
		return nil
	},
}

func macroMarkdown(d macro.Definition) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", d.MacroName)
	fmt.Fprintf(&sb, "- **Encoder:** `%s`\n", d.Encoder())
	fmt.Fprintf(&sb, "- **Encoded arguments:** %d\n", d.EncodedArgNumber)
	if d.EncodedPrefix != "" {
		fmt.Fprintf(&sb, "- **Prefix:** `%s`\n", d.EncodedPrefix)
	}
	if len(d.ExportModules) > 0 {
		fmt.Fprintf(&sb, "- **Modules:** %s\n", strings.Join(d.ExportModules, ", "))
	}
	if d.ConfigSource != "" {
		fmt.Fprintf(&sb, "- **Defined in:** `%s`\n", d.ConfigSource)
	}
	if keys := d.SettingKeys(); len(keys) > 0 {
		sb.WriteString("\n## Settings\n\n| key | value |\n|---|---|\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "| %s | %s |\n", k, d.CustomSettings[k])
		}
	}
	return sb.String()
}

var (
	macroAddPrefix   string
	macroAddArgs     int
	macroAddEncoder  string
	macroAddExports  []string
	macroAddSettings []string
	macroAddReplace  bool
)

var macroAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a macro to the usage file",
	Long: `Adds a macro definition to the primary usage file.

Export module names are normalized to lowercase slugs. Settings are passed
as key=value and may be repeated.

Examples:
  tmx macro add TRACE_ID --encoder StringAndNumerical --args 1
  tmx macro add NET_TRACE --prefix NET_ --export "Network Core" --setting color=blue`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := buildDefinition(args[0])
		if err != nil {
			return handleError(errorCode(err, ErrInvalidInput), err, "Valid encoders: Basic, StringAndNumerical")
		}

		reg, path, err := loadPrimaryRegistry()
		if err != nil {
			return err
		}

		if macroAddReplace {
			err = reg.ReplaceMacro(def)
		} else {
			err = reg.AddMacro(def)
		}
		if err != nil {
			return handleError(errorCode(err, ErrInvalidInput), err, "Use --replace to overwrite an existing macro")
		}
		if err := usagefile.Save(path, reg); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}
		op := audit.OpAdd
		if macroAddReplace {
			op = audit.OpReplace
		}
		warnAudit(auditLogger().LogMacro(op, def.MacroName, path))

		if isJSONOutput() {
			def.ConfigSource = path
			outputSuccess(toMacroJSON(def), nil)
			return nil
		}
		fmt.Println(ui.Successf("Added %s (%s) to %s", ui.Accent.Render(def.MacroName), def.Encoder(), ui.FilePath(path)))
		return nil
	},
}

func buildDefinition(name string) (macro.Definition, error) {
	def := macro.New(strings.TrimSpace(name))
	def.EncodedPrefix = macroAddPrefix
	def.EncodedArgNumber = macroAddArgs

	kind, err := macro.ParseEncoderKind(macroAddEncoder)
	if err != nil {
		return macro.Definition{}, err
	}
	def.IDEncoder = kind

	seen := make(map[string]bool)
	for _, m := range macroAddExports {
		slug := macro.NormalizeModuleName(m)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		def.ExportModules = append(def.ExportModules, slug)
	}

	for _, kv := range macroAddSettings {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return macro.Definition{}, fmt.Errorf("invalid setting %q: expected key=value", kv)
		}
		def.CustomSettings[k] = v
	}

	return def, def.Validate()
}

var macroRemoveCmd = &cobra.Command{
	Use:     "remove NAME",
	Aliases: []string{"rm"},
	Short:   "Remove a macro from the usage file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, path, err := loadPrimaryRegistry()
		if err != nil {
			return err
		}
		if !reg.RemoveMacro(args[0]) {
			return handleErrorMsg(ErrMacroNotFound, fmt.Sprintf("macro %s is not defined in %s", args[0], path),
				"Macros from included files must be removed from their own file")
		}
		if err := usagefile.Save(path, reg); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}
		warnAudit(auditLogger().LogMacro(audit.OpRemove, args[0], path))

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"removed": args[0], "usage_file": path}, nil)
			return nil
		}
		fmt.Println(ui.Successf("Removed %s", ui.Accent.Render(args[0])))
		return nil
	},
}

var macroEmbedCmd = &cobra.Command{
	Use:   "embed NAME ENCODED",
	Short: "Show how an encoded argument is embedded in generated output",
	Long: `Strips the single delimiter character on each side of ENCODED and
prepends the macro's encoded prefix.

Example:
  tmx macro embed NET_TRACE '"connect"'   # NET_connect`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := loadMergedRegistry()
		if err != nil {
			return err
		}
		def, err := reg.Lookup(args[0])
		if err != nil {
			return handleError(ErrMacroNotFound, err, "")
		}
		encoded := args[1]
		if len(encoded) < 2 {
			return handleErrorMsg(ErrInvalidInput, fmt.Sprintf("encoded argument %q must be wrapped in delimiters", encoded), "")
		}

		out := def.CombinePrefixWithEncoded(encoded)
		if isJSONOutput() {
			outputSuccess(map[string]string{"macro": def.MacroName, "embedded": out}, nil)
			return nil
		}
		fmt.Println(out)
		return nil
	},
}

// macroNames completes macro names from the merged registry.
func macroNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	reg, err := usagefile.LoadAll(getConfig().UsageFiles(getUsagePath())...)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, n := range reg.Names() {
		if strings.HasPrefix(n, toComplete) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	macroListCmd.Flags().StringVar(&macroListModule, "module", "", "Only list macros exporting to this module")
	macroAddCmd.Flags().StringVar(&macroAddPrefix, "prefix", "", "Prefix prepended to embedded encoded arguments")
	macroAddCmd.Flags().IntVar(&macroAddArgs, "args", 0, "Number of encodable arguments")
	macroAddCmd.Flags().StringVar(&macroAddEncoder, "encoder", macro.Basic.String(), "ID encoder: Basic or StringAndNumerical")
	macroAddCmd.Flags().StringSliceVar(&macroAddExports, "export", nil, "Export module (repeatable)")
	macroAddCmd.Flags().StringArrayVar(&macroAddSettings, "setting", nil, "Custom setting key=value (repeatable)")
	macroAddCmd.Flags().BoolVar(&macroAddReplace, "replace", false, "Replace an existing macro of the same name")
	_ = macroAddCmd.RegisterFlagCompletionFunc("encoder", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{macro.Basic.String(), macro.StringAndNumerical.String()}, cobra.ShellCompDirectiveNoFileComp
	})

	macroShowCmd.ValidArgsFunction = macroNames
	macroRemoveCmd.ValidArgsFunction = macroNames
	macroEmbedCmd.ValidArgsFunction = macroNames

	macroCmd.AddCommand(macroListCmd, macroShowCmd, macroAddCmd, macroRemoveCmd, macroEmbedCmd)
	rootCmd.AddCommand(macroCmd)
}
