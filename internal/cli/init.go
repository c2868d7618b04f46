package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/tracemacro/internal/config"
	"github.com/aidanlsb/tracemacro/internal/ui"
	"github.com/aidanlsb/tracemacro/internal/usagefile"
)

var initWriteConfig bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a starter usage file",
	Long: `Writes a usage file with the default levels and a single TRACE macro.

The format follows the extension: .yaml/.yml for YAML, anything else JSON.
Without a path, the --usage flag or usage_file from config is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := getUsagePath()
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil {
			return handleErrorMsg(ErrFileExists, fmt.Sprintf("usage file already exists: %s", path),
				"Edit it with 'tmx macro add' or remove it first")
		}
		if err := usagefile.CreateDefault(path); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		var writtenConfig string
		if initWriteConfig {
			p, err := config.CreateDefault(resolvedConfigPath)
			if err != nil {
				return handleError(ErrFileWriteError, err, "")
			}
			writtenConfig = p
		}

		if isJSONOutput() {
			data := map[string]interface{}{"usage_file": path}
			if writtenConfig != "" {
				data["config_file"] = writtenConfig
			}
			outputSuccess(data, nil)
			return nil
		}

		fmt.Println(ui.Successf("Created usage file %s", ui.FilePath(path)))
		if writtenConfig != "" {
			fmt.Println(ui.Successf("Config at %s", ui.FilePath(writtenConfig)))
		}
		fmt.Println(ui.Hint("Next: tmx macro add NAME --encoder StringAndNumerical"))
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initWriteConfig, "write-config", false, "Also write a commented default config file")
	rootCmd.AddCommand(initCmd)
}
