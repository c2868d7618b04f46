// Package cli implements the command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/tracemacro/internal/config"
	"github.com/aidanlsb/tracemacro/internal/registry"
	"github.com/aidanlsb/tracemacro/internal/ui"
	"github.com/aidanlsb/tracemacro/internal/usagefile"
)

var (
	// Global flags
	usagePathFlag string
	indexPathFlag string
	configPath    string

	// Resolved values
	resolvedConfigPath string
	cfg                *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tmx",
	Short: "tmx - trace macro identity toolchain",
	Long: `tmx maintains the usage file that describes your trace macros and turns
the macro invocations found in source into stable call-site identities.

Scan output is ingested into a local index so hashes seen in emitted log
lines can be traced back to the file and line that produced them.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "completion", "help", "version":
			return nil
		}

		var err error
		cfg, resolvedConfigPath, err = loadGlobalConfigWithPath()
		if err != nil {
			return handleError(ErrConfigInvalid, fmt.Errorf("failed to load config: %w", err),
				"Fix the file or pass --config to use another one")
		}
		ui.ConfigureTheme(cfg.UI.Accent)
		ui.ConfigureMarkdownCodeTheme(cfg.UI.CodeTheme)
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
	}
	return err
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return handleError(ErrInvalidInput, err, fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()))
	})
	rootCmd.PersistentFlags().StringVarP(&usagePathFlag, "usage", "u", "", "Path to the usage file (overrides usage_file in config)")
	rootCmd.PersistentFlags().StringVar(&indexPathFlag, "index", "", "Path to the identity index database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for script use)")
}

// getConfig returns the loaded config.
func getConfig() *config.Config {
	if cfg == nil {
		return &config.Config{}
	}
	return cfg
}

// getUsagePath returns the primary usage file: flag > config > default.
func getUsagePath() string {
	if strings.TrimSpace(usagePathFlag) != "" {
		return usagePathFlag
	}
	return getConfig().GetUsageFile()
}

// getIndexPath returns the identity index path: flag > config > beside usage file.
func getIndexPath() string {
	if strings.TrimSpace(indexPathFlag) != "" {
		return indexPathFlag
	}
	return getConfig().GetIndexPath(getUsagePath())
}

func loadGlobalConfigWithPath() (*config.Config, string, error) {
	resolvedPath := config.ResolveConfigPath(configPath)
	if _, err := os.Stat(resolvedPath); os.IsNotExist(err) {
		if configPath != "" {
			return nil, resolvedPath, fmt.Errorf("config file not found: %s", resolvedPath)
		}
		return &config.Config{}, resolvedPath, nil
	}
	loaded, err := config.LoadFrom(resolvedPath)
	if err != nil {
		return nil, resolvedPath, err
	}
	return loaded, resolvedPath, nil
}

// loadPrimaryRegistry loads only the primary usage file, for commands that
// edit it.
func loadPrimaryRegistry() (*registry.Registry, string, error) {
	path := getUsagePath()
	reg, err := usagefile.Load(path)
	if err != nil {
		return nil, path, handleError(errorCode(err, ErrUsageFileInvalid), err, usageSuggestion(err))
	}
	return reg, path, nil
}

// loadMergedRegistry loads the primary usage file plus configured includes.
func loadMergedRegistry() (*registry.Registry, []string, error) {
	files := getConfig().UsageFiles(getUsagePath())
	reg, err := usagefile.LoadAll(files...)
	if err != nil {
		return nil, files, handleError(errorCode(err, ErrUsageFileInvalid), err, usageSuggestion(err))
	}
	return reg, files, nil
}

func usageSuggestion(err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return "Run 'tmx init' to create a usage file, or pass --usage"
	}
	return ""
}
