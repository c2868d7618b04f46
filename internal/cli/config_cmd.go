package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/tracemacro/internal/config"
	"github.com/aidanlsb/tracemacro/internal/ui"
)

// configKeys lists the settings `tmx config set` and `unset` accept, in
// display order.
var configKeys = []string{
	"usage_file",
	"include",
	"index_path",
	"jobs",
	"strict",
	"audit",
	"ui.accent",
	"ui.code_theme",
}

func configValues(c *config.Config) map[string]interface{} {
	include := c.Include
	if include == nil {
		include = []string{}
	}
	return map[string]interface{}{
		"usage_file":    strings.TrimSpace(c.UsageFile),
		"include":       include,
		"index_path":    strings.TrimSpace(c.IndexPath),
		"jobs":          c.Jobs,
		"strict":        c.Strict,
		"audit":         c.Audit,
		"ui.accent":     strings.TrimSpace(c.UI.Accent),
		"ui.code_theme": strings.TrimSpace(c.UI.CodeTheme),
	}
}

// setConfigValue applies a raw string value to key. Include values are
// comma separated.
func setConfigValue(c *config.Config, key, raw string) error {
	raw = strings.TrimSpace(raw)
	switch key {
	case "usage_file":
		c.UsageFile = raw
	case "include":
		c.Include = nil
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Include = append(c.Include, p)
			}
		}
	case "index_path":
		c.IndexPath = raw
	case "jobs":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("jobs must be a non-negative integer, got %q", raw)
		}
		c.Jobs = n
	case "strict", "audit":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s must be true or false, got %q", key, raw)
		}
		if key == "strict" {
			c.Strict = b
		} else {
			c.Audit = b
		}
	case "ui.accent":
		c.UI.Accent = raw
	case "ui.code_theme":
		c.UI.CodeTheme = raw
	default:
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(configKeys, ", "))
	}
	return nil
}

func unsetConfigValue(c *config.Config, key string) error {
	switch key {
	case "usage_file":
		c.UsageFile = ""
	case "include":
		c.Include = nil
	case "index_path":
		c.IndexPath = ""
	case "jobs":
		c.Jobs = 0
	case "strict":
		c.Strict = false
	case "audit":
		c.Audit = false
	case "ui.accent":
		c.UI.Accent = ""
	case "ui.code_theme":
		c.UI.CodeTheme = ""
	default:
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(configKeys, ", "))
	}
	return nil
}

func configExists() bool {
	_, err := os.Stat(resolvedConfigPath)
	return err == nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit tmx config.toml settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved config",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	c := getConfig()
	values := configValues(c)

	if isJSONOutput() {
		outputSuccess(map[string]interface{}{
			"config_path": resolvedConfigPath,
			"exists":      configExists(),
			"settings":    values,
			"usage_path":  getUsagePath(),
			"index_path":  getIndexPath(),
		}, nil)
		return nil
	}

	fmt.Printf("config: %s", ui.FilePath(resolvedConfigPath))
	if !configExists() {
		fmt.Print(ui.Hint(" (not created; run 'tmx init --write-config')"))
	}
	fmt.Println()
	fmt.Printf("usage:  %s\n", ui.FilePath(getUsagePath()))
	fmt.Printf("index:  %s\n", ui.FilePath(getIndexPath()))
	fmt.Println()

	tbl := ui.NewTable(2)
	for _, key := range configKeys {
		var shown string
		switch v := values[key].(type) {
		case string:
			shown = v
		case []string:
			shown = strings.Join(v, ", ")
		default:
			shown = fmt.Sprint(v)
		}
		if shown == "" {
			shown = ui.Muted.Render("(unset)")
		}
		tbl.AddRow(key, shown)
	}
	fmt.Print(tbl.String())
	return nil
}

func saveConfigChange(key string, apply func(*config.Config) error) error {
	c := *getConfig()
	if err := apply(&c); err != nil {
		return handleError(ErrInvalidInput, err, "")
	}
	if err := config.SaveTo(resolvedConfigPath, &c); err != nil {
		return handleError(ErrFileWriteError, err, "")
	}
	cfg = &c

	if isJSONOutput() {
		outputSuccess(map[string]interface{}{
			"config_path": resolvedConfigPath,
			"key":         key,
			"value":       configValues(&c)[key],
		}, nil)
		return nil
	}
	fmt.Println(ui.Successf("Updated %s in %s", ui.Accent.Render(key), ui.FilePath(resolvedConfigPath)))
	return nil
}

var configSetCmd = &cobra.Command{
	Use:       "set KEY VALUE",
	Short:     "Set a config value",
	Args:      cobra.ExactArgs(2),
	ValidArgs: configKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveConfigChange(args[0], func(c *config.Config) error {
			return setConfigValue(c, args[0], args[1])
		})
	},
}

var configUnsetCmd = &cobra.Command{
	Use:       "unset KEY",
	Short:     "Remove a config value",
	Args:      cobra.ExactArgs(1),
	ValidArgs: configKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveConfigChange(args[0], func(c *config.Config) error {
			return unsetConfigValue(c, args[0])
		})
	},
}

func init() {
	// Values such as "-1" are arguments, not flags.
	configSetCmd.Flags().SetInterspersed(false)
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}
