// Package config handles global tmx configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultUsageFile is used when neither a flag nor the config names a usage file.
const DefaultUsageFile = "tmx.json"

// DefaultJobs is the ingest concurrency when none is configured.
const DefaultJobs = 1

// Config represents the global tmx configuration.
type Config struct {
	// UsageFile is the primary usage document. Commands that edit macros
	// write to this file.
	UsageFile string `toml:"usage_file"`

	// Include lists additional usage documents merged (read-only) after
	// UsageFile when decoding and ingesting.
	Include []string `toml:"include"`

	// IndexPath is the identity index database. Defaults to
	// .tmx/index.db next to the usage file.
	IndexPath string `toml:"index_path"`

	// Jobs is the number of source units ingested concurrently.
	Jobs int `toml:"jobs"`

	// Strict treats warnings (unknown macros, hash collisions) as errors.
	Strict bool `toml:"strict"`

	// Audit appends usage file edits and ingest runs to .tmx/audit.log
	// next to the usage file.
	Audit bool `toml:"audit"`

	// UI controls optional CLI theming preferences.
	UI UIConfig `toml:"ui"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output and markdown rendering.
	// Supported values are ANSI color codes ("0" to "255") or hex colors ("#RRGGBB").
	Accent string `toml:"accent"`

	// CodeTheme sets the Glamour/Chroma theme used for rendered markdown code blocks.
	CodeTheme string `toml:"code_theme"`
}

// GetUsageFile returns the configured primary usage file, falling back to
// DefaultUsageFile in the working directory.
func (c *Config) GetUsageFile() string {
	if c != nil && strings.TrimSpace(c.UsageFile) != "" {
		return c.UsageFile
	}
	return DefaultUsageFile
}

// UsageFiles returns every usage document to merge, primary first.
// Relative include paths resolve against the primary file's directory.
func (c *Config) UsageFiles(primary string) []string {
	files := []string{primary}
	if c == nil {
		return files
	}
	base := filepath.Dir(primary)
	for _, inc := range c.Include {
		inc = strings.TrimSpace(inc)
		if inc == "" {
			continue
		}
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(base, inc)
		}
		files = append(files, inc)
	}
	return files
}

// GetIndexPath resolves the identity index path for a usage file.
func (c *Config) GetIndexPath(usageFile string) string {
	if c != nil && strings.TrimSpace(c.IndexPath) != "" {
		return c.IndexPath
	}
	return filepath.Join(filepath.Dir(usageFile), ".tmx", "index.db")
}

// GetAuditPath returns the audit log path for a usage file.
func (c *Config) GetAuditPath(usageFile string) string {
	return filepath.Join(filepath.Dir(usageFile), ".tmx", "audit.log")
}

// GetJobs returns the ingest concurrency, at least 1.
func (c *Config) GetJobs() int {
	if c == nil || c.Jobs < 1 {
		return DefaultJobs
	}
	return c.Jobs
}

// Load loads the configuration from the default location.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	configPath := DefaultPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &Config{}, nil
	}

	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	var config Config
	md, err := toml.DecodeFile(path, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if config.Jobs < 0 {
		return nil, fmt.Errorf("config %s: jobs must not be negative", path)
	}
	return &config, nil
}

// ResolveConfigPath resolves the effective config path from an optional override.
func ResolveConfigPath(explicitConfigPath string) string {
	if strings.TrimSpace(explicitConfigPath) != "" {
		return explicitConfigPath
	}
	return DefaultPath()
}

// DefaultPath returns the default config file path.
// Checks ~/.config/tmx/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "tmx", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "tmx", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

// CreateDefault creates a default config file at path if it doesn't exist.
func CreateDefault(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil // Already exists
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	defaultConfig := `# tmx configuration

# Primary usage document (JSON, or YAML by extension).
# usage_file = "tmx.json"

# Extra usage documents merged read-only after usage_file.
# include = ["vendor/usage.yaml"]

# Identity index (defaults to .tmx/index.db next to usage_file).
# index_path = "/var/cache/tmx/index.db"

# Source units ingested concurrently.
# jobs = 4

# Treat warnings as errors.
# strict = false

# Record usage file edits and ingest runs in .tmx/audit.log.
# audit = false

# [ui]
# accent = "39"
# code_theme = "monokai"
`

	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
