package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aidanlsb/tracemacro/internal/atomicfile"
)

type persistedConfig struct {
	UsageFile *string              `toml:"usage_file,omitempty"`
	Include   []string             `toml:"include,omitempty"`
	IndexPath *string              `toml:"index_path,omitempty"`
	Jobs      *int                 `toml:"jobs,omitempty"`
	Strict    *bool                `toml:"strict,omitempty"`
	Audit     *bool                `toml:"audit,omitempty"`
	UI        *persistedUISettings `toml:"ui,omitempty"`
}

type persistedUISettings struct {
	Accent    *string `toml:"accent,omitempty"`
	CodeTheme *string `toml:"code_theme,omitempty"`
}

func nonEmptyPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// SaveTo writes the config to a specific path atomically. Zero values are
// left out so the file only records explicit choices.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	out := persistedConfig{
		UsageFile: nonEmptyPtr(cfg.UsageFile),
		IndexPath: nonEmptyPtr(cfg.IndexPath),
	}
	if len(cfg.Include) > 0 {
		out.Include = cfg.Include
	}
	if cfg.Jobs > 0 {
		jobs := cfg.Jobs
		out.Jobs = &jobs
	}
	if cfg.Strict {
		strict := true
		out.Strict = &strict
	}
	if cfg.Audit {
		audit := true
		out.Audit = &audit
	}

	accent := nonEmptyPtr(cfg.UI.Accent)
	codeTheme := nonEmptyPtr(cfg.UI.CodeTheme)
	if accent != nil || codeTheme != nil {
		out.UI = &persistedUISettings{
			Accent:    accent,
			CodeTheme: codeTheme,
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}

	return nil
}
