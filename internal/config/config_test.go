package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		var cfg *Config
		if got := cfg.GetUsageFile(); got != DefaultUsageFile {
			t.Errorf("GetUsageFile() = %q, want %q", got, DefaultUsageFile)
		}
		if got := cfg.GetJobs(); got != DefaultJobs {
			t.Errorf("GetJobs() = %d, want %d", got, DefaultJobs)
		}
	})

	t.Run("index path next to usage file", func(t *testing.T) {
		cfg := &Config{}
		got := cfg.GetIndexPath(filepath.Join("proj", "tmx.json"))
		want := filepath.Join("proj", ".tmx", "index.db")
		if got != want {
			t.Errorf("GetIndexPath() = %q, want %q", got, want)
		}
	})

	t.Run("explicit index path", func(t *testing.T) {
		cfg := &Config{IndexPath: "/tmp/idx.db"}
		if got := cfg.GetIndexPath("tmx.json"); got != "/tmp/idx.db" {
			t.Errorf("GetIndexPath() = %q", got)
		}
	})
}

func TestUsageFiles(t *testing.T) {
	cfg := &Config{Include: []string{"vendor/a.yaml", "", "/abs/b.json"}}
	primary := filepath.Join("proj", "tmx.json")

	got := cfg.UsageFiles(primary)
	want := []string{primary, filepath.Join("proj", "vendor", "a.yaml"), "/abs/b.json"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UsageFiles() = %v, want %v", got, want)
	}
}

func TestLoadFrom(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
usage_file = "trace/usage.yaml"
include = ["extra.json"]
jobs = 4
strict = true

[ui]
accent = "39"
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.UsageFile != "trace/usage.yaml" {
			t.Errorf("UsageFile = %q", cfg.UsageFile)
		}
		if cfg.GetJobs() != 4 || !cfg.Strict {
			t.Errorf("Jobs = %d, Strict = %v", cfg.Jobs, cfg.Strict)
		}
		if cfg.UI.Accent != "39" {
			t.Errorf("UI.Accent = %q", cfg.UI.Accent)
		}
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("usage = \"x\"\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		_, err := LoadFrom(path)
		if err == nil || !strings.Contains(err.Error(), "unknown keys") {
			t.Fatalf("expected unknown keys error, got %v", err)
		}
	})

	t.Run("negative jobs rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("jobs = -2\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := LoadFrom(path); err == nil {
			t.Fatal("expected error for negative jobs")
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("usage_file = \n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := LoadFrom(path); err == nil {
			t.Fatal("expected parse error")
		}
	})
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := &Config{
		UsageFile: "usage.json",
		Include:   []string{"a.yaml"},
		Jobs:      3,
		Strict:    true,
		Audit:     true,
		UI:        UIConfig{CodeTheme: "nord"},
	}

	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo returned error: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
}

func TestSaveToOmitsZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTo(path, &Config{UsageFile: "  "}); err != nil {
		t.Fatalf("SaveTo returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if strings.TrimSpace(string(data)) != "" {
		t.Errorf("expected empty config, got:\n%s", data)
	}
}

func TestCreateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmx", "config.toml")
	got, err := CreateDefault(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path {
		t.Errorf("CreateDefault() = %q, want %q", got, path)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("default config does not parse: %v", err)
	}
	if cfg.GetUsageFile() != DefaultUsageFile {
		t.Errorf("GetUsageFile() = %q", cfg.GetUsageFile())
	}
}
