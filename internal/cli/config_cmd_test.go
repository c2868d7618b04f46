package cli

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/aidanlsb/tracemacro/internal/config"
)

func TestConfigSetUnset(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun(t, "config", "set", "jobs", "4")
	env.mustRun(t, "config", "set", "include", "vendor/a.json, vendor/b.yaml")
	env.mustRun(t, "config", "set", "ui.accent", "39")

	loaded, err := config.LoadFrom(env.config)
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.Jobs != 4 || loaded.UI.Accent != "39" {
		t.Errorf("config = %+v", loaded)
	}
	if !reflect.DeepEqual(loaded.Include, []string{"vendor/a.json", "vendor/b.yaml"}) {
		t.Errorf("Include = %v", loaded.Include)
	}

	env.mustRun(t, "config", "unset", "jobs")
	env.ws.AssertFileNotContains("config.toml", "jobs")
	env.ws.AssertFileContains("config.toml", "vendor/b.yaml")

	resp, err := env.runJSON(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	var shown struct {
		Exists   bool                   `json:"exists"`
		Settings map[string]interface{} `json:"settings"`
	}
	decodeData(t, resp, &shown)
	if !shown.Exists || shown.Settings["ui.accent"] != "39" || shown.Settings["jobs"] != float64(0) {
		t.Errorf("config show = %+v", shown)
	}
}

func TestConfigSetRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "editor", "vim"},
		{"negative jobs", "jobs", "-1"},
		{"non-bool strict", "strict", "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			resp, err := env.runJSON(t, "config", "set", tt.key, tt.value)
			if !errors.Is(err, errReported) {
				t.Fatalf("expected reported error, got %v", err)
			}
			if resp.Error == nil || resp.Error.Code != ErrInvalidInput {
				t.Errorf("expected INVALID_INPUT, got %+v", resp.Error)
			}
		})
	}
}

func TestFlagErrorsUseJSONEnvelope(t *testing.T) {
	env := newCLIEnv(t)

	resp, err := env.runJSON(t, "macro", "list", "--bogus")
	if !errors.Is(err, errReported) {
		t.Fatalf("expected reported error, got %v", err)
	}
	if resp.OK || resp.Error == nil || resp.Error.Code != ErrInvalidInput {
		t.Fatalf("expected INVALID_INPUT envelope, got %+v", resp.Error)
	}
	if !strings.Contains(resp.Error.Message, "bogus") {
		t.Errorf("message = %q, want it to name the flag", resp.Error.Message)
	}
}

func TestConfigSetNegativeValueTextMode(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "config", "set", "jobs", "-1")
	if err == nil || !strings.Contains(err.Error(), "non-negative") {
		t.Fatalf("expected jobs validation error, got %v", err)
	}
	env.ws.AssertFileNotContains("config.toml", "jobs")
}
