package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aidanlsb/tracemacro/internal/testutil"
)

var captureStdoutMu sync.Mutex

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	captureStdoutMu.Lock()
	defer captureStdoutMu.Unlock()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	outputCh := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		_ = r.Close()
		outputCh <- buf.String()
	}()

	defer func() {
		os.Stdout = orig
	}()
	fn()
	_ = w.Close()
	os.Stdout = orig
	return <-outputCh
}

// resetFlags restores every flag in the tree to its default so commands can
// be executed repeatedly in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// setContext replaces the context on every command. Cobra only hands the
// root context to subcommands that have none yet, so a second in-process run
// would otherwise keep the first run's context.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContext(c, ctx)
	}
}

type cliEnv struct {
	ws     *testutil.Workspace
	config string
	usage  string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	ws := testutil.NewWorkspace(t)
	return &cliEnv{
		ws:     ws,
		config: ws.WriteFile("config.toml", ""),
		usage:  ws.Path("tmx.json"),
	}
}

// run executes tmx in-process with the env's config and usage file.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runContext(t, context.Background(), args...)
}

// runContext is run with a caller-supplied context, as delivered by
// signal.NotifyContext in Execute.
func (e *cliEnv) runContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	resolvedConfigPath = ""
	t.Cleanup(func() { resetFlags(rootCmd) })

	full := append([]string{"--config", e.config, "--usage", e.usage}, args...)
	rootCmd.SetArgs(full)

	var err error
	out := captureStdout(t, func() {
		setContext(rootCmd, ctx)
		err = rootCmd.ExecuteContext(ctx)
	})
	return out, err
}

// mustRun runs tmx and fails the test on error.
func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("tmx %v failed: %v\noutput:\n%s", args, err, out)
	}
	return out
}

type jsonResponse struct {
	OK       bool            `json:"ok"`
	Data     json.RawMessage `json:"data"`
	Error    *ErrorInfo      `json:"error"`
	Warnings []Warning       `json:"warnings"`
	Meta     *Meta           `json:"meta"`
}

// runJSON runs tmx with --json and decodes the envelope.
func (e *cliEnv) runJSON(t *testing.T, args ...string) (jsonResponse, error) {
	t.Helper()
	out, err := e.run(t, append([]string{"--json"}, args...)...)
	var resp jsonResponse
	if jerr := json.Unmarshal([]byte(out), &resp); jerr != nil {
		t.Fatalf("expected JSON output for %v, got parse error: %v; out=%s", args, jerr, out)
	}
	return resp, err
}

func decodeData(t *testing.T, resp jsonResponse, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v; data=%s", err, resp.Data)
	}
}
