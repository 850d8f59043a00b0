package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/internal/engine"
	"github.com/wes-dispatch/wes-dispatch/internal/metadata"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

// writeEngine writes a shell script standing in for the engine binary. The
// script receives "run <workflow> -params-file <file> ...".
func writeEngine(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nextflow")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write engine script: %v", err)
	}
	return path
}

func newRuntime(t *testing.T, engineConfig *config.EngineConfig) *LocalRuntime {
	t.Helper()
	return &LocalRuntime{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		engine:  engineConfig,
		ctx:     context.Background(),
		baseDir: t.TempDir(),
	}
}

func sampleParams() *api.RunParams {
	return &api.RunParams{
		RunID:          "run-1",
		WorkflowURL:    "nextflow-io/hello",
		WorkflowParams: map[string]any{"greeting": "hola"},
		EngineParams:   api.WorkflowEngineParams{RunName: "wes-run1"},
	}
}

func launch(t *testing.T, runtime *LocalRuntime) (abstractions.LaunchHandle, *metadata.Tracker, error) {
	t.Helper()
	params := sampleParams()
	tracker := metadata.NewTracker(params.RunID, params)
	handle, err := runtime.Launch(params, tracker)
	return handle, tracker, err
}

func TestLocalRuntimeName(t *testing.T) {
	runtime, err := NewLocalRuntime(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err != nil {
		t.Fatalf("NewLocalRuntime returned error: %v", err)
	}
	if runtime.Name() != "local" {
		t.Fatalf("expected Name to be local")
	}
}

func TestLaunchSucceeds(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	binary := writeEngine(t, `cat "$4" > "$WES_TEST_OUT"; echo "$WES_RUN_ID" >> "$WES_TEST_OUT"`)
	runtime := newRuntime(t, &config.EngineConfig{
		Binary: binary,
		Env:    []api.EnvVar{{Name: "WES_TEST_OUT", Value: out}},
	})

	handle, tracker, err := launch(t, runtime)
	if err != nil {
		t.Fatalf("Launch returned error: %v", err)
	}
	if !strings.HasPrefix(handle.ID(), "pid-") {
		t.Fatalf("unexpected handle id %q", handle.ID())
	}
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("expected the engine to write its output: %v", err)
	}
	if !strings.Contains(string(content), `"greeting": "hola"`) || !strings.Contains(string(content), "run-1") {
		t.Fatalf("unexpected engine output %q", content)
	}

	m := tracker.Snapshot()
	if !strings.Contains(m.CommandLine, "run nextflow-io/hello -params-file") || !strings.Contains(m.CommandLine, "-name wes-run1") {
		t.Fatalf("unexpected command line %q", m.CommandLine)
	}
	if m.Start == nil || m.ExitStatus == nil || *m.ExitStatus != 0 {
		t.Fatalf("expected start and exit status to be recorded, got %+v", m)
	}
	if m.Stats == nil || m.Stats.Succeeded != 1 {
		t.Fatalf("unexpected stats %+v", m.Stats)
	}
}

func TestLaunchWritesEngineConfig(t *testing.T) {
	out := filepath.Join(t.TempDir(), "config")
	binary := writeEngine(t, `cat "$2" > "$WES_TEST_OUT"`)
	runtime := newRuntime(t, &config.EngineConfig{
		Binary:        binary,
		ConfigContent: "process.executor = 'local'",
		Env:           []api.EnvVar{{Name: "WES_TEST_OUT", Value: out}},
	})
	handle, tracker, err := launch(t, runtime)
	if err != nil {
		t.Fatalf("Launch returned error: %v", err)
	}
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	content, err := os.ReadFile(out)
	if err != nil || string(content) != "process.executor = 'local'" {
		t.Fatalf("expected the engine config to be passed with -c, got %q (%v)", content, err)
	}
	if files := tracker.Snapshot().ConfigFiles; len(files) != 1 || filepath.Base(files[0]) != engineConfigFileName {
		t.Fatalf("unexpected config files %v", files)
	}
}

func TestLaunchFailures(t *testing.T) {
	testCases := []struct {
		name     string
		script   string
		expected any
		exitCode int
	}{
		{"report on stderr", `echo "ERROR ~ nextflow.exception.ScriptNotFoundException: Cannot find script file: main.nf" >&2; exit 1`, &engine.ScriptNotFoundError{}, 1},
		{"report on stdout", `echo "nextflow.exception.AbortOperationException: Missing params"; exit 1`, &engine.AbortOperationError{}, 1},
		{"no report", `exit 3`, &engine.ProcessFailedError{}, 3},
		{"log output without a report", `echo "N E X T F L O W  ~  version 21.04.1"; echo "WARN: some noisy warning" >&2; exit 4`, &engine.ProcessFailedError{}, 4},
		{"unknown report", `echo "java.lang.NullPointerException: boom" >&2; exit 1`, &engine.UnknownEngineError{}, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runtime := newRuntime(t, &config.EngineConfig{Binary: writeEngine(t, tc.script)})
			handle, tracker, err := launch(t, runtime)
			if err != nil {
				t.Fatalf("Launch returned error: %v", err)
			}
			err = handle.Wait(context.Background())
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got, want := fmt.Sprintf("%T", err), fmt.Sprintf("%T", tc.expected); got != want {
				t.Fatalf("expected %s, got %s (%v)", want, got, err)
			}
			m := tracker.Snapshot()
			if m.ExitStatus == nil || *m.ExitStatus != tc.exitCode {
				t.Fatalf("expected exit status %d, got %v", tc.exitCode, m.ExitStatus)
			}
		})
	}
}

func TestLaunchMissingBinary(t *testing.T) {
	for _, binary := range []string{"/nonexistent/nextflow", "wes-no-such-engine"} {
		runtime := newRuntime(t, &config.EngineConfig{Binary: binary})
		_, _, err := launch(t, runtime)
		var unavailable *engine.ClusterUnavailableError
		if !errors.As(err, &unavailable) {
			t.Fatalf("%s: expected ClusterUnavailableError, got %T (%v)", binary, err, err)
		}
		if entries, _ := os.ReadDir(runtime.baseDir); len(entries) != 0 {
			t.Fatalf("%s: expected the run directory to be removed, found %d entries", binary, len(entries))
		}
	}
}

func TestWaitHonorsContext(t *testing.T) {
	runtime := newRuntime(t, &config.EngineConfig{Binary: writeEngine(t, "exec sleep 10")})
	handle, _, err := launch(t, runtime)
	if err != nil {
		t.Fatalf("Launch returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	started := time.Now()
	err = handle.Wait(ctx)
	var timeout *engine.LaunchTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected LaunchTimeoutError, got %T (%v)", err, err)
	}
	if time.Since(started) > 5*time.Second {
		t.Fatalf("expected the process to be killed")
	}
	// a second wait reports the same outcome
	if !errors.As(handle.Wait(context.Background()), &timeout) {
		t.Fatalf("expected the outcome to be kept")
	}
}

func TestTailBuffer(t *testing.T) {
	buffer := newTailBuffer(4)
	_, _ = buffer.Write([]byte("ab"))
	_, _ = buffer.Write([]byte("cdef"))
	if buffer.String() != "cdef" {
		t.Fatalf("expected the last 4 bytes, got %q", buffer.String())
	}
}

func TestRunDirectoryCleanup(t *testing.T) {
	t.Run("removed after the run with a separate launch directory", func(t *testing.T) {
		runtime := newRuntime(t, &config.EngineConfig{Binary: writeEngine(t, `exit 0`)})
		params := sampleParams()
		params.EngineParams.LaunchDir = t.TempDir()
		handle, err := runtime.Launch(params, metadata.NewTracker(params.RunID, params))
		if err != nil {
			t.Fatalf("Launch returned error: %v", err)
		}
		if entries, _ := os.ReadDir(runtime.baseDir); len(entries) != 1 {
			t.Fatalf("expected a run directory while running, found %d entries", len(entries))
		}
		if err := handle.Wait(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if entries, _ := os.ReadDir(runtime.baseDir); len(entries) != 0 {
			t.Fatalf("expected the run directory to be removed, found %d entries", len(entries))
		}
	})

	t.Run("kept when it is the launch directory", func(t *testing.T) {
		runtime := newRuntime(t, &config.EngineConfig{Binary: writeEngine(t, `exit 1`)})
		handle, _, err := launch(t, runtime)
		if err != nil {
			t.Fatalf("Launch returned error: %v", err)
		}
		_ = handle.Wait(context.Background())
		if entries, _ := os.ReadDir(runtime.baseDir); len(entries) != 1 {
			t.Fatalf("expected the launch directory to be kept, found %d entries", len(entries))
		}
	})
}
