package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/internal/engine"
	"github.com/wes-dispatch/wes-dispatch/internal/metadata"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

const (
	paramsFileName       = "params.json"
	engineConfigFileName = "engine.config"
	envRunIDName         = "WES_RUN_ID"
	// tailSize is how much of each output stream is kept for the failure report.
	tailSize = 16 * 1024
	// waitDelay bounds how long output is drained after the process is gone.
	waitDelay = 5 * time.Second
)

// LocalRuntime runs the engine as a child process of the service.
type LocalRuntime struct {
	logger  *slog.Logger
	engine  *config.EngineConfig
	ctx     context.Context
	baseDir string
}

func NewLocalRuntime(logger *slog.Logger, engineConfig *config.EngineConfig) (abstractions.Runtime, error) {
	if engineConfig == nil {
		engineConfig = &config.EngineConfig{}
	}
	return &LocalRuntime{logger: logger, engine: engineConfig, ctx: context.Background()}, nil
}

func (r *LocalRuntime) WithLogger(logger *slog.Logger) abstractions.Runtime {
	return &LocalRuntime{logger: logger, engine: r.engine, ctx: r.ctx, baseDir: r.baseDir}
}

func (r *LocalRuntime) WithContext(ctx context.Context) abstractions.Runtime {
	return &LocalRuntime{logger: r.logger, engine: r.engine, ctx: ctx, baseDir: r.baseDir}
}

// Launch writes the run files into a fresh directory and starts the engine there.
func (r *LocalRuntime) Launch(params *api.RunParams, tracker *metadata.Tracker) (abstractions.LaunchHandle, error) {
	if params == nil || params.RunID == "" {
		return nil, &engine.IllegalConfigError{Message: "run id is required"}
	}
	runDir, err := os.MkdirTemp(r.baseDir, "wes-run-*")
	if err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	removeRunDir := func() {
		if err := os.RemoveAll(runDir); err != nil {
			r.logger.Warn("failed to remove the run directory", "dir", runDir, "error", err.Error())
		}
	}

	paramsFile, configFile, err := r.writeRunFiles(runDir, params)
	if err != nil {
		removeRunDir()
		return nil, err
	}

	args := engine.Command(r.engine.Binary, params, paramsFile, configFile)
	launchDir := params.EngineParams.LaunchDir
	if launchDir == "" {
		launchDir = runDir
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = launchDir
	cmd.WaitDelay = waitDelay
	cmd.Env = append(os.Environ(), envRunIDName+"="+params.RunID)
	for _, item := range r.engine.Env {
		if item.Name != "" && item.Name != envRunIDName {
			cmd.Env = append(cmd.Env, item.Name+"="+item.Value)
		}
	}
	stdout := newTailBuffer(tailSize)
	stderr := newTailBuffer(tailSize)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.recordLaunch(args, params, launchDir, configFile, tracker)

	if err := cmd.Start(); err != nil {
		r.logger.Error("engine start error", "binary", args[0], "error", err)
		removeRunDir()
		return nil, classifyStartError(err, args[0])
	}
	pid := strconv.Itoa(cmd.Process.Pid)
	r.logger.Info("engine process started", "pid", pid, "dir", launchDir)

	handle := &processHandle{
		logger:  r.logger,
		tracker: tracker,
		cmd:     cmd,
		name:    "pid-" + pid,
		args:    args,
		stdout:  stdout,
		stderr:  stderr,
	}
	// a run directory used as the launch directory keeps the engine log and
	// resume state, otherwise it only holds the run files
	if launchDir != runDir {
		handle.cleanup = removeRunDir
	}
	handle.record("Running", nil)
	return handle, nil
}

func (r *LocalRuntime) writeRunFiles(runDir string, params *api.RunParams) (string, string, error) {
	workflowParams := params.WorkflowParams
	if workflowParams == nil {
		workflowParams = map[string]any{}
	}
	content, err := json.MarshalIndent(workflowParams, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal workflow params: %w", err)
	}
	paramsFile := filepath.Join(runDir, paramsFileName)
	if err := os.WriteFile(paramsFile, content, 0o600); err != nil {
		return "", "", fmt.Errorf("write params file: %w", err)
	}

	configFile := r.engine.ConfigFile
	if r.engine.ConfigContent != "" {
		configFile = filepath.Join(runDir, engineConfigFileName)
		if err := os.WriteFile(configFile, []byte(r.engine.ConfigContent), 0o600); err != nil {
			return "", "", fmt.Errorf("write engine config: %w", err)
		}
	}
	return paramsFile, configFile, nil
}

func (r *LocalRuntime) recordLaunch(args []string, params *api.RunParams, launchDir, configFile string, tracker *metadata.Tracker) {
	var configFiles []string
	if configFile != "" {
		configFiles = []string{configFile}
	}
	workDir := params.EngineParams.WorkDir
	if workDir == "" {
		workDir = filepath.Join(launchDir, "work")
	}
	facts := metadata.LaunchFacts{
		CommandLine: engine.CommandLine(args),
		Engine:      engine.EngineName,
		Profile:     params.EngineParams.Profile,
		Revision:    params.EngineParams.Revision,
		RunName:     params.EngineParams.RunName,
		SessionID:   params.EngineParams.Resume,
		Repository:  params.WorkflowURL,
		ProjectDir:  params.EngineParams.ProjectDir,
		LaunchDir:   launchDir,
		WorkDir:     workDir,
		ConfigFiles: configFiles,
	}
	if home, err := os.UserHomeDir(); err == nil {
		facts.HomeDir = home
	}
	if user := os.Getenv("USER"); user != "" {
		facts.UserName = user
	}
	if err := tracker.RecordLaunch(facts); err != nil {
		r.logger.Warn("Failed to record the launch metadata", "error", err.Error())
	}
}

// classifyStartError maps process start failures onto engine failure types.
func classifyStartError(err error, binary string) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return &engine.ClusterUnavailableError{Message: fmt.Sprintf("engine binary %s is not available: %v", binary, err)}
	case errors.Is(err, fs.ErrPermission):
		return &engine.IllegalConfigError{Message: fmt.Sprintf("engine binary %s cannot be executed: %v", binary, err)}
	}
	return fmt.Errorf("start engine %s: %w", binary, err)
}

func (r *LocalRuntime) Name() string {
	return "local"
}

type processHandle struct {
	logger  *slog.Logger
	tracker *metadata.Tracker
	cmd     *exec.Cmd
	name    string
	args    []string
	stdout  *tailBuffer
	stderr  *tailBuffer
	cleanup func()
	once    sync.Once
	result  error
}

func (h *processHandle) ID() string {
	return h.name
}

// Wait waits for the engine process to exit. The process is killed when ctx
// ends first.
func (h *processHandle) Wait(ctx context.Context) error {
	h.once.Do(func() {
		h.result = h.wait(ctx)
		if h.cleanup != nil {
			h.cleanup()
		}
	})
	return h.result
}

func (h *processHandle) wait(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	var err error
	select {
	case <-ctx.Done():
		if killErr := h.cmd.Process.Kill(); killErr != nil {
			h.logger.Warn("failed to kill the engine process", "pid", h.name, "error", killErr.Error())
		}
		<-done
		h.record("Failed", nil)
		return &engine.LaunchTimeoutError{Message: fmt.Sprintf("engine process %s did not finish: %v", h.name, ctx.Err())}
	case err = <-done:
	}

	if err == nil {
		exit := 0
		h.record("Succeeded", &exit)
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		h.record("Failed", nil)
		return fmt.Errorf("wait for engine process %s: %w", h.name, err)
	}
	code := exitErr.ExitCode()
	if code < 0 {
		h.record("Failed", nil)
		return &engine.ProcessUnrecoverableError{Message: fmt.Sprintf("engine process was terminated: %v", exitErr)}
	}
	h.record("Failed", &code)
	if report := engine.ParseReport(h.stderr.String()); report != nil {
		return report
	}
	if report := engine.ParseReport(h.stdout.String()); report != nil {
		return report
	}
	return &engine.ProcessFailedError{Message: fmt.Sprintf("engine exited with code %d", code), ExitCode: code}
}

func (h *processHandle) record(phase string, exit *int) {
	facts := metadata.PodFacts{
		Name:       h.name,
		Phase:      phase,
		Containers: []api.ContainerInfo{{Name: "engine", Command: append([]string(nil), h.args...)}},
		ExitStatus: exit,
	}
	if phase == "Running" {
		facts.StartTime = time.Now().Format(time.RFC3339)
	}
	if err := h.tracker.RecordPod(facts); err != nil {
		h.logger.Warn("Failed to record the process metadata", "pid", h.name, "error", err.Error())
	}
}

// tailBuffer keeps the last size bytes written to it.
type tailBuffer struct {
	mu   sync.Mutex
	size int
	data []byte
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.size; over > 0 {
		b.data = append([]byte(nil), b.data[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
