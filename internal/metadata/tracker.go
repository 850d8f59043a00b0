package metadata

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wes-dispatch/wes-dispatch/internal/logging"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

// Unknown is recorded for informational facts that could not be obtained.
const Unknown = "unknown"

var ErrFinalized = errors.New("run metadata has already been finalized")

// Container runtime prefixes of a pod's container IDs.
var containerEngines = map[string]string{
	"containerd://": "containerd",
	"docker://":     "docker",
	"cri-o://":      "cri-o",
}

// LaunchFacts are known once the engine launch has been prepared.
type LaunchFacts struct {
	CommandLine string
	Engine      string
	Profile     string
	Revision    string
	RunName     string
	SessionID   string
	ScriptID    string
	ScriptName  string
	ScriptFile  string
	Repository  string
	CommitID    string
	ProjectDir  string
	ProjectName string
	LaunchDir   string
	WorkDir     string
	HomeDir     string
	UserName    string
	ConfigFiles []string
}

// PodFacts is what a single observation of an engine pod reports.
type PodFacts struct {
	Name string
	// Phase is the pod phase (Pending, Running, Succeeded, Failed).
	Phase string
	// StartTime is an RFC 3339 date-time with offset.
	StartTime   string
	Containers  []api.ContainerInfo
	ContainerID string
	ExitStatus  *int
	Restarts    int32
}

// Tracker accumulates the metadata of a single run. All methods are safe for
// concurrent use. Empty incoming values never clear a recorded field.
type Tracker struct {
	mu        sync.Mutex
	logger    *slog.Logger
	metadata  api.RunMetadata
	pods      map[string]podState
	finalized bool
}

type podState struct {
	phase    string
	restarts int32
}

// NewTracker creates the metadata of a run from its request-derived parameters.
func NewTracker(runID string, params *api.RunParams) *Tracker {
	t := &Tracker{
		logger: logging.RunLogger(nil, runID),
		pods:   map[string]podState{},
	}
	t.metadata.RunID = runID
	if params != nil {
		t.metadata.WorkflowURL = params.WorkflowURL
		t.metadata.RunName = params.EngineParams.RunName
		t.metadata.Revision = params.EngineParams.Revision
		t.metadata.Profile = params.EngineParams.Profile
		t.metadata.ProjectDir = params.EngineParams.ProjectDir
		t.metadata.LaunchDir = params.EngineParams.LaunchDir
		t.metadata.WorkDir = params.EngineParams.WorkDir
		if params.EngineParams.Resume != "" {
			t.metadata.Resume = true
			t.metadata.SessionID = params.EngineParams.Resume
		}
	}
	return t
}

func (t *Tracker) WithLogger(logger *slog.Logger) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger = logger
	return t
}

func set(field *string, value string) {
	if value != "" {
		*field = value
	}
}

// RecordLaunch folds the launch-time facts into the metadata.
func (t *Tracker) RecordLaunch(facts LaunchFacts) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return ErrFinalized
	}
	m := &t.metadata
	if facts.CommandLine == "" && m.CommandLine == "" {
		t.logger.Warn("The engine command line could not be determined")
		facts.CommandLine = Unknown
	}
	set(&m.CommandLine, facts.CommandLine)
	set(&m.Engine, facts.Engine)
	set(&m.Profile, facts.Profile)
	set(&m.Revision, facts.Revision)
	set(&m.RunName, facts.RunName)
	set(&m.SessionID, facts.SessionID)
	set(&m.ScriptID, facts.ScriptID)
	set(&m.ScriptName, facts.ScriptName)
	set(&m.ScriptFile, facts.ScriptFile)
	set(&m.Repository, facts.Repository)
	set(&m.CommitID, facts.CommitID)
	set(&m.ProjectDir, facts.ProjectDir)
	set(&m.ProjectName, facts.ProjectName)
	set(&m.LaunchDir, facts.LaunchDir)
	set(&m.WorkDir, facts.WorkDir)
	set(&m.HomeDir, facts.HomeDir)
	set(&m.UserName, facts.UserName)
	if len(facts.ConfigFiles) > 0 {
		m.ConfigFiles = slices.Clone(facts.ConfigFiles)
	}
	return nil
}

// RecordPod folds one pod observation into the metadata.
func (t *Tracker) RecordPod(facts PodFacts) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return ErrFinalized
	}
	m := &t.metadata
	if len(facts.Containers) > 0 {
		m.Container = cloneContainers(facts.Containers)
	}
	if facts.StartTime != "" {
		start, err := time.Parse(time.RFC3339, facts.StartTime)
		if err != nil {
			t.logger.Warn("Ignoring malformed pod start time", "pod", facts.Name, "start_time", facts.StartTime, "error", err.Error())
		} else {
			m.Start = &start
		}
	} else if m.Start == nil {
		t.logger.Debug("Pod start time not yet reported", "pod", facts.Name)
	}
	if engine := containerEngine(facts.ContainerID); engine != "" {
		m.ContainerEngine = engine
	} else if m.ContainerEngine == "" {
		m.ContainerEngine = Unknown
	}
	if facts.ExitStatus != nil {
		exit := *facts.ExitStatus
		m.ExitStatus = &exit
	}
	if facts.Name != "" {
		previous := t.pods[facts.Name]
		if facts.Phase == "" {
			facts.Phase = previous.phase
		}
		t.pods[facts.Name] = podState{phase: facts.Phase, restarts: max(previous.restarts, facts.Restarts)}
		m.Stats = t.stats()
	}
	return nil
}

func (t *Tracker) stats() *api.RunStats {
	stats := &api.RunStats{PodsObserved: len(t.pods)}
	for _, pod := range t.pods {
		stats.Restarts += pod.restarts
		switch pod.phase {
		case "Pending":
			stats.Pending++
		case "Running":
			stats.Running++
		case "Succeeded":
			stats.Succeeded++
		case "Failed":
			stats.Failed++
		}
	}
	return stats
}

func containerEngine(containerID string) string {
	if containerID == "" {
		return ""
	}
	for prefix, engine := range containerEngines {
		if strings.HasPrefix(containerID, prefix) {
			return engine
		}
	}
	return Unknown
}

// Succeed finalizes the metadata of a successful run.
func (t *Tracker) Succeed(exitStatus int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return ErrFinalized
	}
	t.metadata.Success = true
	t.complete(&exitStatus)
	return nil
}

// Fail finalizes the metadata of a failed run. exitStatus may be nil when the
// engine never reported one, in which case the last observed status is kept.
func (t *Tracker) Fail(exitStatus *int, message string, report string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return ErrFinalized
	}
	t.metadata.Success = false
	set(&t.metadata.ErrorMessage, message)
	set(&t.metadata.ErrorReport, report)
	t.complete(exitStatus)
	return nil
}

func (t *Tracker) complete(exitStatus *int) {
	now := time.Now().UTC()
	m := &t.metadata
	m.Complete = &now
	if exitStatus != nil {
		exit := *exitStatus
		m.ExitStatus = &exit
	}
	if m.Start != nil {
		duration := now.Sub(*m.Start).Milliseconds()
		m.Duration = &duration
	}
	t.finalized = true
}

func (t *Tracker) Finalized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalized
}

// Snapshot returns a deep copy of the current metadata.
func (t *Tracker) Snapshot() api.RunMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.metadata
	m.Start = clonePtr(m.Start)
	m.Complete = clonePtr(m.Complete)
	m.Duration = clonePtr(m.Duration)
	m.ExitStatus = clonePtr(m.ExitStatus)
	m.Stats = clonePtr(m.Stats)
	m.Container = cloneContainers(m.Container)
	m.ConfigFiles = slices.Clone(m.ConfigFiles)
	return m
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneContainers(containers []api.ContainerInfo) []api.ContainerInfo {
	if containers == nil {
		return nil
	}
	out := make([]api.ContainerInfo, len(containers))
	for i, c := range containers {
		out[i] = c
		out[i].Command = slices.Clone(c.Command)
	}
	return out
}
