package api

import "time"

// ContainerInfo describes one container of the engine driver pod.
type ContainerInfo struct {
	Name    string   `json:"name"`
	Image   string   `json:"image"`
	Command []string `json:"command,omitempty"`
}

// RunStats aggregates what was observed of the run's pods, counted by last known phase.
type RunStats struct {
	PodsObserved int   `json:"pods_observed"`
	Pending      int   `json:"pending"`
	Running      int   `json:"running"`
	Succeeded    int   `json:"succeeded"`
	Failed       int   `json:"failed"`
	Restarts     int32 `json:"restarts"`
}

// RunMetadata is the accumulated record of what is known about a run.
type RunMetadata struct {
	RunID           string          `json:"run_id"`
	RunName         string          `json:"run_name,omitempty"`
	WorkflowURL     string          `json:"workflow_url,omitempty"`
	ScriptID        string          `json:"script_id,omitempty"`
	ScriptFile      string          `json:"script_file,omitempty"`
	ScriptName      string          `json:"script_name,omitempty"`
	Repository      string          `json:"repository,omitempty"`
	CommitID        string          `json:"commit_id,omitempty"`
	Revision        string          `json:"revision,omitempty"`
	Start           *time.Time      `json:"start,omitempty"`
	Complete        *time.Time      `json:"complete,omitempty"`
	Duration        *int64          `json:"duration,omitempty"`
	Success         bool            `json:"success"`
	ExitStatus      *int            `json:"exit_status,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	ErrorReport     string          `json:"error_report,omitempty"`
	Container       []ContainerInfo `json:"container,omitempty"`
	ContainerEngine string          `json:"container_engine,omitempty"`
	CommandLine     string          `json:"command_line,omitempty"`
	Engine          string          `json:"engine,omitempty"`
	Profile         string          `json:"profile,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	Resume          bool            `json:"resume"`
	ProjectDir      string          `json:"project_dir,omitempty"`
	ProjectName     string          `json:"project_name,omitempty"`
	LaunchDir       string          `json:"launch_dir,omitempty"`
	WorkDir         string          `json:"work_dir,omitempty"`
	HomeDir         string          `json:"home_dir,omitempty"`
	UserName        string          `json:"user_name,omitempty"`
	ConfigFiles     []string        `json:"config_files,omitempty"`
	Stats           *RunStats       `json:"stats,omitempty"`
}
