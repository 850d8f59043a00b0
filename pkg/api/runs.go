package api

import "time"

// RunState is the lifecycle state of a workflow run.
type RunState string

const (
	StateCreated   RunState = "CREATED"
	StateLaunching RunState = "LAUNCHING"
	StateRunning   RunState = "RUNNING"
	StateSucceeded RunState = "SUCCEEDED"
	StateFailed    RunState = "FAILED"
)

var stateRank = map[RunState]int{
	StateCreated:   0,
	StateLaunching: 1,
	StateRunning:   2,
	StateSucceeded: 3,
	StateFailed:    3,
}

// IsTerminal reports whether no further transition is possible from s.
func (s RunState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// IsValid reports whether s is one of the known run states.
func (s RunState) IsValid() bool {
	_, ok := stateRank[s]
	return ok
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// States only move forward; LAUNCHING may jump straight to FAILED.
func (s RunState) CanTransitionTo(next RunState) bool {
	if s.IsTerminal() || !next.IsValid() || !s.IsValid() {
		return false
	}
	if next == StateSucceeded && s != StateRunning {
		return false
	}
	if next == StateFailed {
		return s == StateLaunching || s == StateRunning
	}
	return stateRank[next] == stateRank[s]+1
}

// WorkflowEngineParams are the engine options a caller may set for a run.
type WorkflowEngineParams struct {
	Revision        string `json:"revision,omitempty" mapstructure:"revision"`
	Profile         string `json:"profile,omitempty" mapstructure:"profile"`
	RunName         string `json:"run_name,omitempty" mapstructure:"run_name"`
	Resume          string `json:"resume,omitempty" mapstructure:"resume" validate:"omitempty,uuid"`
	ContainerEngine string `json:"container_engine,omitempty" mapstructure:"container_engine"`
	WorkDir         string `json:"work_dir,omitempty" mapstructure:"work_dir"`
	LaunchDir       string `json:"launch_dir,omitempty" mapstructure:"launch_dir"`
	ProjectDir      string `json:"project_dir,omitempty" mapstructure:"project_dir"`
	Latest          bool   `json:"latest,omitempty" mapstructure:"latest"`
}

// RunsRequest is the body of POST /api/v1/runs.
type RunsRequest struct {
	WorkflowURL          string                `json:"workflow_url" validate:"required,notblank"`
	WorkflowParams       map[string]any        `json:"workflow_params" validate:"required"`
	WorkflowEngineParams *WorkflowEngineParams `json:"workflow_engine_params,omitempty" validate:"omitempty"`
	WorkflowType         map[string]any        `json:"workflow_type,omitempty"`
	WorkflowTypeVersion  []string              `json:"workflow_type_version,omitempty"`
	Tags                 map[string]any        `json:"tags,omitempty"`
	// WorkflowAttachment is accepted but not supported, attachments are ignored.
	WorkflowAttachment []string `json:"workflow_attachment,omitempty"`
}

// RunParams is the validated projection of a RunsRequest handed to the runtime.
// It is built once per run and only read afterwards.
type RunParams struct {
	RunID               string               `json:"run_id"`
	WorkflowURL         string               `json:"workflow_url"`
	WorkflowParams      map[string]any       `json:"workflow_params"`
	EngineParams        WorkflowEngineParams `json:"workflow_engine_params"`
	WorkflowType        map[string]any       `json:"workflow_type,omitempty"`
	WorkflowTypeVersion []string             `json:"workflow_type_version,omitempty"`
	Tags                map[string]any       `json:"tags,omitempty"`
}

// RunResponse is returned when a run has been accepted.
type RunResponse struct {
	RunID string   `json:"run_id"`
	State RunState `json:"state"`
}

// RunResource is the stored view of a run.
type RunResource struct {
	RunID     string         `json:"run_id"`
	State     RunState       `json:"state"`
	Request   *RunsRequest   `json:"request,omitempty"`
	Metadata  *RunMetadata   `json:"metadata,omitempty"`
	Error     *ErrorResponse `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type RunResourceList struct {
	Page
	Items []RunResource `json:"items"`
}

// RunEventType names a lifecycle notification.
type RunEventType string

const (
	EventRunCreated   RunEventType = "run_created"
	EventRunLaunching RunEventType = "run_launching"
	EventRunRunning   RunEventType = "run_running"
	EventRunSucceeded RunEventType = "run_succeeded"
	EventRunFailed    RunEventType = "run_failed"
)

// EventForState returns the event published when a run enters state.
func EventForState(state RunState) RunEventType {
	switch state {
	case StateLaunching:
		return EventRunLaunching
	case StateRunning:
		return EventRunRunning
	case StateSucceeded:
		return EventRunSucceeded
	case StateFailed:
		return EventRunFailed
	default:
		return EventRunCreated
	}
}

// RunEvent is published to the configured event senders on every transition.
type RunEvent struct {
	Event     RunEventType   `json:"event"`
	RunID     string         `json:"run_id"`
	State     RunState       `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  *RunMetadata   `json:"metadata,omitempty"`
	Error     *ErrorResponse `json:"error,omitempty"`
}
