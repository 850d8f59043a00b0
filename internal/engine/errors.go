package engine

// Failure types reported by the workflow engine. Each is a distinct type so the
// classifier can match on type identity. The zero value of every type is usable
// and carries a default message.

func messageOr(msg string, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// Faults in the submitted workflow or its configuration.

type ScriptCompilationError struct{ Message string }

func (e *ScriptCompilationError) Error() string {
	return messageOr(e.Message, "workflow script compilation failed")
}

type ScriptRuntimeError struct{ Message string }

func (e *ScriptRuntimeError) Error() string {
	return messageOr(e.Message, "workflow script raised an error")
}

type ConfigParseError struct{ Message string }

func (e *ConfigParseError) Error() string {
	return messageOr(e.Message, "engine configuration could not be parsed")
}

type IllegalConfigError struct{ Message string }

func (e *IllegalConfigError) Error() string {
	return messageOr(e.Message, "illegal engine configuration")
}

type IllegalDirectiveError struct{ Message string }

func (e *IllegalDirectiveError) Error() string {
	return messageOr(e.Message, "illegal process directive")
}

type MissingValueError struct{ Message string }

func (e *MissingValueError) Error() string {
	return messageOr(e.Message, "a required workflow value is missing")
}

type DuplicateProcessInvocationError struct{ Message string }

func (e *DuplicateProcessInvocationError) Error() string {
	return messageOr(e.Message, "process invoked more than once")
}

type AbortOperationError struct{ Message string }

func (e *AbortOperationError) Error() string {
	return messageOr(e.Message, "workflow aborted the operation")
}

// The workflow or one of its inputs could not be found.

type ScriptNotFoundError struct{ Message string }

func (e *ScriptNotFoundError) Error() string {
	return messageOr(e.Message, "workflow script not found")
}

type MissingFileError struct{ Message string }

func (e *MissingFileError) Error() string {
	return messageOr(e.Message, "workflow input file not found")
}

type MissingLibraryError struct{ Message string }

func (e *MissingLibraryError) Error() string {
	return messageOr(e.Message, "workflow library not found")
}

// Faults inside the engine while executing a valid workflow.

type ProcessUnrecoverableError struct{ Message string }

func (e *ProcessUnrecoverableError) Error() string {
	return messageOr(e.Message, "workflow process failed and cannot be recovered")
}

// ProcessFailedError is reported when a task exits non-zero without a more specific report.
type ProcessFailedError struct {
	Message  string
	ExitCode int
}

func (e *ProcessFailedError) Error() string {
	return messageOr(e.Message, "workflow process failed")
}

type IllegalStateError struct{ Message string }

func (e *IllegalStateError) Error() string {
	return messageOr(e.Message, "engine reached an illegal state")
}

type FailedGuardError struct{ Message string }

func (e *FailedGuardError) Error() string {
	return messageOr(e.Message, "process guard evaluation failed")
}

// The cluster could not run the engine.

type ClusterUnavailableError struct{ Message string }

func (e *ClusterUnavailableError) Error() string {
	return messageOr(e.Message, "cluster is unavailable")
}

type PodUnschedulableError struct{ Message string }

func (e *PodUnschedulableError) Error() string {
	return messageOr(e.Message, "engine pod cannot be scheduled")
}

type ImagePullError struct{ Message string }

func (e *ImagePullError) Error() string {
	return messageOr(e.Message, "engine image could not be pulled")
}

type NodeTerminatedError struct{ Message string }

func (e *NodeTerminatedError) Error() string {
	return messageOr(e.Message, "node running the engine was terminated")
}

type LaunchTimeoutError struct{ Message string }

func (e *LaunchTimeoutError) Error() string {
	return messageOr(e.Message, "engine did not report a terminal state in time")
}

// UnknownEngineError wraps a failure report whose kind is not recognised.
// It belongs to no classification category.
type UnknownEngineError struct {
	Kind    string
	Message string
}

func (e *UnknownEngineError) Error() string {
	if e.Kind == "" {
		return messageOr(e.Message, "engine failed")
	}
	return e.Kind + ": " + messageOr(e.Message, "engine failed")
}
