package engine

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Report is the failure summary the engine driver leaves behind when it exits,
// either as a JSON object or as a "<kind>: <message>" line.
type Report struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var failureKinds = map[string]func(msg string) error{
	"ScriptCompilation":          func(msg string) error { return &ScriptCompilationError{Message: msg} },
	"ScriptRuntime":              func(msg string) error { return &ScriptRuntimeError{Message: msg} },
	"ConfigParse":                func(msg string) error { return &ConfigParseError{Message: msg} },
	"IllegalConfig":              func(msg string) error { return &IllegalConfigError{Message: msg} },
	"IllegalDirective":           func(msg string) error { return &IllegalDirectiveError{Message: msg} },
	"MissingValue":               func(msg string) error { return &MissingValueError{Message: msg} },
	"DuplicateProcessInvocation": func(msg string) error { return &DuplicateProcessInvocationError{Message: msg} },
	"AbortOperation":             func(msg string) error { return &AbortOperationError{Message: msg} },
	"ScriptNotFound":             func(msg string) error { return &ScriptNotFoundError{Message: msg} },
	"MissingFile":                func(msg string) error { return &MissingFileError{Message: msg} },
	"NoSuchFile":                 func(msg string) error { return &MissingFileError{Message: msg} },
	"MissingLibrary":             func(msg string) error { return &MissingLibraryError{Message: msg} },
	"ProcessUnrecoverable":       func(msg string) error { return &ProcessUnrecoverableError{Message: msg} },
	"ProcessFailed":              func(msg string) error { return &ProcessFailedError{Message: msg} },
	"IllegalState":               func(msg string) error { return &IllegalStateError{Message: msg} },
	"FailedGuard":                func(msg string) error { return &FailedGuardError{Message: msg} },
	"ClusterUnavailable":         func(msg string) error { return &ClusterUnavailableError{Message: msg} },
	"PodUnschedulable":           func(msg string) error { return &PodUnschedulableError{Message: msg} },
	"ImagePull":                  func(msg string) error { return &ImagePullError{Message: msg} },
	"NodeTerminated":             func(msg string) error { return &NodeTerminatedError{Message: msg} },
	"LaunchTimeout":              func(msg string) error { return &LaunchTimeoutError{Message: msg} },
}

var kindPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.$]*$`)

// normalizeKind reduces a qualified failure name such as
// nextflow.exception.AbortOperationException to AbortOperation.
func normalizeKind(kind string) string {
	if i := strings.LastIndexAny(kind, ".$"); i >= 0 {
		kind = kind[i+1:]
	}
	for _, suffix := range []string{"Exception", "Error"} {
		if trimmed := strings.TrimSuffix(kind, suffix); trimmed != "" {
			kind = trimmed
		}
	}
	return kind
}

// Err converts the report into the matching failure type, or an
// *UnknownEngineError when the kind is not recognised.
func (r Report) Err() error {
	if factory, ok := failureKinds[normalizeKind(r.Type)]; ok && r.Type != "" {
		return factory(r.Message)
	}
	return &UnknownEngineError{Kind: r.Type, Message: r.Message}
}

// ParseReport decodes a failure report. Lines are read from the end and the
// first one naming a recognised failure kind or a qualified exception wins.
// It returns nil when text carries no report, such as plain log output.
func ParseReport(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "{") {
		var report Report
		if err := json.Unmarshal([]byte(text), &report); err == nil && report.Type != "" {
			return report.Err()
		}
	}
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if report, ok := parseLine(strings.TrimSpace(lines[i])); ok {
			return report.Err()
		}
	}
	return nil
}

// parseLine reads "<kind>: <message>" or a bare qualified kind.
func parseLine(line string) (Report, bool) {
	line = strings.TrimPrefix(line, "ERROR ~ ")
	kind, msg, _ := strings.Cut(line, ":")
	kind = strings.TrimSpace(kind)
	if !isReportKind(kind) {
		return Report{}, false
	}
	return Report{Type: kind, Message: strings.TrimSpace(msg)}, true
}

// isReportKind accepts a recognised kind (ScriptNotFoundException) or a
// package qualified name (java.lang.NullPointerException).
func isReportKind(kind string) bool {
	if !kindPattern.MatchString(kind) {
		return false
	}
	if _, ok := failureKinds[normalizeKind(kind)]; ok {
		return true
	}
	return strings.Contains(kind, ".")
}
