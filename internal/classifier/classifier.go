package classifier

import (
	"net/http"
	"reflect"

	"github.com/wes-dispatch/wes-dispatch/internal/engine"
)

// Category groups engine failure types that map to the same HTTP status.
type Category struct {
	Label      string
	StatusCode int
	types      []reflect.Type
}

// Types returns the failure types the category subsumes.
func (c Category) Types() []reflect.Type {
	return append([]reflect.Type(nil), c.types...)
}

const (
	LabelInvalidWorkflow    = "invalid_workflow"
	LabelWorkflowNotFound   = "workflow_not_found"
	LabelEngineFailure      = "engine_failure"
	LabelClusterUnavailable = "cluster_unavailable"
	LabelUnresolved         = "unresolved"
)

// Unresolved is returned by Resolve when no category matches.
var Unresolved = Category{Label: LabelUnresolved, StatusCode: http.StatusInternalServerError}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[*T]()
}

var categories = []Category{
	{
		Label:      LabelInvalidWorkflow,
		StatusCode: http.StatusBadRequest,
		types: []reflect.Type{
			typeOf[engine.ScriptCompilationError](),
			typeOf[engine.ScriptRuntimeError](),
			typeOf[engine.ConfigParseError](),
			typeOf[engine.IllegalConfigError](),
			typeOf[engine.IllegalDirectiveError](),
			typeOf[engine.MissingValueError](),
			typeOf[engine.DuplicateProcessInvocationError](),
			typeOf[engine.AbortOperationError](),
		},
	},
	{
		Label:      LabelWorkflowNotFound,
		StatusCode: http.StatusNotFound,
		types: []reflect.Type{
			typeOf[engine.ScriptNotFoundError](),
			typeOf[engine.MissingFileError](),
			typeOf[engine.MissingLibraryError](),
		},
	},
	{
		Label:      LabelEngineFailure,
		StatusCode: http.StatusInternalServerError,
		types: []reflect.Type{
			typeOf[engine.ProcessUnrecoverableError](),
			typeOf[engine.ProcessFailedError](),
			typeOf[engine.IllegalStateError](),
			typeOf[engine.FailedGuardError](),
		},
	},
	{
		Label:      LabelClusterUnavailable,
		StatusCode: http.StatusServiceUnavailable,
		types: []reflect.Type{
			typeOf[engine.ClusterUnavailableError](),
			typeOf[engine.PodUnschedulableError](),
			typeOf[engine.ImagePullError](),
			typeOf[engine.NodeTerminatedError](),
			typeOf[engine.LaunchTimeoutError](),
		},
	},
}

// index is built once at init and only read afterwards.
var index = func() map[reflect.Type]int {
	m := make(map[reflect.Type]int)
	for i, category := range categories {
		for _, t := range category.types {
			if _, dup := m[t]; dup {
				panic("classifier: " + t.String() + " is mapped to more than one category")
			}
			m[t] = i
		}
	}
	return m
}()

// Categories returns the closed set of categories, without the fallback.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = c
		out[i].types = c.Types()
	}
	return out
}

// Classify finds the category of the first error in err's tree whose dynamic
// type is registered. Matching is on type identity only, never on the error text.
func Classify(err error) (Category, bool) {
	if err == nil {
		return Category{}, false
	}
	if i, ok := index[reflect.TypeOf(err)]; ok {
		return categories[i], true
	}
	switch x := err.(type) {
	case interface{ Unwrap() error }:
		return Classify(x.Unwrap())
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if category, ok := Classify(inner); ok {
				return category, true
			}
		}
	}
	return Category{}, false
}

// Resolve is Classify with the Unresolved fallback.
func Resolve(err error) Category {
	if category, ok := Classify(err); ok {
		return category
	}
	return Unresolved
}

// IsClassified reports whether err carries a registered failure type.
func IsClassified(err error) bool {
	_, ok := Classify(err)
	return ok
}
