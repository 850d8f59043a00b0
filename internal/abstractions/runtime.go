package abstractions

import (
	"context"
	"log/slog"

	"github.com/wes-dispatch/wes-dispatch/internal/metadata"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

// Runtime interface defines the methods for launching workflow runs. Concrete implementations
// hold the specific aspects of various runtimes (i.e. K8s, local, etc.). No other places in the code should
// be pointing directly to K8s or other runtime specific details.
type Runtime interface {
	Name() string
	WithLogger(logger *slog.Logger) Runtime
	WithContext(ctx context.Context) Runtime

	// Launch starts the engine for the run and returns once the engine has been
	// handed the run. Launch-time facts are recorded on the tracker. The returned
	// error, if any, is an engine failure value or an unclassified error.
	Launch(params *api.RunParams, tracker *metadata.Tracker) (LaunchHandle, error)
}

// LaunchHandle is a launched run.
type LaunchHandle interface {
	// ID identifies the launched engine resource (job name, process id).
	ID() string
	// Wait blocks until the engine reports a terminal state. It returns nil on
	// success and the engine failure otherwise.
	Wait(ctx context.Context) error
}
