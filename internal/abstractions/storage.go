package abstractions

import (
	"context"
	"log/slog"
	"time"

	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

type QueryResults[T any] struct {
	Items       []T
	TotalStored int
}

type Storage interface {
	WithLogger(logger *slog.Logger) Storage
	WithContext(ctx context.Context) Storage

	// This is used to identify the storage implementation in the logs and error messages
	GetDatasourceName() string

	Ping(timeout time.Duration) error

	// Run operations
	CreateRun(run *api.RunResource) error
	GetRun(id string) (*api.RunResource, error)
	GetRuns(limit int, offset int, stateFilter string) (*QueryResults[api.RunResource], error)
	// UpdateRun stores the new state of a run. The stored state may only move
	// forward through the run state machine.
	UpdateRun(run *api.RunResource) error

	// Close the storage connection
	Close() error
}

// This interface must be decoupled from the service HTTP layer.
// Do not pass ExecutionContext, Request or Response wrappers either.
