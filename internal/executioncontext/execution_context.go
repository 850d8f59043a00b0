package executioncontext

import (
	"context"
	"log/slog"
	"time"
)

// ExecutionContext carries the request scoped values handed to every handler.
type ExecutionContext struct {
	Ctx       context.Context
	RequestID string
	Logger    *slog.Logger
	StartedAt time.Time
	Timeout   time.Duration
}

func NewExecutionContext(ctx context.Context, requestID string, logger *slog.Logger, timeout time.Duration) *ExecutionContext {
	return &ExecutionContext{
		Ctx:       ctx,
		RequestID: requestID,
		Logger:    logger,
		StartedAt: time.Now(),
		Timeout:   timeout,
	}
}
