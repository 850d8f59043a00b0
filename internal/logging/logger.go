package logging

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"github.com/wes-dispatch/wes-dispatch/internal/constants"
	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
)

type ShutdownFunc func() error

// NewLogger builds the service logger: zap production JSON with ISO-8601
// timestamps behind a slog front end. The level defaults to info and can be
// lowered or raised with LOG_LEVEL (debug, info, warn, error).
func NewLogger() (*slog.Logger, ShutdownFunc, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if value := os.Getenv(constants.EnvVarLogLevel); value != "" {
		level, err := zapcore.ParseLevel(value)
		if err != nil {
			return nil, nil, err
		}
		logConfig.Level = zap.NewAtomicLevelAt(level)
	}
	// sampling would drop repeated pod watch records of long running runs
	logConfig.Sampling = nil
	zapLog, err := logConfig.Build()
	if err != nil {
		return nil, nil, err
	}
	core := zapLog.Core()
	shutdown := func() error {
		return core.Sync()
	}
	return slog.New(zapslog.NewHandler(core, zapslog.WithCaller(true))), shutdown, nil
}

// FallbackLogger is used before the zap logger exists and in tests.
func FallbackLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// SkipCallersForInfo logs msg at level attributing the record to the caller
// skip frames up the stack, so the request helpers below report the handler
// that called them rather than this package.
func SkipCallersForInfo(ctx context.Context, logger *slog.Logger, level slog.Level, skip int, msg string, args ...any) {
	if !logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = logger.Handler().Handle(ctx, r)
}

// The request logger already carries the request ID, method and URI.

func LogRequestStarted(ctx *executioncontext.ExecutionContext) {
	SkipCallersForInfo(ctx.Ctx, ctx.Logger, slog.LevelDebug, 3, "Request started")
}

func LogRequestFailed(ctx *executioncontext.ExecutionContext, code int, errorMessage string) {
	level := slog.LevelInfo
	if code >= 500 {
		level = slog.LevelWarn
	}
	SkipCallersForInfo(ctx.Ctx, ctx.Logger, level, 3, "Request failed", "error", errorMessage, "code", code)
}

func LogRequestSuccess(ctx *executioncontext.ExecutionContext, code int, response any) {
	if response != nil {
		SkipCallersForInfo(ctx.Ctx, ctx.Logger, slog.LevelInfo, 3, "Request successful", "code", code, "response", response)
		return
	}
	SkipCallersForInfo(ctx.Ctx, ctx.Logger, slog.LevelInfo, 3, "Request successful", "code", code)
}

// RunLogger returns a logger that tags every record with the run ID.
func RunLogger(logger *slog.Logger, runID string) *slog.Logger {
	if logger == nil {
		logger = FallbackLogger()
	}
	return logger.With(constants.LOG_RUN_ID, runID)
}
