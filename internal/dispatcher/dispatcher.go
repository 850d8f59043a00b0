package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/internal/constants"
	"github.com/wes-dispatch/wes-dispatch/internal/engine"
	"github.com/wes-dispatch/wes-dispatch/internal/errorhandler"
	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
	"github.com/wes-dispatch/wes-dispatch/internal/logging"
	"github.com/wes-dispatch/wes-dispatch/internal/metrics"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

const tracerName = "github.com/wes-dispatch/wes-dispatch/internal/dispatcher"

// Dispatcher accepts validated runs and drives each one through its lifecycle
// on a goroutine of its own.
type Dispatcher struct {
	logger     *slog.Logger
	storage    abstractions.Storage
	runtime    abstractions.Runtime
	events     abstractions.EventSender
	tracer     trace.Tracer
	slots      *semaphore.Weighted
	ackTimeout time.Duration
	runTimeout time.Duration

	mu   sync.RWMutex
	runs map[string]*Run
	wg   sync.WaitGroup
}

func New(logger *slog.Logger, storage abstractions.Storage, runtime abstractions.Runtime, events abstractions.EventSender, dispatcherConfig config.DispatcherConfig) (*Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for the dispatcher")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage is required for the dispatcher")
	}
	if runtime == nil {
		return nil, fmt.Errorf("runtime is required for the dispatcher")
	}
	if events == nil {
		return nil, fmt.Errorf("event sender is required for the dispatcher")
	}
	return &Dispatcher{
		logger:     logger,
		storage:    storage,
		runtime:    runtime,
		events:     events,
		tracer:     otel.Tracer(tracerName),
		slots:      semaphore.NewWeighted(int64(max(1, dispatcherConfig.MaxConcurrentLaunches))),
		ackTimeout: dispatcherConfig.AckTimeout,
		runTimeout: dispatcherConfig.RunTimeout,
		runs:       map[string]*Run{},
	}, nil
}

// Submit creates and persists a run, starts its execution and waits for the
// launch to be acknowledged, for the run to fail, or for the acknowledgment
// timeout. When the run failed before it was acknowledged the run is returned
// together with its failure.
func (d *Dispatcher) Submit(ctx *executioncontext.ExecutionContext, request *api.RunsRequest, params *api.RunParams) (*Run, error) {
	run := newRun(request, params)
	logger := logging.RunLogger(ctx.Logger, run.id)
	run.tracker.WithLogger(logger)

	if err := d.storage.WithLogger(logger).WithContext(ctx.Ctx).CreateRun(run.Resource()); err != nil {
		logger.Error("Failed to store the run", "error", err.Error())
		return nil, err
	}
	metrics.RunsSubmitted.Inc()
	if len(request.WorkflowAttachment) > 0 {
		logger.Warn("Workflow attachments are not supported and are ignored", "count", len(request.WorkflowAttachment))
	}

	d.mu.Lock()
	d.runs[run.id] = run
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.execute(context.WithoutCancel(ctx.Ctx), logger, run)
	}()

	var timeout <-chan time.Time
	if d.ackTimeout > 0 {
		timer := time.NewTimer(d.ackTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-run.acked:
	case <-timeout:
		logger.Info("Launch not acknowledged yet, returning", "timeout", d.ackTimeout.String(), constants.LOG_STATE, run.State())
		return run, nil
	case <-ctx.Ctx.Done():
		logger.Info("Request ended before the launch was acknowledged", constants.LOG_STATE, run.State())
		return run, nil
	}

	if run.State() == api.StateFailed {
		return run, run.Err()
	}
	return run, nil
}

// Lookup returns a run that is still executing.
func (d *Dispatcher) Lookup(id string) (*Run, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	run, ok := d.runs[id]
	return run, ok
}

// Wait blocks until every started run has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) execute(ctx context.Context, logger *slog.Logger, run *Run) {
	defer close(run.done)
	defer d.evict(run.id)
	defer run.ack()

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	d.publish(ctx, logger, run)

	if d.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.runTimeout)
		defer cancel()
	}

	ctx, span := d.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String(constants.LOG_RUN_ID, run.id),
		attribute.String("workflow_url", run.params.WorkflowURL),
		attribute.String(constants.LOG_RUNTIME, d.runtime.Name()),
	))
	defer span.End()

	if err := d.slots.Acquire(ctx, 1); err != nil {
		// a run can only fail once it is launching
		if d.advance(ctx, logger, run, api.StateLaunching) {
			d.fail(ctx, logger, span, run, &engine.LaunchTimeoutError{Message: "no launch slot became available: " + err.Error()})
		}
		return
	}
	// the slot bounds launches only, it is given back once the engine is running
	var releaseOnce sync.Once
	release := func() { releaseOnce.Do(func() { d.slots.Release(1) }) }
	defer release()

	if !d.advance(ctx, logger, run, api.StateLaunching) {
		return
	}

	started := time.Now()
	handle, err := d.launch(ctx, logger, run)
	metrics.LaunchDuration.WithLabelValues(d.runtime.Name()).Observe(time.Since(started).Seconds())
	if err != nil {
		d.fail(ctx, logger, span, run, err)
		return
	}
	span.AddEvent("launched", trace.WithAttributes(attribute.String("handle", handle.ID())))

	if !d.advance(ctx, logger, run, api.StateRunning) {
		return
	}
	run.ack()
	release()

	if err := d.wait(ctx, logger, handle); err != nil {
		d.fail(ctx, logger, span, run, err)
		return
	}

	if err := run.tracker.Succeed(0); err != nil {
		logger.Warn("Failed to finalize the run metadata", "error", err.Error())
	}
	if d.advance(ctx, logger, run, api.StateSucceeded) {
		span.SetStatus(codes.Ok, "")
		metrics.RunsCompleted.WithLabelValues(string(api.StateSucceeded)).Inc()
		logger.Info("Run succeeded")
	}
}

func (d *Dispatcher) launch(ctx context.Context, logger *slog.Logger, run *Run) (handle abstractions.LaunchHandle, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("Runtime panicked while launching the run", "panic", fmt.Sprint(recovered))
			handle, err = nil, fmt.Errorf("runtime %s panicked during launch: %v", d.runtime.Name(), recovered)
		}
	}()
	ctx, span := d.tracer.Start(ctx, "launch")
	defer span.End()
	return d.runtime.WithLogger(logger).WithContext(ctx).Launch(run.params, run.tracker)
}

func (d *Dispatcher) wait(ctx context.Context, logger *slog.Logger, handle abstractions.LaunchHandle) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("Runtime panicked while waiting for the run", "panic", fmt.Sprint(recovered))
			err = fmt.Errorf("runtime %s panicked while waiting: %v", d.runtime.Name(), recovered)
		}
	}()
	ctx, span := d.tracer.Start(ctx, "wait")
	defer span.End()
	return handle.Wait(ctx)
}

// fail terminates the run with err, finalizing its metadata first.
func (d *Dispatcher) fail(ctx context.Context, logger *slog.Logger, span trace.Span, run *Run, err error) {
	response := errorhandler.Resolve(err)
	category := errorhandler.Label(err)

	var exitStatus *int
	var processFailed *engine.ProcessFailedError
	if errors.As(err, &processFailed) {
		exitStatus = &processFailed.ExitCode
	}
	if trackErr := run.tracker.Fail(exitStatus, response.Msg, err.Error()); trackErr != nil {
		logger.Warn("Failed to finalize the run metadata", "error", trackErr.Error())
	}

	if transitionErr := run.transition(api.StateFailed, err, response); transitionErr != nil {
		logger.Error("Failed to mark the run as failed", "error", transitionErr.Error(), "cause", err.Error())
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, response.Msg)
	metrics.RunFailures.WithLabelValues(category).Inc()
	metrics.RunsCompleted.WithLabelValues(string(api.StateFailed)).Inc()
	logger.Error("Run failed", "category", category, "status_code", response.StatusCode, "error", err.Error())
	d.persist(ctx, logger, run)
}

func (d *Dispatcher) advance(ctx context.Context, logger *slog.Logger, run *Run, next api.RunState) bool {
	if err := run.transition(next, nil, nil); err != nil {
		logger.Error("Failed to move the run", "to", next, "error", err.Error())
		return false
	}
	logger.Info("Run state changed", constants.LOG_STATE, next)
	d.persist(ctx, logger, run)
	return true
}

// persist stores the run and publishes the transition. Failures are logged and absorbed.
func (d *Dispatcher) persist(ctx context.Context, logger *slog.Logger, run *Run) {
	// the terminal state must be stored even when the run context has expired
	storeCtx := context.WithoutCancel(ctx)
	if err := d.storage.WithLogger(logger).WithContext(storeCtx).UpdateRun(run.Resource()); err != nil {
		logger.Error("Failed to store the run state", constants.LOG_STATE, run.State(), "error", err.Error())
	}
	d.publish(storeCtx, logger, run)
}

func (d *Dispatcher) publish(ctx context.Context, logger *slog.Logger, run *Run) {
	event := run.event()
	if err := d.events.Send(ctx, event); err != nil {
		logger.Warn("Failed to send the run event", "event", event.Event, "sender", d.events.Name(), "error", err.Error())
	}
}

func (d *Dispatcher) evict(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.runs, id)
}
