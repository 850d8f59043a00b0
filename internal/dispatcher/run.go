package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wes-dispatch/wes-dispatch/internal/metadata"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

var ErrIllegalTransition = errors.New("illegal run state transition")

// Run is a live workflow run. It is created by Submit and owned by the
// goroutine executing it, readers only see copies of its state.
type Run struct {
	mu        sync.RWMutex
	id        string
	request   *api.RunsRequest
	params    *api.RunParams
	tracker   *metadata.Tracker
	state     api.RunState
	err       error
	response  *api.ErrorResponse
	createdAt time.Time
	updatedAt time.Time

	ackOnce sync.Once
	acked   chan struct{}
	done    chan struct{}
}

func newRun(request *api.RunsRequest, params *api.RunParams) *Run {
	now := time.Now().UTC()
	return &Run{
		id:        params.RunID,
		request:   request,
		params:    params,
		tracker:   metadata.NewTracker(params.RunID, params),
		state:     api.StateCreated,
		createdAt: now,
		updatedAt: now,
		acked:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (r *Run) ID() string {
	return r.id
}

func (r *Run) Params() *api.RunParams {
	return r.params
}

func (r *Run) Tracker() *metadata.Tracker {
	return r.tracker
}

func (r *Run) State() api.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err returns the failure of a FAILED run, nil otherwise.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Done is closed once the run has reached a terminal state and it has been persisted.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Acknowledged is closed when the engine has acknowledged the launch or the run has ended.
func (r *Run) Acknowledged() <-chan struct{} {
	return r.acked
}

func (r *Run) ack() {
	r.ackOnce.Do(func() { close(r.acked) })
}

// transition moves the run to next, failures carry the error and its rendered response.
func (r *Run) transition(next api.RunState, err error, response *api.ErrorResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, r.state, next)
	}
	r.state = next
	r.updatedAt = time.Now().UTC()
	if next == api.StateFailed {
		r.err = err
		r.response = response
	}
	return nil
}

// Resource returns the stored view of the run.
func (r *Run) Resource() *api.RunResource {
	m := r.tracker.Snapshot()
	r.mu.RLock()
	defer r.mu.RUnlock()
	resource := &api.RunResource{
		RunID:     r.id,
		State:     r.state,
		Request:   r.request,
		Metadata:  &m,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
	}
	if r.response != nil {
		resource.Error = &api.ErrorResponse{StatusCode: r.response.StatusCode, Msg: r.response.Msg}
	}
	return resource
}

func (r *Run) event() *api.RunEvent {
	resource := r.Resource()
	return &api.RunEvent{
		Event:     api.EventForState(resource.State),
		RunID:     resource.RunID,
		State:     resource.State,
		Timestamp: resource.UpdatedAt,
		Metadata:  resource.Metadata,
		Error:     resource.Error,
	}
}
