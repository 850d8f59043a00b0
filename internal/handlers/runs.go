package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/wes-dispatch/wes-dispatch/internal/constants"
	"github.com/wes-dispatch/wes-dispatch/internal/engine"
	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
	"github.com/wes-dispatch/wes-dispatch/internal/http_wrappers"
	"github.com/wes-dispatch/wes-dispatch/internal/messages"
	"github.com/wes-dispatch/wes-dispatch/internal/serialization"
	"github.com/wes-dispatch/wes-dispatch/internal/serviceerrors"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

// HandleCreateRun handles POST /api/v1/runs
func (h *Handlers) HandleCreateRun(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	bodyBytes, err := r.BodyAsBytes()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.Error(serviceerrors.NewServiceError(messages.RequestBodyTooLarge, "Limit", tooLarge.Limit), ctx.RequestID)
			return
		}
		w.Error(serviceerrors.Wrap(err, messages.RequestBodyUnreadable), ctx.RequestID)
		return
	}
	request := &api.RunsRequest{}
	if err := serialization.Unmarshal(h.validate, ctx, bodyBytes, request); err != nil {
		w.Error(err, ctx.RequestID)
		return
	}

	params, err := engine.NewRunParams(uuid.NewString(), request, h.engineDefaults())
	if err != nil {
		w.Error(serviceerrors.NewServiceError(messages.InvalidField, "Field", "workflow_engine_params", "Type", "engine parameter set"), ctx.RequestID)
		return
	}

	run, err := h.dispatcher.Submit(ctx, request, params)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}

	w.WriteJSON(api.RunResponse{RunID: run.ID(), State: run.State()}, http.StatusOK)
}

// HandleListRuns handles GET /api/v1/runs
func (h *Handlers) HandleListRuns(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	limit, err := queryInt(r, constants.QUERY_PARAMETER_LIMIT, constants.DEFAULT_PAGE_LIMIT)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	limit = min(max(limit, 1), constants.MAX_PAGE_LIMIT)
	offset, err := queryInt(r, constants.QUERY_PARAMETER_OFFSET, 0)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	state := queryString(r, constants.QUERY_PARAMETER_STATE)
	if state != "" && !api.RunState(state).IsValid() {
		w.Error(serviceerrors.NewServiceError(messages.QueryParameterInvalid, "ParameterName", constants.QUERY_PARAMETER_STATE, "Type", "run state", "Value", state), ctx.RequestID)
		return
	}

	results, err := h.storage.WithLogger(ctx.Logger).WithContext(ctx.Ctx).GetRuns(limit, offset, state)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	page, err := CreatePage(results.TotalStored, offset, limit, ctx, r)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(api.RunResourceList{Page: *page, Items: results.Items}, http.StatusOK)
}

// HandleGetRun handles GET /api/v1/runs/{run_id}
func (h *Handlers) HandleGetRun(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	runID := r.PathValue(constants.PATH_PARAMETER_RUN_ID)
	if runID == "" {
		w.ErrorWithMessageCode(ctx.RequestID, messages.MissingPathParameter, "ParameterName", constants.PATH_PARAMETER_RUN_ID)
		return
	}

	// live runs are fresher than the stored copy
	if run, ok := h.dispatcher.Lookup(runID); ok {
		w.WriteJSON(run.Resource(), http.StatusOK)
		return
	}
	resource, err := h.storage.WithLogger(ctx.Logger).WithContext(ctx.Ctx).GetRun(runID)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(resource, http.StatusOK)
}
