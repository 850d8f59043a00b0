package handlers

import (
	"net/http"
	"slices"

	"github.com/wes-dispatch/wes-dispatch/internal/engine"
	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
	"github.com/wes-dispatch/wes-dispatch/internal/http_wrappers"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

var (
	supportedWESVersions = []string{"1.0.0"}
	reportedStates       = []api.RunState{api.StateCreated, api.StateLaunching, api.StateRunning, api.StateSucceeded, api.StateFailed}
)

type WorkflowTypeVersion struct {
	WorkflowTypeVersion []string `json:"workflow_type_version"`
}

// ServiceInfoResponse describes the service as in the WES service-info call.
type ServiceInfoResponse struct {
	WorkflowTypeVersions            map[string]WorkflowTypeVersion `json:"workflow_type_versions"`
	SupportedWESVersions            []string                       `json:"supported_wes_versions"`
	WorkflowEngineVersions          map[string]string              `json:"workflow_engine_versions"`
	DefaultWorkflowEngineParameters api.WorkflowEngineParams       `json:"default_workflow_engine_parameters"`
	SystemStateCounts               map[api.RunState]int           `json:"system_state_counts"`
	AuthInstructionsURL             string                         `json:"auth_instructions_url,omitempty"`
	Tags                            map[string]string              `json:"tags,omitempty"`
}

// HandleServiceInfo handles GET /api/v1/service-info
func (h *Handlers) HandleServiceInfo(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	info := ServiceInfoResponse{
		WorkflowTypeVersions:            map[string]WorkflowTypeVersion{},
		SupportedWESVersions:            slices.Clone(supportedWESVersions),
		WorkflowEngineVersions:          map[string]string{},
		DefaultWorkflowEngineParameters: h.engineDefaults(),
		SystemStateCounts:               map[api.RunState]int{},
	}
	if h.serviceConfig != nil && h.serviceConfig.Service != nil {
		service := h.serviceConfig.Service
		for workflowType, versions := range service.SupportedWorkflowTypes {
			info.WorkflowTypeVersions[workflowType] = WorkflowTypeVersion{WorkflowTypeVersion: slices.Clone(versions)}
			if len(versions) > 0 {
				info.WorkflowEngineVersions[engine.EngineName] = versions[len(versions)-1]
			}
		}
		info.AuthInstructionsURL = service.AuthInstructionsURL
		if service.Version != "" {
			info.Tags = map[string]string{"version": service.Version}
		}
	}

	storage := h.storage.WithLogger(ctx.Logger).WithContext(ctx.Ctx)
	for _, state := range reportedStates {
		results, err := storage.GetRuns(1, 0, string(state))
		if err != nil {
			w.Error(err, ctx.RequestID)
			return
		}
		info.SystemStateCounts[state] = results.TotalStored
	}
	w.WriteJSON(info, http.StatusOK)
}
