package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "gopkg.in/evanphx/json-patch.v4"

	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

const runNamePrefix = "wes-"

// DefaultRunName derives an engine run name from the run ID. Engine run names
// must start with a letter and stay short.
func DefaultRunName(runID string) string {
	compact := strings.ReplaceAll(strings.ToLower(runID), "-", "")
	if len(compact) > 16 {
		compact = compact[:16]
	}
	return runNamePrefix + compact
}

// NewRunParams builds the launch parameters for a validated request. The
// configured defaults are overlaid with the caller's engine params as a JSON
// merge patch, so any field set in the request wins.
func NewRunParams(runID string, req *api.RunsRequest, defaults api.WorkflowEngineParams) (*api.RunParams, error) {
	effective, err := mergeEngineParams(defaults, req.WorkflowEngineParams)
	if err != nil {
		return nil, err
	}
	if effective.RunName == "" {
		effective.RunName = DefaultRunName(runID)
	}
	return &api.RunParams{
		RunID:               runID,
		WorkflowURL:         strings.TrimSpace(req.WorkflowURL),
		WorkflowParams:      req.WorkflowParams,
		EngineParams:        effective,
		WorkflowType:        req.WorkflowType,
		WorkflowTypeVersion: req.WorkflowTypeVersion,
		Tags:                req.Tags,
	}, nil
}

func mergeEngineParams(defaults api.WorkflowEngineParams, requested *api.WorkflowEngineParams) (api.WorkflowEngineParams, error) {
	if requested == nil {
		return defaults, nil
	}
	base, err := json.Marshal(defaults)
	if err != nil {
		return api.WorkflowEngineParams{}, fmt.Errorf("marshal default engine params: %w", err)
	}
	patch, err := json.Marshal(requested)
	if err != nil {
		return api.WorkflowEngineParams{}, fmt.Errorf("marshal engine params: %w", err)
	}
	merged, err := jsonpatch.MergePatch(base, patch)
	if err != nil {
		return api.WorkflowEngineParams{}, fmt.Errorf("merge engine params: %w", err)
	}
	var effective api.WorkflowEngineParams
	if err := json.Unmarshal(merged, &effective); err != nil {
		return api.WorkflowEngineParams{}, fmt.Errorf("unmarshal engine params: %w", err)
	}
	return effective, nil
}
