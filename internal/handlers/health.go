package handlers

import (
	"net/http"
	"time"

	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
	"github.com/wes-dispatch/wes-dispatch/internal/http_wrappers"
)

const (
	STATUS_HEALTHY = "healthy"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Build     string    `json:"build,omitempty"`
	BuildDate string    `json:"build_date,omitempty"`
}

func (h *Handlers) HandleHealth(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	build, buildDate := "", ""
	if h.serviceConfig != nil && h.serviceConfig.Service != nil {
		build = h.serviceConfig.Service.Build
		buildDate = h.serviceConfig.Service.BuildDate
	}
	if build == "0.0.1" {
		// for now we only want a real build number and not the default value
		build = ""
	}
	if h.storage != nil {
		if err := h.storage.Ping(2 * time.Second); err != nil {
			ctx.Logger.Warn("Storage ping failed", "error", err.Error())
		}
	}
	healthInfo := HealthResponse{
		Status:    STATUS_HEALTHY,
		Timestamp: time.Now().UTC(),
		Build:     build,
		BuildDate: buildDate,
	}
	w.WriteJSON(healthInfo, http.StatusOK)
}
