package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
	"github.com/wes-dispatch/wes-dispatch/internal/http_wrappers"
	"github.com/wes-dispatch/wes-dispatch/internal/messages"
	"github.com/wes-dispatch/wes-dispatch/internal/serviceerrors"
)

func (h *Handlers) HandleOpenAPI(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	// Determine content type based on Accept header
	accept := r.Header("Accept")
	contentType := "application/yaml"
	if strings.Contains(accept, "application/json") {
		contentType = "application/json"
	}

	// Find the OpenAPI spec file relative to the working directory
	// Try multiple possible locations
	possiblePaths := []string{
		"api/openapi.yaml",
		"../api/openapi.yaml",
		"../../api/openapi.yaml",
		"../../../api/openapi.yaml",
	}

	var spec []byte
	var err error
	for _, path := range possiblePaths {
		spec, err = os.ReadFile(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// If file not found, try to find it relative to the executable
		exePath, _ := os.Executable()
		if exePath != "" {
			exeDir := filepath.Dir(exePath)
			specPath := filepath.Join(exeDir, "api", "openapi.yaml")
			spec, err = os.ReadFile(specPath)
		}
	}

	if err != nil {
		w.Error(serviceerrors.NewServiceError(messages.InternalServerError, "Error", "Failed to read OpenAPI spec: "+err.Error()), ctx.RequestID)
		return
	}

	w.SetHeader("Content-Type", contentType)
	w.SetStatusCode(http.StatusOK)
	_, _ = w.Write(spec)
}
