package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wes-dispatch/wes-dispatch/internal/handlers"
)

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)

	t.Run("GET request returns healthy status", func(t *testing.T) {
		w := httptest.NewRecorder()
		f.handlers.HandleHealth(createExecutionContext(), createMockRequest(http.MethodGet, "/api/v1/health"), &MockResponseWrapper{w})

		if w.Code != http.StatusOK {
			t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
		}
		contentType := w.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", contentType)
		}

		response := decode[map[string]any](t, w)
		if response["status"] != handlers.STATUS_HEALTHY {
			t.Errorf("Expected status 'healthy', got %v", response["status"])
		}
		if response["build"] != "42" {
			t.Errorf("Expected build 42, got %v", response["build"])
		}
		// Verify timestamp is valid RFC3339 format
		if timestamp, ok := response["timestamp"].(string); !ok {
			t.Error("Response missing timestamp field")
		} else if _, err := time.Parse(time.RFC3339, timestamp); err != nil {
			t.Errorf("Invalid timestamp format: %v", err)
		}
	})

	t.Run("default build is hidden", func(t *testing.T) {
		h := handlers.New(nil, nil, nil, nil)
		w := httptest.NewRecorder()
		h.HandleHealth(createExecutionContext(), createMockRequest(http.MethodGet, "/api/v1/health"), &MockResponseWrapper{w})
		if _, ok := decode[map[string]any](t, w)["build"]; ok {
			t.Errorf("Expected no build field")
		}
	})
}
