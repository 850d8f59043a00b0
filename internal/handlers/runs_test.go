package handlers_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wes-dispatch/wes-dispatch/internal/constants"
	"github.com/wes-dispatch/wes-dispatch/internal/engine"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

const validBody = `{"workflow_url": "icgc-argo/nextflow-dna-seq-alignment", "workflow_params": {"study_id": "TEST-PR"}}`

func (f *fixture) createRun(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := createMockRequest(http.MethodPost, "/api/v1/runs")
	req.body = []byte(body)
	w := httptest.NewRecorder()
	f.handlers.HandleCreateRun(createExecutionContext(), req, &MockResponseWrapper{w})
	return w
}

func (f *fixture) getRun(t *testing.T, runID string) *httptest.ResponseRecorder {
	t.Helper()
	req := createMockRequest(http.MethodGet, "/api/v1/runs/"+runID)
	req.pathValues[constants.PATH_PARAMETER_RUN_ID] = runID
	w := httptest.NewRecorder()
	f.handlers.HandleGetRun(createExecutionContext(), req, &MockResponseWrapper{w})
	return w
}

func (f *fixture) listRuns(t *testing.T, uri string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handlers.HandleListRuns(createExecutionContext(), createMockRequest(http.MethodGet, uri), &MockResponseWrapper{w})
	return w
}

func TestHandleCreateRun(t *testing.T) {
	t.Run("accepted run is running", func(t *testing.T) {
		f := newFixture(t)
		w := f.createRun(t, validBody)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}
		response := decode[api.RunResponse](t, w)
		if response.RunID == "" || response.State != api.StateRunning {
			t.Fatalf("unexpected response %+v", response)
		}
	})

	t.Run("every request is a new run", func(t *testing.T) {
		f := newFixture(t)
		first := decode[api.RunResponse](t, f.createRun(t, validBody))
		second := decode[api.RunResponse](t, f.createRun(t, validBody))
		if first.RunID == second.RunID {
			t.Fatalf("expected distinct run ids, got %s twice", first.RunID)
		}
	})

	testCases := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"empty object", `{}`, http.StatusBadRequest, "workflow_url is a required field! workflow_params is a required field!"},
		{"missing params", `{"workflow_url": "icgc-argo/nextflow-dna-seq-alignment"}`, http.StatusBadRequest, "workflow_params is a required field!"},
		{"blank url", `{"workflow_url": "  ", "workflow_params": {}}`, http.StatusBadRequest, "workflow_url is a required field!"},
		{"malformed json", `{"workflow_url": `, http.StatusBadRequest, "The request body is not valid JSON"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.createRun(t, tc.body)
			if w.Code != tc.status {
				t.Fatalf("Expected status code %d, got %d", tc.status, w.Code)
			}
			response := decode[api.ErrorResponse](t, w)
			if response.StatusCode != tc.status || !strings.HasPrefix(response.Msg, tc.message) {
				t.Fatalf("unexpected error response %+v", response)
			}
			results, err := f.storage.GetRuns(10, 0, "")
			if err != nil {
				t.Fatalf("GetRuns() returned error: %v", err)
			}
			if results.TotalStored != 0 {
				t.Fatalf("expected no run to be created for an invalid request, got %d", results.TotalStored)
			}
		})
	}

	t.Run("launch failure is classified", func(t *testing.T) {
		f := newFixture(t)
		f.runtime.launchErr = &engine.ScriptNotFoundError{Message: "Cannot find script file: main.nf"}
		w := f.createRun(t, validBody)
		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected status code %d, got %d", http.StatusNotFound, w.Code)
		}
		response := decode[api.ErrorResponse](t, w)
		if !strings.Contains(response.Msg, "workflow_not_found") || !strings.Contains(response.Msg, "main.nf") {
			t.Fatalf("unexpected error response %+v", response)
		}
	})

	t.Run("unclassified launch failure", func(t *testing.T) {
		f := newFixture(t)
		f.runtime.launchErr = errors.New("engine exploded")
		w := f.createRun(t, validBody)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("Expected status code %d, got %d", http.StatusInternalServerError, w.Code)
		}
		if response := decode[api.ErrorResponse](t, w); response.Msg != "engine exploded" {
			t.Fatalf("unexpected error response %+v", response)
		}
	})

	t.Run("body read failure", func(t *testing.T) {
		f := newFixture(t)
		req := createMockRequest(http.MethodPost, "/api/v1/runs")
		req.bodyErr = errors.New("connection reset")
		w := httptest.NewRecorder()
		f.handlers.HandleCreateRun(createExecutionContext(), req, &MockResponseWrapper{w})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("body too large", func(t *testing.T) {
		f := newFixture(t)
		req := createMockRequest(http.MethodPost, "/api/v1/runs")
		req.bodyErr = fmt.Errorf("read body: %w", &http.MaxBytesError{Limit: 4 << 20})
		w := httptest.NewRecorder()
		f.handlers.HandleCreateRun(createExecutionContext(), req, &MockResponseWrapper{w})
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("Expected status code %d, got %d", http.StatusRequestEntityTooLarge, w.Code)
		}
		if !strings.Contains(w.Body.String(), "4194304 bytes") {
			t.Errorf("Expected the limit in the message, got %s", w.Body.String())
		}
	})
}

func TestHandleGetRun(t *testing.T) {
	f := newFixture(t)
	created := decode[api.RunResponse](t, f.createRun(t, validBody))

	t.Run("live run", func(t *testing.T) {
		w := f.getRun(t, created.RunID)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
		}
		resource := decode[api.RunResource](t, w)
		if resource.State != api.StateRunning || resource.Request == nil || resource.Metadata == nil {
			t.Fatalf("unexpected resource %+v", resource)
		}
		if resource.Metadata.Profile != "standard" {
			t.Fatalf("expected the configured default profile, got %q", resource.Metadata.Profile)
		}
	})

	t.Run("finished run comes from storage", func(t *testing.T) {
		close(f.runtime.release)
		deadline := time.Now().Add(5 * time.Second)
		for {
			if _, live := f.dispatcher.Lookup(created.RunID); !live {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("run %s did not finish", created.RunID)
			}
			time.Sleep(20 * time.Millisecond)
		}
		resource := decode[api.RunResource](t, f.getRun(t, created.RunID))
		if resource.State != api.StateSucceeded || resource.Metadata == nil || !resource.Metadata.Success {
			t.Fatalf("unexpected resource %+v", resource)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		w := f.getRun(t, "5b8f7b8e-4f0e-4a55-8a8b-0d7d2d1c7c11")
		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected status code %d, got %d", http.StatusNotFound, w.Code)
		}
		if response := decode[api.ErrorResponse](t, w); !strings.Contains(response.Msg, "5b8f7b8e-4f0e-4a55-8a8b-0d7d2d1c7c11") {
			t.Fatalf("unexpected error response %+v", response)
		}
	})

	t.Run("missing path parameter", func(t *testing.T) {
		if w := f.getRun(t, ""); w.Code != http.StatusNotFound {
			t.Fatalf("Expected status code %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestHandleListRuns(t *testing.T) {
	f := newFixture(t)
	for range 3 {
		f.createRun(t, validBody)
	}

	t.Run("first page", func(t *testing.T) {
		w := f.listRuns(t, "/api/v1/runs?limit=2")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
		}
		list := decode[api.RunResourceList](t, w)
		if len(list.Items) != 2 || list.TotalCount != 3 || list.Limit != 2 {
			t.Fatalf("unexpected page %+v", list.Page)
		}
		if list.Next == nil || !strings.Contains(list.Next.Href, "offset=2") {
			t.Fatalf("expected a next link, got %+v", list.Next)
		}
	})

	t.Run("last page", func(t *testing.T) {
		list := decode[api.RunResourceList](t, f.listRuns(t, "/api/v1/runs?limit=2&offset=2"))
		if len(list.Items) != 1 || list.Next != nil {
			t.Fatalf("unexpected page %+v", list)
		}
	})

	t.Run("state filter", func(t *testing.T) {
		list := decode[api.RunResourceList](t, f.listRuns(t, "/api/v1/runs?state=SUCCEEDED"))
		if len(list.Items) != 0 || list.TotalCount != 0 {
			t.Fatalf("expected no succeeded runs, got %+v", list)
		}
	})

	for _, uri := range []string{"/api/v1/runs?limit=abc", "/api/v1/runs?offset=-1", "/api/v1/runs?state=PAUSED"} {
		t.Run("invalid query "+uri, func(t *testing.T) {
			if w := f.listRuns(t, uri); w.Code != http.StatusBadRequest {
				t.Fatalf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}
}
