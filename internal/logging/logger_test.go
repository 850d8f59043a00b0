package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/wes-dispatch/wes-dispatch/internal/logging"
)

type memoryExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func TestWithOTel(t *testing.T) {
	t.Run("nil provider keeps the logger", func(t *testing.T) {
		logger := logging.FallbackLogger()
		if logging.WithOTel(logger, nil) != logger {
			t.Fatalf("expected the same logger")
		}
	})

	t.Run("records reach both handlers", func(t *testing.T) {
		var buf bytes.Buffer
		base := slog.New(slog.NewJSONHandler(&buf, nil))
		exporter := &memoryExporter{}
		provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
		t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

		logger := logging.RunLogger(logging.WithOTel(base, provider), "run-1")
		logger.WithGroup("pod").Warn("Pod failed", "phase", "Failed", "restarts", 2)

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("expected a json log line, got %q: %v", buf.String(), err)
		}
		if line["run_id"] != "run-1" || line["msg"] != "Pod failed" {
			t.Fatalf("unexpected log line %v", line)
		}

		exporter.mu.Lock()
		defer exporter.mu.Unlock()
		if len(exporter.records) != 1 {
			t.Fatalf("expected 1 exported record, got %d", len(exporter.records))
		}
		record := exporter.records[0]
		if record.Body().AsString() != "Pod failed" || record.Severity() != otellog.SeverityWarn {
			t.Fatalf("unexpected record body %q severity %v", record.Body().AsString(), record.Severity())
		}
		attrs := map[string]otellog.Value{}
		record.WalkAttributes(func(kv otellog.KeyValue) bool {
			attrs[kv.Key] = kv.Value
			return true
		})
		if attrs["run_id"].AsString() != "run-1" || attrs["pod.phase"].AsString() != "Failed" || attrs["pod.restarts"].AsInt64() != 2 {
			t.Fatalf("unexpected attributes %v", attrs)
		}
	})

	t.Run("debug records are not exported", func(t *testing.T) {
		exporter := &memoryExporter{}
		provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
		t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
		var buf bytes.Buffer
		logger := logging.WithOTel(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), provider)
		logger.Debug("noise")
		if len(exporter.records) != 0 {
			t.Fatalf("expected no exported records, got %d", len(exporter.records))
		}
		if buf.Len() == 0 {
			t.Fatalf("expected the base handler to receive the debug record")
		}
	})
}
