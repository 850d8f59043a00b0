package logging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

const instrumentationName = "github.com/wes-dispatch/wes-dispatch"

// WithOTel returns a logger that writes every record to logger and also emits it
// through provider. A nil provider returns logger unchanged.
func WithOTel(logger *slog.Logger, provider otellog.LoggerProvider) *slog.Logger {
	if provider == nil {
		return logger
	}
	return slog.New(&teeHandler{
		handlers: []slog.Handler{
			logger.Handler(),
			&otelHandler{logger: provider.Logger(instrumentationName), level: slog.LevelInfo},
		},
	})
}

type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, h := range t.handlers {
		if h.Enabled(ctx, r.Level) {
			if handleErr := h.Handle(ctx, r.Clone()); handleErr != nil && err == nil {
				err = handleErr
			}
		}
	}
	return err
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: handlers}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: handlers}
}

// otelHandler converts slog records into OpenTelemetry log records. Groups are
// flattened into dotted attribute keys.
type otelHandler struct {
	logger otellog.Logger
	level  slog.Level
	attrs  []otellog.KeyValue
	prefix string
}

func (h *otelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *otelHandler) Handle(ctx context.Context, r slog.Record) error {
	var record otellog.Record
	record.SetTimestamp(r.Time)
	record.SetObservedTimestamp(time.Now())
	record.SetBody(otellog.StringValue(r.Message))
	record.SetSeverity(severity(r.Level))
	record.SetSeverityText(r.Level.String())
	record.AddAttributes(h.attrs...)
	r.Attrs(func(attr slog.Attr) bool {
		record.AddAttributes(convertAttr(h.prefix, attr)...)
		return true
	})
	h.logger.Emit(ctx, record)
	return nil
}

func (h *otelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]otellog.KeyValue(nil), h.attrs...)
	for _, attr := range attrs {
		clone.attrs = append(clone.attrs, convertAttr(h.prefix, attr)...)
	}
	return &clone
}

func (h *otelHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func severity(level slog.Level) otellog.Severity {
	switch {
	case level >= slog.LevelError:
		return otellog.SeverityError
	case level >= slog.LevelWarn:
		return otellog.SeverityWarn
	case level >= slog.LevelInfo:
		return otellog.SeverityInfo
	default:
		return otellog.SeverityDebug
	}
}

func convertAttr(prefix string, attr slog.Attr) []otellog.KeyValue {
	value := attr.Value.Resolve()
	key := prefix + attr.Key
	switch value.Kind() {
	case slog.KindGroup:
		var out []otellog.KeyValue
		for _, inner := range value.Group() {
			out = append(out, convertAttr(key+".", inner)...)
		}
		return out
	case slog.KindBool:
		return []otellog.KeyValue{otellog.Bool(key, value.Bool())}
	case slog.KindInt64:
		return []otellog.KeyValue{otellog.Int64(key, value.Int64())}
	case slog.KindUint64:
		return []otellog.KeyValue{otellog.Int64(key, int64(value.Uint64()))}
	case slog.KindFloat64:
		return []otellog.KeyValue{otellog.Float64(key, value.Float64())}
	case slog.KindString:
		return []otellog.KeyValue{otellog.String(key, value.String())}
	case slog.KindTime:
		return []otellog.KeyValue{otellog.String(key, value.Time().Format(time.RFC3339Nano))}
	case slog.KindDuration:
		return []otellog.KeyValue{otellog.Int64(key, value.Duration().Nanoseconds())}
	default:
		return []otellog.KeyValue{otellog.String(key, fmt.Sprintf("%v", value.Any()))}
	}
}
