package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const redacted = "[REDACTED]"

// sensitiveKeys are attribute keys whose values never reach the log output.
var sensitiveKeys = map[string]struct{}{
	"password":         {},
	"authorization":    {},
	"token":            {},
	"refresh_token":    {},
	"secret_key":       {},
	"account_number":   {},
	"recipient_code":   {},
	"webhook_secret":   {},
	"sendgrid_api_key": {},
}

// New creates a slog.Logger that writes JSON in Kubernetes, prod and dev,
// and coloured text everywhere else. Records carry trace_id/span_id when the
// context holds a valid span.
func New() *slog.Logger {
	return newWithWriter(os.Stdout)
}

func newWithWriter(w io.Writer) *slog.Logger {
	_, inK8s := os.LookupEnv("KUBERNETES_SERVICE_HOST")
	env := os.Getenv("ENV")
	structured := inK8s || env == "prod" || env == "production" || env == "dev"

	opts := &slog.HandlerOptions{
		Level:       levelFromEnv(structured),
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if structured {
		opts.AddSource = true
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(&contextHandler{next: handler, colour: !structured})
}

func NewWithServiceContext(serviceName, version string) *slog.Logger {
	return New().With(
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("environment", os.Getenv("ENV")),
	)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// levelFromEnv reads LOG_LEVEL, falling back to info for structured output
// and debug for local text output.
func levelFromEnv(structured bool) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err == nil {
		return level
	}
	if structured {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

// contextHandler adds the active span to every record and, for local text
// output, paints error messages red.
type contextHandler struct {
	next   slog.Handler
	colour bool
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.colour && r.Level >= slog.LevelError {
		painted := slog.NewRecord(r.Time, r.Level, "\x1b[31m"+r.Message+"\x1b[0m", r.PC)
		r.Attrs(func(a slog.Attr) bool {
			painted.AddAttrs(a)
			return true
		})
		r = painted
	}

	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.TraceID().String()),
			slog.String("span_id", span.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), colour: h.colour}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), colour: h.colour}
}
