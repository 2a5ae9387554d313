package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestLogger(t *testing.T) {
	t.Run("JSONInProd", func(t *testing.T) {
		t.Setenv("ENV", "prod")
		var buf bytes.Buffer

		newWithWriter(&buf).Info("payroll created", "payroll_id", 7)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "payroll created", entry["msg"])
		assert.EqualValues(t, 7, entry["payroll_id"])
	})

	t.Run("ErrorIsColouredLocally", func(t *testing.T) {
		t.Setenv("ENV", "local")
		var buf bytes.Buffer

		newWithWriter(&buf).Error("transfer failed")

		assert.Contains(t, buf.String(), "\x1b[31mtransfer failed\x1b[0m")
	})

	t.Run("AddsTraceContext", func(t *testing.T) {
		t.Setenv("ENV", "prod")
		var buf bytes.Buffer

		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		}))

		newWithWriter(&buf).InfoContext(ctx, "webhook received")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
		assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	})

	t.Run("RedactsSecrets", func(t *testing.T) {
		t.Setenv("ENV", "prod")
		var buf bytes.Buffer

		newWithWriter(&buf).Info("recipient created", "account_number", "0123456789", "Password", "hunter2", "bank_code", "058")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "[REDACTED]", entry["account_number"])
		assert.Equal(t, "[REDACTED]", entry["Password"])
		assert.Equal(t, "058", entry["bank_code"])
	})

	t.Run("LevelFromEnv", func(t *testing.T) {
		t.Setenv("ENV", "prod")
		t.Setenv("LOG_LEVEL", "warn")
		var buf bytes.Buffer

		l := newWithWriter(&buf)
		l.Info("dropped")
		assert.Empty(t, buf.String())

		l.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})
}
