package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("cart-service", Options{Level: "info"}, &buf)

	l.Debug("hidden")
	l.Info("cart opened", "cart_key", "cart:7:T3")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cart opened", entry["msg"])
	assert.Equal(t, "cart-service", entry["component"])
	assert.Equal(t, "cart:7:T3", entry["cart_key"])
}

func TestNewLogger_RotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	l := NewLogger("orders-service", Options{File: path}, &buf)
	l.Warn("order service slow")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "order service slow")
	assert.Contains(t, buf.String(), "order service slow")
}

func TestFromCtx(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test", Options{}, &buf)

	ctx := WithCtx(context.Background(), l)
	assert.Same(t, l, FromCtx(ctx))

	assert.NotNil(t, FromCtx(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestTraceAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("cart-service", Options{}, &buf)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	l.With(TraceAttrs(ctx)...).Info("checkout started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	assert.Empty(t, TraceAttrs(context.Background()))
}
