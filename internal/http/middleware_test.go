package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fjod/tableside/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestRequestLogger_TraceIDsOncePerLine(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewLogger("cart-service", logging.Options{}, &buf)

	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromCtx(r.Context()).InfoContext(r.Context(), "cart opened")
		w.WriteHeader(http.StatusNoContent)
	}))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(t.Context(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/open", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, 1, strings.Count(line, `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`), line)
		assert.Equal(t, 1, strings.Count(line, `"span_id"`), line)
	}
}
