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

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestLogger_AddsTraceAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "cart", "info")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithRequestID(ctx, "req-42")

	log.InfoContext(ctx, "item added", "user_id", "u1")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "cart", rec["service"])
	assert.Equal(t, "item added", rec["msg"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", rec["span_id"])
	assert.Equal(t, "req-42", rec["request_id"])
}

func TestLogger_NoSpanNoTraceFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "cart", "info")

	log.InfoContext(context.Background(), "hello")

	rec := decodeLine(t, &buf)
	_, hasTrace := rec["trace_id"]
	_, hasReq := rec["request_id"]
	assert.False(t, hasTrace)
	assert.False(t, hasReq)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "cart", "warn")

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestLogger_WithKeepsContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "checkout", "debug").With("component", "pipeline")

	log.DebugContext(WithRequestID(context.Background(), "r1"), "resolving")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "pipeline", rec["component"])
	assert.Equal(t, "r1", rec["request_id"])
}
