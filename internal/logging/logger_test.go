package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitWritesJSONWithServiceFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("parking-test", "production", &buf)

	Info(context.Background(), "slot allocated", "ticket", "AB12CD34")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "slot allocated", record["msg"])
	assert.Equal(t, "parking-test", record["service"])
	assert.Equal(t, "production", record["environment"])
	assert.Equal(t, "AB12CD34", record["ticket"])
}

func TestDebugSuppressedOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("parking-test", "production", &buf)

	Debug(context.Background(), "noisy")
	assert.Empty(t, buf.String())

	buf.Reset()
	InitWithWriter("parking-test", "development", &buf)
	Debug(context.Background(), "noisy")
	assert.Contains(t, buf.String(), "noisy")
}

func TestWithContextAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("parking-test", "production", &buf)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	Warn(ctx, "overstay")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, span.SpanContext().TraceID().String(), record["traceId"])
	assert.Equal(t, span.SpanContext().SpanID().String(), record["spanId"])
}
