package telemetry_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"go.trai.ch/rig/internal/adapters/telemetry"
	"go.trai.ch/rig/internal/core/ports"
)

func TestInterfaceSatisfaction(_ *testing.T) {
	var _ ports.Tracer = (*telemetry.OTelTracer)(nil)
	var _ ports.Span = (*telemetry.OTelSpan)(nil)
	var _ ports.Tracer = (*telemetry.NoOpTracer)(nil)
	var _ ports.Span = (*telemetry.NoOpSpan)(nil)
}

func TestOTelTracer_Span(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := telemetry.NewOTelTracerFrom(tp, "test")
	ctx, root := tracer.Start(context.Background(), "job", ports.WithAttribute("job.name", "build"))
	tracer.EmitPlan(ctx, []string{"echo ok", "Build"})

	_, step := tracer.Start(ctx, "Build", ports.WithAttribute("step.index", 1))
	_, err := step.Write([]byte("compiling\nlinking\n"))
	require.NoError(t, err)
	step.SetAttribute("exit_code", 2)
	step.RecordError(errors.New("exit status 2"))
	step.End()
	root.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)

	build := spans[0]
	assert.Equal(t, "Build", build.Name())
	assert.Equal(t, "exit status 2", build.Status().Description)
	assert.Equal(t, spans[1].SpanContext().SpanID(), build.Parent().SpanID())

	var messages []string
	for _, ev := range build.Events() {
		if ev.Name == "log" {
			messages = append(messages, ev.Attributes[0].Value.AsString())
		}
	}
	assert.Equal(t, []string{"compiling\nlinking\n"}, messages)

	job := spans[1]
	require.Len(t, job.Events(), 1)
	assert.Equal(t, "plan_emitted", job.Events()[0].Name)
}

func TestNoOpTracer(t *testing.T) {
	tracer := telemetry.NewNoOpTracer()
	ctx := context.Background()
	got, span := tracer.Start(ctx, "test-span")
	assert.Equal(t, ctx, got)

	span.SetAttribute("key", "value")
	span.RecordError(errors.New("ignored"))
	n, err := span.Write([]byte("test log"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	span.End()
}

func TestSpanLog(t *testing.T) {
	var buf bytes.Buffer
	tp := telemetry.NewProvider(telemetry.NewSpanLog(&buf))
	tracer := telemetry.NewOTelTracerFrom(tp, "test")

	ctx, root := tracer.Start(context.Background(), "job")
	_, step := tracer.Start(ctx, "Build", ports.WithAttribute("step.kind", "run"))
	step.RecordError(errors.New("boom"))
	step.End()
	root.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	var records []telemetry.SpanRecord
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var rec telemetry.SpanRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 2)

	assert.Equal(t, "Build", records[0].Name)
	assert.Equal(t, "boom", records[0].Error)
	assert.Equal(t, "run", records[0].Attributes["step.kind"])
	assert.Equal(t, records[1].SpanID, records[0].ParentID)
	assert.Equal(t, records[1].TraceID, records[0].TraceID)
	assert.Empty(t, records[1].ParentID)
}
