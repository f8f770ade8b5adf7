package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanRecord is one line of a trace file.
type SpanRecord struct {
	TraceID    string            `json:"trace_id"`
	SpanID     string            `json:"span_id"`
	ParentID   string            `json:"parent_id,omitempty"`
	Name       string            `json:"name"`
	Start      time.Time         `json:"start"`
	End        time.Time         `json:"end"`
	DurationMS int64             `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Events     int               `json:"events,omitempty"`
}

var _ sdktrace.SpanProcessor = (*SpanLog)(nil)

// SpanLog is a span processor that writes every ended span as a JSON line.
type SpanLog struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewSpanLog returns a SpanLog writing to w.
func NewSpanLog(w io.Writer) *SpanLog {
	return &SpanLog{enc: json.NewEncoder(w)}
}

// OnStart does nothing.
func (l *SpanLog) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd writes s.
func (l *SpanLog) OnEnd(s sdktrace.ReadOnlySpan) {
	sc := s.SpanContext()
	if !sc.IsValid() {
		return
	}

	rec := SpanRecord{
		TraceID:    sc.TraceID().String(),
		SpanID:     sc.SpanID().String(),
		Name:       s.Name(),
		Start:      s.StartTime(),
		End:        s.EndTime(),
		DurationMS: s.EndTime().Sub(s.StartTime()).Milliseconds(),
		Events:     len(s.Events()),
	}
	if p := s.Parent(); p.IsValid() {
		rec.ParentID = p.SpanID().String()
	}
	if s.Status().Code == codes.Error {
		rec.Error = s.Status().Description
	}
	if attrs := s.Attributes(); len(attrs) > 0 {
		rec.Attributes = make(map[string]string, len(attrs))
		for _, kv := range attrs {
			rec.Attributes[string(kv.Key)] = kv.Value.Emit()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.enc.Encode(rec)
}

// ForceFlush does nothing.
func (l *SpanLog) ForceFlush(context.Context) error {
	return nil
}

// Shutdown does nothing.
func (l *SpanLog) Shutdown(context.Context) error {
	return nil
}

// NewProvider builds a tracer provider that sends spans to each processor.
// With no processors spans are sampled but dropped.
func NewProvider(processors ...sdktrace.SpanProcessor) *sdktrace.TracerProvider {
	opts := make([]sdktrace.TracerProviderOption, 0, len(processors))
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	return sdktrace.NewTracerProvider(opts...)
}
