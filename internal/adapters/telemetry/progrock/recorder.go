// Package progrock records job progress as a progrock vertex tape.
package progrock

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"

	"go.trai.ch/rig/internal/core/ports"
)

var _ ports.Telemetry = (*Recorder)(nil)

// Recorder implements the ports.Telemetry interface using the vito/progrock library.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
	seq atomic.Int64
}

// New creates a new Recorder with a default tape.
func New() *Recorder {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a new Recorder with the given writer.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{
		w:   w,
		rec: progrock.NewRecorder(w),
	}
}

// Record starts a vertex. Each call gets its own digest, so repeated names
// stay distinct.
func (r *Recorder) Record(ctx context.Context, name string, opts ...ports.VertexOption) (context.Context, ports.Vertex) {
	cfg := ports.VertexConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var vopts []progrock.VertexOpt
	if cfg.Internal {
		vopts = append(vopts, progrock.Internal())
	}

	d := digest.FromString(fmt.Sprintf("%d/%s", r.seq.Add(1), name))
	vertex := &stepVertex{rec: r.rec.Vertex(d, name, vopts...)}
	return ports.ContextWithVertex(ctx, vertex), vertex
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	if c, ok := r.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// stepVertex adapts a progrock vertex to ports.Vertex. Step output written to
// Stdout or Stderr lands on the vertex log.
type stepVertex struct {
	rec *progrock.VertexRecorder
}

func (v *stepVertex) Stdout() io.Writer { return v.rec.Stdout() }

func (v *stepVertex) Stderr() io.Writer { return v.rec.Stderr() }

// Complete marks the step done, failed when err is non-nil.
func (v *stepVertex) Complete(err error) { v.rec.Done(err) }

// Cached marks a restore step that hit the cache.
func (v *stepVertex) Cached() { v.rec.Cached() }
