// Package progrock provides the Progrock implementation of the telemetry adapter.
package progrock

import (
	"context"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/pie/internal/core/ports"
)

// Recorder implements the ports.Telemetry interface using the vito/progrock library.
type Recorder struct {
	w      progrock.Writer
	rec    *progrock.Recorder
	logger ports.Logger
}

// New creates a new Recorder that tallies vertex outcomes in a Summary and
// reports the tally to log when the session closes.
func New(log ports.Logger) ports.Telemetry {
	return NewRecorder(NewSummary()).WithLogger(log)
}

// NewRecorder creates a new Recorder with the given writer.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{
		w:   w,
		rec: progrock.NewRecorder(w),
	}
}

// Record starts recording a new vertex. The vertex digest is derived from the
// configured ID, or from the name when no ID is given, so re-recording the
// same package updates a single vertex on the tape.
func (r *Recorder) Record(ctx context.Context, name string, opts ...ports.VertexOption) (context.Context, ports.Vertex) {
	cfg := ports.NewVertexConfig(opts...)
	id := cfg.ID
	if id == "" {
		id = name
	}

	v := r.rec.Vertex(digest.FromString(id), name)
	vertex := &Vertex{vertex: v}
	return ports.ContextWithVertex(ctx, vertex), vertex
}

// WithLogger sets the logger that receives the closing tally.
func (r *Recorder) WithLogger(log ports.Logger) *Recorder {
	r.logger = log
	return r
}

// Summary returns the writer's tally when the recorder writes to a Summary.
func (r *Recorder) Summary() (*Summary, bool) {
	s, ok := r.w.(*Summary)
	return s, ok
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	if err := r.w.Close(); err != nil {
		return err
	}

	summary, ok := r.Summary()
	if !ok || r.logger == nil || len(summary.Vertices()) == 0 {
		return nil
	}
	completed, cached, failed := summary.Counts()
	r.logger.Debug("fetch summary", "completed", completed, "cached", cached, "failed", failed)
	return nil
}
