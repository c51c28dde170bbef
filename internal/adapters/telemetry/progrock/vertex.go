package progrock

import (
	"fmt"
	"io"

	"github.com/vito/progrock"
	"go.trai.ch/pie/internal/core/domain"
)

// Vertex implements ports.Vertex for one package fetch.
type Vertex struct {
	vertex *progrock.VertexRecorder
}

func (v *Vertex) Stdout() io.Writer { return v.vertex.Stdout() }

func (v *Vertex) Stderr() io.Writer { return v.vertex.Stderr() }

// Log writes msg to the vertex output, or to its error stream for warnings and errors.
func (v *Vertex) Log(level domain.LogLevel, msg string) {
	w := v.vertex.Stdout()
	if level >= domain.LogLevelWarn {
		w = v.vertex.Stderr()
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", level.String(), msg)
}

// Complete finishes the vertex; a non-nil err marks the fetch as failed.
func (v *Vertex) Complete(err error) {
	v.vertex.Done(err)
}

// Cached records that the package was served from the content store.
func (v *Vertex) Cached() {
	v.vertex.Cached()
}
