package progrock

import (
	"sync"

	"github.com/vito/progrock"
)

// VertexStatus is the last observed state of a recorded vertex.
type VertexStatus struct {
	Name      string
	Cached    bool
	Completed bool
	Failed    bool
}

// Summary is a progrock.Writer that keeps the latest state of every vertex.
// It replaces an interactive display when output is not a terminal.
type Summary struct {
	mu       sync.Mutex
	order    []string
	vertices map[string]*VertexStatus
}

// NewSummary creates an empty Summary.
func NewSummary() *Summary {
	return &Summary{vertices: make(map[string]*VertexStatus)}
}

// WriteStatus folds a status update into the tally.
func (s *Summary) WriteStatus(update *progrock.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range update.Vertexes {
		st, ok := s.vertices[v.Id]
		if !ok {
			st = &VertexStatus{}
			s.vertices[v.Id] = st
			s.order = append(s.order, v.Id)
		}
		st.Name = v.Name
		st.Cached = st.Cached || v.Cached
		if v.Completed != nil {
			st.Completed = true
			st.Failed = v.Error != nil
		}
	}
	return nil
}

// Close does nothing; a Summary stays readable after the session ends.
func (s *Summary) Close() error {
	return nil
}

// Vertices returns the vertex states in first-seen order.
func (s *Summary) Vertices() []VertexStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]VertexStatus, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.vertices[id])
	}
	return out
}

// Counts returns how many vertices completed, were cached, and failed.
func (s *Summary) Counts() (completed, cached, failed int) {
	for _, v := range s.Vertices() {
		switch {
		case v.Failed:
			failed++
		case v.Cached:
			cached++
		case v.Completed:
			completed++
		}
	}
	return completed, cached, failed
}
