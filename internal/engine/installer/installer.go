// Package installer fetches every package of a resolution graph and links
// the result into a project.
package installer

import (
	"context"
	"errors"

	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultConcurrency bounds parallel fetches when none is configured.
const DefaultConcurrency = 16

// Report summarizes an install run.
type Report struct {
	// Statuses holds the last state of every package in the graph.
	Statuses map[domain.NodeID]domain.VertexStatus
	// Fetched counts packages downloaded during this install.
	Fetched int
	// Cached counts packages that were already in the store.
	Cached int
	// Failed counts packages that could not be fetched.
	Failed int
}

func newReport(statuses map[domain.NodeID]domain.VertexStatus) *Report {
	r := &Report{Statuses: statuses}
	for _, status := range statuses {
		switch status {
		case domain.VertexStatusCompleted:
			r.Fetched++
		case domain.VertexStatusCached:
			r.Cached++
		case domain.VertexStatusFailed:
			r.Failed++
		}
	}
	return r
}

// Unfinished counts packages that never reached a terminal state.
func (r *Report) Unfinished() int {
	n := 0
	for _, status := range r.Statuses {
		if !status.IsTerminal() {
			n++
		}
	}
	return n
}

// Installer fetches the nodes of a graph with bounded parallelism and hands
// the resulting store entries to a linker.
type Installer struct {
	fetcher     ports.Fetcher
	store       ports.ContentStore
	linker      ports.Linker
	telemetry   ports.Telemetry
	logger      ports.Logger
	concurrency int
}

// New creates a new Installer. A concurrency below one uses DefaultConcurrency.
func New(
	fetcher ports.Fetcher,
	store ports.ContentStore,
	linker ports.Linker,
	telemetry ports.Telemetry,
	log ports.Logger,
	concurrency int,
) *Installer {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Installer{
		fetcher:     fetcher,
		store:       store,
		linker:      linker,
		telemetry:   telemetry,
		logger:      log,
		concurrency: concurrency,
	}
}

// Install fetches every node of graph and then links them into projectDir.
// A failing fetch does not cancel the others; all failures are joined into
// the returned error and the project is left untouched. When fetching fails
// the report is still returned and describes every package.
func (i *Installer) Install(ctx context.Context, graph *domain.ResolutionGraph, projectDir string) (*Report, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	state := i.newRunState(ctx, graph)
	err := state.run()
	report := newReport(state.statuses)
	if err != nil {
		if n := report.Unfinished(); n > 0 {
			i.logger.Warn("install interrupted", "unfinished", n, "packages", graph.Len())
		}
		return report, err
	}

	if err := i.linker.Link(ctx, projectDir, graph, state.entries); err != nil {
		return nil, err
	}

	i.logger.Debug("linked packages", "project", projectDir, "packages", graph.Len())
	return report, nil
}

type result struct {
	node   domain.ResolutionNode
	entry  *domain.StoreEntry
	cached bool
	err    error
}

type installRunState struct {
	ctx       context.Context
	ready     []domain.ResolutionNode
	active    int
	resultsCh chan result
	errs      error
	entries   map[domain.NodeID]*domain.StoreEntry
	statuses  map[domain.NodeID]domain.VertexStatus
	i         *Installer
}

func (i *Installer) newRunState(ctx context.Context, graph *domain.ResolutionGraph) *installRunState {
	ready := graph.Sorted()

	statuses := make(map[domain.NodeID]domain.VertexStatus, len(ready))
	for _, node := range ready {
		statuses[node.ID] = domain.VertexStatusPending
	}

	return &installRunState{
		ctx:       ctx,
		ready:     ready,
		resultsCh: make(chan result, i.concurrency),
		entries:   make(map[domain.NodeID]*domain.StoreEntry, len(ready)),
		statuses:  statuses,
		i:         i,
	}
}

func (state *installRunState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

// run owns the status map; fetch goroutines only report through resultsCh.
// Once ctx is cancelled nothing new is scheduled and the loop drains the
// fetches still in flight.
func (state *installRunState) run() error {
	for !state.isDone() {
		state.schedule()

		if state.active == 0 {
			break
		}
		state.handleResult(<-state.resultsCh)
	}

	if state.ctx.Err() != nil {
		state.errs = errors.Join(state.errs, state.ctx.Err())
	}
	return state.errs
}

func (state *installRunState) schedule() {
	for len(state.ready) > 0 && state.active < state.i.concurrency && state.ctx.Err() == nil {
		node := state.ready[0]
		state.ready = state.ready[1:]

		state.active++
		state.statuses[node.ID] = domain.VertexStatusRunning

		go func(n domain.ResolutionNode) {
			state.resultsCh <- state.fetch(n)
		}(node)
	}
}

// fetch runs in its own goroutine and must only touch the installer through
// its ports.
func (state *installRunState) fetch(node domain.ResolutionNode) result {
	key := node.Key()
	ctx, vertex := state.i.telemetry.Record(state.ctx, "fetch "+key, ports.WithVertexID(key))

	cached := state.i.store.Contains(node.Integrity)
	if cached {
		vertex.Cached()
	}

	entry, err := state.i.fetcher.Fetch(ctx, domain.VersionMetadata{
		Name:       node.Name,
		Version:    node.Version,
		TarballURL: node.TarballURL,
		Integrity:  node.Integrity,
	})
	if err != nil {
		vertex.Log(domain.LogLevelError, err.Error())
	}
	vertex.Complete(err)

	return result{node: node, entry: entry, cached: cached, err: err}
}

func (state *installRunState) handleResult(res result) {
	state.active--

	if res.err != nil {
		wrapped := zerr.With(zerr.Wrap(res.err, "failed to fetch package"), "package", res.node.Key())
		state.errs = errors.Join(state.errs, wrapped)
		state.statuses[res.node.ID] = domain.VertexStatusFailed
		return
	}

	state.entries[res.node.ID] = res.entry
	if res.cached {
		state.statuses[res.node.ID] = domain.VertexStatusCached
	} else {
		state.statuses[res.node.ID] = domain.VertexStatusCompleted
	}
	state.i.logger.Debug("package ready", "package", res.node.Key(), "path", res.entry.Path, "cached", res.cached)
}
