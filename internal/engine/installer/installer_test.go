package installer_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pie/internal/adapters/telemetry"
	"go.trai.ch/pie/internal/adapters/telemetry/progrock"
	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/core/ports/mocks"
	"go.trai.ch/pie/internal/engine/installer"
	"go.uber.org/mock/gomock"
)

type harness struct {
	fetcher *mocks.MockFetcher
	store   *mocks.MockContentStore
	linker  *mocks.MockLinker
	logger  *mocks.MockLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &harness{
		fetcher: mocks.NewMockFetcher(ctrl),
		store:   mocks.NewMockContentStore(ctrl),
		linker:  mocks.NewMockLinker(ctrl),
		logger:  mocks.NewMockLogger(ctrl),
	}
	h.logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	return h
}

// graphOf builds a graph of unrelated packages named p0..pN-1, each with a
// distinct integrity whose first byte is its index.
func graphOf(t *testing.T, n int) *domain.ResolutionGraph {
	t.Helper()
	g := domain.NewResolutionGraph()
	for i := range n {
		name := domain.PackageName(fmt.Sprintf("p%d", i))
		id, _ := g.AddNode(domain.VersionMetadata{
			Name:       name,
			Version:    "1.0.0",
			TarballURL: "https://registry.test/" + string(name) + ".tgz",
			Integrity:  domain.Integrity{Algorithm: domain.SHA512, Sum: []byte{byte(i)}},
		})
		require.NoError(t, g.AddRoot(domain.NewSpecifier(name, "^1.0.0"), id))
	}
	return g
}

func entryFor(meta domain.VersionMetadata) *domain.StoreEntry {
	return &domain.StoreEntry{Integrity: meta.Integrity, Path: "/store/" + meta.Key()}
}

func TestInstall_FetchesAndLinks(t *testing.T) {
	h := newHarness(t)
	g := graphOf(t, 3)
	summary := progrock.NewSummary()

	// p0 is already in the store.
	h.store.EXPECT().Contains(gomock.Any()).DoAndReturn(func(i domain.Integrity) bool {
		return i.Sum[0] == 0
	}).Times(3)
	h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, meta domain.VersionMetadata) (*domain.StoreEntry, error) {
			return entryFor(meta), nil
		}).Times(3)
	h.linker.EXPECT().Link(gomock.Any(), "/project", g, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, _ *domain.ResolutionGraph, entries map[domain.NodeID]*domain.StoreEntry) error {
			assert.Len(t, entries, 3)
			for node := range g.Nodes() {
				assert.Equal(t, "/store/"+node.Key(), entries[node.ID].Path)
			}
			return nil
		})

	inst := installer.New(h.fetcher, h.store, h.linker, progrock.NewRecorder(summary), h.logger, 2)
	report, err := inst.Install(context.Background(), g, "/project")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Cached)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Unfinished())
	assert.Equal(t, map[domain.NodeID]domain.VertexStatus{
		0: domain.VertexStatusCached,
		1: domain.VertexStatusCompleted,
		2: domain.VertexStatusCompleted,
	}, report.Statuses)

	completed, cached, failed := summary.Counts()
	assert.Equal(t, 2, completed)
	assert.Equal(t, 1, cached)
	assert.Equal(t, 0, failed)
}

func TestInstall_FailuresAreJoinedAndSkipLinking(t *testing.T) {
	h := newHarness(t)
	g := graphOf(t, 3)

	h.store.EXPECT().Contains(gomock.Any()).Return(false).Times(3)
	h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, meta domain.VersionMetadata) (*domain.StoreEntry, error) {
			switch meta.Name {
			case "p1":
				return nil, domain.ErrIntegrityViolation
			case "p2":
				return nil, domain.ErrFetchFailed
			default:
				return entryFor(meta), nil
			}
		}).Times(3)
	// No Link expectation: linking after a failed fetch fails the test.

	inst := installer.New(h.fetcher, h.store, h.linker, telemetry.NewNoOp(), h.logger, 1)
	report, err := inst.Install(context.Background(), g, "/project")
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrIntegrityViolation)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Contains(t, err.Error(), "failed to fetch package")

	require.NotNil(t, report)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, map[domain.NodeID]domain.VertexStatus{
		0: domain.VertexStatusCompleted,
		1: domain.VertexStatusFailed,
		2: domain.VertexStatusFailed,
	}, report.Statuses)
}

func TestInstall_BoundedConcurrency(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		g := graphOf(t, 10)

		var inFlight, peak atomic.Int32
		h.store.EXPECT().Contains(gomock.Any()).Return(false).Times(10)
		h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, meta domain.VersionMetadata) (*domain.StoreEntry, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				inFlight.Add(-1)
				return entryFor(meta), nil
			}).Times(10)
		h.linker.EXPECT().Link(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		inst := installer.New(h.fetcher, h.store, h.linker, telemetry.NewNoOp(), h.logger, 3)

		start := time.Now()
		report, err := inst.Install(context.Background(), g, "/project")
		require.NoError(t, err)

		assert.Equal(t, 10, report.Fetched)
		assert.Equal(t, int32(3), peak.Load())
		// Ten fetches of 10ms, three at a time, take four rounds.
		assert.Equal(t, 40*time.Millisecond, time.Since(start))
	})
}

func TestInstall_LinkFailure(t *testing.T) {
	h := newHarness(t)
	g := graphOf(t, 1)

	h.store.EXPECT().Contains(gomock.Any()).Return(true)
	h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, meta domain.VersionMetadata) (*domain.StoreEntry, error) {
			return entryFor(meta), nil
		})
	h.linker.EXPECT().Link(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ErrLinkFailed)

	inst := installer.New(h.fetcher, h.store, h.linker, telemetry.NewNoOp(), h.logger, 0)
	_, err := inst.Install(context.Background(), g, "/project")
	assert.ErrorIs(t, err, domain.ErrLinkFailed)
}

func TestInstall_EmptyGraph(t *testing.T) {
	h := newHarness(t)
	g := domain.NewResolutionGraph()

	h.linker.EXPECT().Link(gomock.Any(), "/project", g, gomock.Len(0)).Return(nil)

	inst := installer.New(h.fetcher, h.store, h.linker, telemetry.NewNoOp(), h.logger, 4)
	report, err := inst.Install(context.Background(), g, "/project")
	require.NoError(t, err)
	assert.Empty(t, report.Statuses)
	assert.Zero(t, report.Fetched)
	assert.Zero(t, report.Cached)
}

func TestInstall_Cancelled(t *testing.T) {
	h := newHarness(t)
	g := graphOf(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.logger.EXPECT().Warn("install interrupted", "unfinished", 2, "packages", 2)

	inst := installer.New(h.fetcher, h.store, h.linker, telemetry.NewNoOp(), h.logger, 4)
	report, err := inst.Install(ctx, g, "/project")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 2, report.Unfinished())
}

// Cancelling while a fetch is in flight stops scheduling, then waits for
// the running fetch without spinning. synctest.Wait only returns once every
// goroutine in the bubble is durably blocked.
func TestInstall_CancelledDrainsInFlight(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		g := graphOf(t, 3)

		release := make(chan struct{})
		h.store.EXPECT().Contains(gomock.Any()).Return(false)
		h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, meta domain.VersionMetadata) (*domain.StoreEntry, error) {
				<-release
				return entryFor(meta), nil
			}).Times(1)
		h.logger.EXPECT().Warn("install interrupted", "unfinished", 2, "packages", 3)
		// No Link expectation: a cancelled install must not link.

		ctx, cancel := context.WithCancel(context.Background())
		inst := installer.New(h.fetcher, h.store, h.linker, telemetry.NewNoOp(), h.logger, 1)

		var (
			report *installer.Report
			err    error
			done   atomic.Bool
		)
		go func() {
			report, err = inst.Install(ctx, g, "/project")
			done.Store(true)
		}()

		synctest.Wait()
		cancel()
		synctest.Wait()
		assert.False(t, done.Load(), "install returned before the in-flight fetch finished")

		close(release)
		synctest.Wait()
		require.True(t, done.Load())

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, report.Fetched)
		assert.Equal(t, domain.VertexStatusCompleted, report.Statuses[0])
		assert.Equal(t, domain.VertexStatusPending, report.Statuses[1])
		assert.Equal(t, domain.VertexStatusPending, report.Statuses[2])
	})
}
