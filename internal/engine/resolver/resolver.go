// Package resolver turns requested specifiers into a deduplicated resolution graph.
package resolver

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/core/ports"
	"go.trai.ch/pie/internal/core/semver"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel metadata requests when none is configured.
const DefaultConcurrency = 16

// Resolver expands specifiers breadth first against a registry.
type Resolver struct {
	registry    ports.RegistryClient
	logger      ports.Logger
	concurrency int
}

// New creates a new Resolver. A concurrency below one uses DefaultConcurrency.
func New(registry ports.RegistryClient, log ports.Logger, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Resolver{
		registry:    registry,
		logger:      log,
		concurrency: concurrency,
	}
}

// Resolve pins every specifier and all of their transitive dependencies to
// exact versions. Each (name, version) appears once in the returned graph and
// roots keep the order of specs. Registry metadata is requested at most once
// per name per call. Any failure aborts the pass and no graph is returned.
func (r *Resolver) Resolve(ctx context.Context, specs []domain.VersionSpecifier) (*domain.ResolutionGraph, error) {
	p := &pass{
		resolver: r,
		graph:    domain.NewResolutionGraph(),
		metadata: make(map[domain.PackageName]*packageInfo),
	}
	return p.run(ctx, specs)
}

// request is one specifier waiting to be pinned. Root requests carry their
// position among the requested specifiers; others carry the dependent node.
type request struct {
	spec      domain.VersionSpecifier
	from      domain.NodeID
	rootIndex int
}

func (q request) isRoot() bool {
	return q.rootIndex >= 0
}

// packageInfo is registry metadata with its version keys parsed once.
type packageInfo struct {
	meta     *domain.PackageMetadata
	versions []semver.Version
}

// pass owns the graph and metadata cache of a single Resolve call. Only the
// goroutine running run touches them.
type pass struct {
	resolver *Resolver
	graph    *domain.ResolutionGraph
	metadata map[domain.PackageName]*packageInfo
}

func (p *pass) run(ctx context.Context, specs []domain.VersionSpecifier) (*domain.ResolutionGraph, error) {
	wave := make([]request, 0, len(specs))
	for i, spec := range specs {
		wave = append(wave, request{spec: spec, rootIndex: i})
	}
	rootTargets := make([]domain.NodeID, len(specs))

	for depth := 0; len(wave) > 0; depth++ {
		p.resolver.logger.Debug("resolving wave", "depth", depth, "requests", len(wave))

		if err := p.prefetch(ctx, wave); err != nil {
			return nil, err
		}

		slices.SortStableFunc(wave, compareRequests)

		var next []request
		for _, req := range wave {
			id, created, err := p.pin(req)
			if err != nil {
				return nil, err
			}

			if req.isRoot() {
				rootTargets[req.rootIndex] = id
			} else if err := p.graph.AddEdge(req.from, domain.Edge{
				Name:       req.spec.Name,
				Constraint: req.spec.Constraint,
				Target:     id,
			}); err != nil {
				return nil, err
			}

			if created {
				node, _ := p.graph.Node(id)
				meta := p.metadata[node.Name].meta.Versions[node.Version]
				for _, dep := range meta.Dependencies {
					next = append(next, request{spec: dep, from: id, rootIndex: -1})
				}
			}
		}
		wave = next
	}

	for i, spec := range specs {
		if err := p.graph.AddRoot(spec, rootTargets[i]); err != nil {
			return nil, err
		}
	}
	return p.graph, nil
}

// prefetch loads metadata for every name in wave that is not cached yet.
// Requests run concurrently up to the configured limit and are awaited
// before the owner continues.
func (p *pass) prefetch(ctx context.Context, wave []request) error {
	var missing []domain.PackageName
	for _, req := range wave {
		if _, ok := p.metadata[req.spec.Name]; ok {
			continue
		}
		if !slices.Contains(missing, req.spec.Name) {
			missing = append(missing, req.spec.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)

	results := make([]*domain.PackageMetadata, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.resolver.concurrency)
	for i, name := range missing {
		g.Go(func() error {
			meta, err := p.resolver.registry.FetchPackageMetadata(gctx, name)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to fetch package metadata"), "package", name.String())
			}
			if meta == nil {
				return zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "registry returned no metadata"), "package", name.String())
			}
			results[i] = meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, name := range missing {
		p.metadata[name] = newPackageInfo(results[i])
	}
	return nil
}

func newPackageInfo(meta *domain.PackageMetadata) *packageInfo {
	info := &packageInfo{meta: meta}
	for raw := range meta.Versions {
		v, err := semver.Parse(raw)
		if err != nil {
			continue
		}
		info.versions = append(info.versions, v)
	}
	semver.Sort(info.versions)
	return info
}

// pin selects the version for req and returns its node, creating it when the
// (name, version) pair has not been seen in this pass.
func (p *pass) pin(req request) (domain.NodeID, bool, error) {
	info := p.metadata[req.spec.Name]

	version, err := selectVersion(info, req.spec)
	if err != nil {
		return 0, false, err
	}

	meta, ok := info.meta.Versions[version]
	if !ok {
		return 0, false, unsatisfiable(req.spec)
	}
	id, created := p.graph.AddNode(meta)
	return id, created, nil
}

// selectVersion implements the pinning policy: a dist-tag wins when it points
// at a published version, "latest" without a tag means any version, and
// everything else is a range whose highest satisfying version is chosen.
func selectVersion(info *packageInfo, spec domain.VersionSpecifier) (string, error) {
	constraint := spec.Constraint

	if tagged, ok := info.meta.DistTags[constraint]; ok {
		if _, published := info.meta.Versions[tagged]; published {
			return tagged, nil
		}
		return "", unsatisfiable(spec)
	}
	if constraint == domain.LatestTag {
		constraint = "*"
	}

	rng, err := semver.ParseRange(constraint)
	if err != nil {
		if IsTagName(constraint) {
			return "", unsatisfiable(spec)
		}
		return "", zerr.With(zerr.Wrap(err, "unusable constraint"), "package", spec.Name.String())
	}

	best, ok := semver.MaxSatisfying(info.versions, rng)
	if !ok {
		return "", unsatisfiable(spec)
	}
	return best.String(), nil
}

func unsatisfiable(spec domain.VersionSpecifier) error {
	return zerr.With(
		zerr.With(zerr.Wrap(domain.ErrUnsatisfiableRange, "no published version satisfies the constraint"), "package", spec.Name.String()),
		"range", spec.Constraint,
	)
}

func compareRequests(a, b request) int {
	return cmp.Or(
		strings.Compare(string(a.spec.Name), string(b.spec.Name)),
		strings.Compare(a.spec.Constraint, b.spec.Constraint),
		cmp.Compare(a.rootIndex, b.rootIndex),
		cmp.Compare(a.from, b.from),
	)
}

// ValidateConstraint reports whether constraint can ever be resolved: it is
// either a range expression or a plausible distribution tag.
func ValidateConstraint(constraint string) error {
	_, err := semver.ParseRange(constraint)
	if err == nil || IsTagName(constraint) {
		return nil
	}
	return err
}

// IsTagName reports whether s may name a distribution tag. Tags never parse
// as ranges, so anything starting like a version or containing range
// punctuation is not a tag.
func IsTagName(s string) bool {
	if s == "" {
		return false
	}
	if s[0] >= '0' && s[0] <= '9' {
		return false
	}
	if (s[0] == 'v' || s[0] == 'V') && len(s) > 1 && s[1] >= '0' && s[1] <= '9' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
