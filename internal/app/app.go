// Package app implements the application layer for pie.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"go.trai.ch/pie/internal/adapters/cas"
	"go.trai.ch/pie/internal/adapters/config"
	"go.trai.ch/pie/internal/adapters/fetcher"
	"go.trai.ch/pie/internal/adapters/registry"
	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/core/ports"
	"go.trai.ch/pie/internal/engine/installer"
	"go.trai.ch/pie/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	lockfiles    ports.LockfileManager
	linker       ports.Linker
	hasher       ports.TreeHasher
	telemetry    ports.Telemetry
	logger       ports.Logger
	httpClient   *http.Client
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	lockfiles ports.LockfileManager,
	linker ports.Linker,
	hasher ports.TreeHasher,
	telemetry ports.Telemetry,
	log ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		lockfiles:    lockfiles,
		linker:       linker,
		hasher:       hasher,
		telemetry:    telemetry,
		logger:       log,
	}
}

// WithHTTPClient sets the HTTP client used for registry and tarball requests.
// This is primarily used for testing against a local registry.
func (a *App) WithHTTPClient(hc *http.Client) *App {
	a.httpClient = hc
	return a
}

// InstallOptions configuration for the Install method. Zero values fall back
// to the loaded configuration.
type InstallOptions struct {
	ProjectDir     string
	Registry       string
	StoreDir       string
	Concurrency    int
	FrozenLockfile bool
}

// InstallResult describes a successful install.
type InstallResult struct {
	Graph        *domain.ResolutionGraph
	LockReused   bool
	LockfilePath string
	Nodes        int
	Fetched      int
	Cached       int
	// Fingerprint is a digest of the resulting node_modules tree.
	Fingerprint string
}

// Install resolves, fetches, and links the requested specifiers into the
// project. Without specifiers the lockfile's roots are installed. The new
// lockfile is staged before the project tree is touched and renamed into
// place once linking succeeded, so a failed install leaves the project as
// it was.
//
//nolint:cyclop // orchestration function
func (a *App) Install(ctx context.Context, rawSpecs []string, opts InstallOptions) (*InstallResult, error) {
	// 1. Parse specifiers before any I/O
	specs, err := parseSpecifiers(rawSpecs)
	if err != nil {
		return nil, err
	}

	// 2. Load configuration
	projectDir, cfg, err := a.loadConfig(opts)
	if err != nil {
		return nil, err
	}

	// 3. Load the lockfile
	lockPath := filepath.Join(projectDir, cfg.LockfileName)
	record, err := a.lockfiles.Load(lockPath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load lockfile")
	}

	if len(specs) == 0 {
		if record == nil {
			return nil, domain.ErrNoSpecifiers
		}
		specs = record.Specifiers()
	}

	// 4. Reuse the locked graph or resolve a new one
	graph, reused, err := a.plan(ctx, cfg, record, specs, opts.FrozenLockfile)
	if err != nil {
		return nil, err
	}

	// 5. Stage the lockfile
	var staged ports.StagedLockfile
	if !reused {
		staged, err = a.lockfiles.Stage(lockPath, graph)
		if err != nil {
			return nil, err
		}
		defer staged.Discard()
	}

	// 6. Fetch and link
	report, err := a.install(ctx, cfg, graph, projectDir)
	if err != nil {
		return nil, zerr.Wrap(err, "install failed")
	}

	// 7. Commit the lockfile
	if staged != nil {
		if err := staged.Commit(); err != nil {
			return nil, err
		}
	}

	fingerprint, err := a.hasher.HashTree(domain.ModulesPath(projectDir))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to fingerprint node_modules")
	}

	a.logger.Info("installed packages",
		"packages", graph.Len(),
		"fetched", report.Fetched,
		"cached", report.Cached,
		"lockfile_reused", reused,
	)

	return &InstallResult{
		Graph:        graph,
		LockReused:   reused,
		LockfilePath: lockPath,
		Nodes:        graph.Len(),
		Fetched:      report.Fetched,
		Cached:       report.Cached,
		Fingerprint:  fingerprint,
	}, nil
}

func parseSpecifiers(raw []string) ([]domain.VersionSpecifier, error) {
	specs := make([]domain.VersionSpecifier, 0, len(raw))
	for _, r := range raw {
		spec, err := domain.ParseSpecifier(r)
		if err != nil {
			return nil, err
		}
		if err := resolver.ValidateConstraint(spec.Constraint); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "invalid constraint"), "specifier", r)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (a *App) loadConfig(opts InstallOptions) (string, *domain.Config, error) {
	projectDir := opts.ProjectDir
	if projectDir == "" {
		projectDir = "."
	}
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return "", nil, zerr.Wrap(err, "failed to resolve project directory")
	}

	cfg, err := a.configLoader.Load(projectDir)
	if err != nil {
		return "", nil, zerr.Wrap(err, "failed to load configuration")
	}

	if opts.Registry != "" {
		cfg.RegistryURL = opts.Registry
	}
	if opts.StoreDir != "" {
		cfg.StoreDir = opts.StoreDir
	}
	if opts.Concurrency != 0 {
		cfg.Concurrency = opts.Concurrency
	}
	if err := config.Validate(cfg); err != nil {
		return "", nil, err
	}
	return projectDir, cfg, nil
}

func (a *App) plan(
	ctx context.Context,
	cfg *domain.Config,
	record *domain.LockRecord,
	specs []domain.VersionSpecifier,
	frozen bool,
) (*domain.ResolutionGraph, bool, error) {
	if a.lockfiles.Matches(record, specs) {
		graph, err := record.Graph()
		if err != nil {
			return nil, false, err
		}
		a.logger.Debug("reusing lockfile", "packages", graph.Len())
		return graph, true, nil
	}

	if frozen {
		return nil, false, domain.ErrLockfileOutOfDate
	}

	opts := []registry.Option{
		registry.WithBaseURL(cfg.RegistryURL),
		registry.WithRetry(cfg.Retries, cfg.Backoff),
		registry.WithAttemptTimeout(cfg.Timeout),
	}
	if a.httpClient != nil {
		opts = append(opts, registry.WithHTTPClient(a.httpClient))
	}

	graph, err := resolver.New(registry.New(opts...), a.logger, cfg.Concurrency).Resolve(ctx, specs)
	if err != nil {
		return nil, false, zerr.Wrap(err, "failed to resolve dependencies")
	}
	return graph, false, nil
}

func (a *App) install(
	ctx context.Context,
	cfg *domain.Config,
	graph *domain.ResolutionGraph,
	projectDir string,
) (*installer.Report, error) {
	store, err := cas.NewStore(cfg.StoreDir)
	if err != nil {
		return nil, err
	}

	opts := []fetcher.Option{
		fetcher.WithRetry(cfg.Retries, cfg.Backoff),
		fetcher.WithAttemptTimeout(cfg.Timeout),
	}
	if a.httpClient != nil {
		opts = append(opts, fetcher.WithHTTPClient(a.httpClient))
	}

	inst := installer.New(fetcher.New(store, opts...), store, a.linker, a.telemetry, a.logger, cfg.Concurrency)
	return inst.Install(ctx, graph, projectDir)
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	ProjectDir string
	StoreDir   string
	Store      bool
	Modules    bool
}

// Clean removes the content store and the project's node_modules based on
// the provided options.
func (a *App) Clean(_ context.Context, opts CleanOptions) error {
	projectDir, cfg, err := a.loadConfig(InstallOptions{ProjectDir: opts.ProjectDir, StoreDir: opts.StoreDir})
	if err != nil {
		return err
	}

	var errs error
	remove := func(path, name string) {
		a.logger.Info("removing "+name, "path", path)
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, "failed to remove "+name), "path", path))
		}
	}

	if opts.Modules {
		remove(domain.ModulesPath(projectDir), "node_modules")
	}
	if opts.Store {
		remove(cfg.StoreDir, "content store")
	}
	return errs
}
