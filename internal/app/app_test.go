package app_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pie/internal/adapters/config"
	"go.trai.ch/pie/internal/adapters/fs"
	"go.trai.ch/pie/internal/adapters/linker"
	"go.trai.ch/pie/internal/adapters/lockfile"
	"go.trai.ch/pie/internal/adapters/logger"
	"go.trai.ch/pie/internal/adapters/telemetry"
	"go.trai.ch/pie/internal/app"
	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/core/ports"
	"go.trai.ch/pie/internal/core/ports/mocks"
	"go.trai.ch/pie/internal/testutil/npmtest"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

type env struct {
	registry *npmtest.Registry
	app      *app.App
	project  string
	store    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithLockfiles(t, nil)
}

// newEnvWithLockfiles uses lockfiles instead of the YAML manager when non-nil.
func newEnvWithLockfiles(t *testing.T, lockfiles ports.LockfileManager) *env {
	t.Helper()
	t.Setenv(config.EnvRegistry, "")
	t.Setenv(config.EnvStoreDir, "")
	t.Setenv(config.EnvConcurrency, "")

	log, ok := logger.New().(*logger.Logger)
	require.True(t, ok)
	log.SetOutput(io.Discard)

	reg := npmtest.NewRegistry(t)
	project := t.TempDir()

	// Keep retries fast.
	require.NoError(t, os.WriteFile(filepath.Join(project, domain.ConfigFileName), []byte("network:\n  backoff: 1ms\n  timeout: 5s\n"), 0o600))

	if lockfiles == nil {
		lockfiles = lockfile.NewManager(log)
	}

	a := app.New(
		config.NewLoader(log),
		lockfiles,
		linker.New(log),
		fs.NewHasher(fs.NewWalker()),
		telemetry.NewNoOp(),
		log,
	).WithHTTPClient(reg.Client())

	return &env{
		registry: reg,
		app:      a,
		project:  project,
		store:    filepath.Join(t.TempDir(), "store"),
	}
}

func (e *env) options() app.InstallOptions {
	return app.InstallOptions{
		ProjectDir:  e.project,
		Registry:    e.registry.URL(),
		StoreDir:    e.store,
		Concurrency: 4,
	}
}

func (e *env) install(t *testing.T, specs ...string) (*app.InstallResult, error) {
	t.Helper()
	return e.app.Install(context.Background(), specs, e.options())
}

func (e *env) publishLeftPad(t *testing.T) {
	t.Helper()
	for _, v := range []string{"1.0.0", "1.1.0", "1.3.0"} {
		e.registry.Publish(t, "left-pad", v, nil)
	}
}

func (e *env) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.project, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (e *env) lockfile(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.project, domain.LockFileName))
	require.NoError(t, err)
	return data
}

func (e *env) fingerprint(t *testing.T) string {
	t.Helper()
	sum, err := fs.NewHasher(fs.NewWalker()).HashTree(filepath.Join(e.project, "node_modules"))
	require.NoError(t, err)
	return sum
}

func TestInstall_HighestSatisfyingVersion(t *testing.T) {
	e := newEnv(t)
	e.publishLeftPad(t)

	res, err := e.install(t, "left-pad@^1.0.0")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Nodes)
	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 0, res.Cached)
	assert.False(t, res.LockReused)
	assert.NotEmpty(t, res.Fingerprint)
	assert.Equal(t, "module.exports = 'left-pad@1.3.0';\n", e.read(t, "node_modules/left-pad/index.js"))
	assert.Contains(t, string(e.lockfile(t)), "left-pad@1.3.0")
}

func TestInstall_IdempotentReinstall(t *testing.T) {
	e := newEnv(t)
	e.publishLeftPad(t)
	e.registry.Publish(t, "dep", "1.0.0", nil)
	e.registry.Publish(t, "app", "1.0.0", map[string]string{"dep": "^1.0.0", "left-pad": "~1.1.0"})

	first, err := e.install(t, "app", "left-pad@^1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 4, first.Nodes)
	lock := e.lockfile(t)
	requests := e.registry.Requests()

	second, err := e.install(t, "app", "left-pad@^1.0.0")
	require.NoError(t, err)

	assert.True(t, second.LockReused)
	assert.Equal(t, 0, second.Fetched)
	assert.Equal(t, 4, second.Cached)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, requests, e.registry.Requests(), "reinstall must not touch the network")
	assert.Equal(t, lock, e.lockfile(t))
}

func TestInstall_FromLockfileWithoutSpecifiers(t *testing.T) {
	e := newEnv(t)
	e.publishLeftPad(t)

	first, err := e.install(t, "left-pad@^1.0.0")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(e.project, "node_modules")))
	requests := e.registry.Requests()

	res, err := e.install(t)
	require.NoError(t, err)

	assert.True(t, res.LockReused)
	assert.Equal(t, first.Fingerprint, res.Fingerprint)
	assert.Equal(t, requests, e.registry.Requests())
}

func TestInstall_NoSpecifiers(t *testing.T) {
	e := newEnv(t)

	_, err := e.install(t)
	require.ErrorIs(t, err, domain.ErrNoSpecifiers)
	assert.Zero(t, e.registry.Requests())
}

func TestInstall_InvalidInputFailsBeforeIO(t *testing.T) {
	tests := []struct {
		spec string
		want error
	}{
		{spec: "left-pad@>=", want: domain.ErrInvalidRangeSyntax},
		{spec: "left-pad@1.2.3.4", want: domain.ErrInvalidRangeSyntax},
		{spec: "@scope", want: domain.ErrInvalidSpecifier},
		{spec: "Bad Name", want: domain.ErrInvalidSpecifier},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			e := newEnv(t)

			_, err := e.install(t, tt.spec)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, e.registry.Requests())
			_, statErr := os.Stat(filepath.Join(e.project, "node_modules"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestInstall_UnsatisfiableLeavesProjectUntouched(t *testing.T) {
	e := newEnv(t)
	e.publishLeftPad(t)

	_, err := e.install(t, "left-pad@^1.0.0")
	require.NoError(t, err)
	before := e.fingerprint(t)
	lock := e.lockfile(t)

	_, err = e.install(t, "left-pad@>=9.9.9")
	require.ErrorIs(t, err, domain.ErrUnsatisfiableRange)

	assert.Equal(t, before, e.fingerprint(t))
	assert.Equal(t, lock, e.lockfile(t))
}

func TestInstall_IntegrityViolation(t *testing.T) {
	e := newEnv(t)
	e.publishLeftPad(t)
	e.registry.Corrupt("left-pad", "1.3.0")

	_, err := e.install(t, "left-pad@^1.0.0")
	require.ErrorIs(t, err, domain.ErrIntegrityViolation)

	_, statErr := os.Stat(filepath.Join(e.project, "node_modules"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(e.project, domain.LockFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestInstall_LockfileStageFailureLeavesProjectUntouched(t *testing.T) {
	locks := mocks.NewMockLockfileManager(gomock.NewController(t))
	e := newEnvWithLockfiles(t, locks)
	e.publishLeftPad(t)
	lockPath := filepath.Join(e.project, domain.LockFileName)

	locks.EXPECT().Load(lockPath).Return(nil, nil)
	locks.EXPECT().Matches(gomock.Nil(), gomock.Any()).Return(false)
	locks.EXPECT().Stage(lockPath, gomock.Any()).Return(nil, zerr.Wrap(domain.ErrLockfileWriteFailed, "disk full"))

	_, err := e.install(t, "left-pad@^1.0.0")
	require.ErrorIs(t, err, domain.ErrLockfileWriteFailed)
	assert.NoDirExists(t, filepath.Join(e.project, "node_modules"))
	assert.Zero(t, e.registry.TarballRequests())
}

func TestInstall_LockfileCommitFailureDiscardsStagedFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	locks := mocks.NewMockLockfileManager(ctrl)
	staged := mocks.NewMockStagedLockfile(ctrl)
	e := newEnvWithLockfiles(t, locks)
	e.publishLeftPad(t)
	lockPath := filepath.Join(e.project, domain.LockFileName)

	locks.EXPECT().Load(lockPath).Return(nil, nil)
	locks.EXPECT().Matches(gomock.Nil(), gomock.Any()).Return(false)
	locks.EXPECT().Stage(lockPath, gomock.Any()).Return(staged, nil)
	gomock.InOrder(
		staged.EXPECT().Commit().Return(zerr.Wrap(domain.ErrLockfileWriteFailed, "rename failed")),
		staged.EXPECT().Discard(),
	)

	_, err := e.install(t, "left-pad@^1.0.0")
	require.ErrorIs(t, err, domain.ErrLockfileWriteFailed)
}

func TestInstall_FailedInstallDiscardsStagedLockfile(t *testing.T) {
	e := newEnv(t)
	e.registry.Publish(t, "tampered", "1.0.0", nil)
	e.registry.Corrupt("tampered", "1.0.0")

	_, err := e.install(t, "tampered@1.0.0")
	require.ErrorIs(t, err, domain.ErrIntegrityViolation)

	entries, err := os.ReadDir(e.project)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".pie-lock-", "staged lockfile left behind")
	}
	assert.NoFileExists(t, filepath.Join(e.project, domain.LockFileName))
}

func TestInstall_FrozenLockfile(t *testing.T) {
	e := newEnv(t)
	e.publishLeftPad(t)

	opts := e.options()
	opts.FrozenLockfile = true

	_, err := e.app.Install(context.Background(), []string{"left-pad@^1.0.0"}, opts)
	require.ErrorIs(t, err, domain.ErrLockfileOutOfDate, "frozen install without a lockfile")

	_, err = e.install(t, "left-pad@^1.0.0")
	require.NoError(t, err)

	res, err := e.app.Install(context.Background(), []string{"left-pad@^1.0.0"}, opts)
	require.NoError(t, err)
	assert.True(t, res.LockReused)

	_, err = e.app.Install(context.Background(), []string{"left-pad@^1.1.0"}, opts)
	require.ErrorIs(t, err, domain.ErrLockfileOutOfDate)
}

func TestInstall_ConflictingMajorsAreIsolated(t *testing.T) {
	e := newEnv(t)
	e.registry.Publish(t, "lodash", "3.10.1", nil)
	e.registry.Publish(t, "lodash", "4.17.21", nil)
	e.registry.Publish(t, "app", "1.0.0", map[string]string{"lodash": "^3.0.0"})

	res, err := e.install(t, "app@^1.0.0", "lodash@^4.0.0")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Nodes)

	assert.Equal(t, "module.exports = 'lodash@4.17.21';\n", e.read(t, "node_modules/lodash/index.js"))
	assert.Equal(t, "module.exports = 'lodash@3.10.1';\n",
		e.read(t, "node_modules/.pie/app@1.0.0/node_modules/lodash/index.js"))
}

func TestInstall_ScopedPackage(t *testing.T) {
	e := newEnv(t)
	e.registry.Publish(t, "@types/node", "20.1.0", nil)

	_, err := e.install(t, "@types/node@^20.0.0")
	require.NoError(t, err)
	assert.Equal(t, "module.exports = '@types/node@20.1.0';\n", e.read(t, "node_modules/@types/node/index.js"))
}

func TestInstall_RetriesTransientFailures(t *testing.T) {
	e := newEnv(t)
	e.publishLeftPad(t)
	e.registry.FailNext("/left-pad", 2)
	e.registry.FailNext("/-/tarballs/", 2)

	_, err := e.install(t, "left-pad")
	require.NoError(t, err)
	assert.Equal(t, "module.exports = 'left-pad@1.3.0';\n", e.read(t, "node_modules/left-pad/index.js"))
}

func TestInstall_PackageNotFound(t *testing.T) {
	e := newEnv(t)

	_, err := e.install(t, "does-not-exist")
	require.ErrorIs(t, err, domain.ErrPackageNotFound)
}

func TestClean(t *testing.T) {
	e := newEnv(t)
	e.publishLeftPad(t)

	_, err := e.install(t, "left-pad")
	require.NoError(t, err)

	err = e.app.Clean(context.Background(), app.CleanOptions{
		ProjectDir: e.project,
		StoreDir:   e.store,
		Store:      true,
		Modules:    true,
	})
	require.NoError(t, err)

	for _, path := range []string{filepath.Join(e.project, "node_modules"), e.store} {
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), path)
	}
	// The lockfile survives so the next install is reproducible.
	assert.NotEmpty(t, e.lockfile(t))
}
