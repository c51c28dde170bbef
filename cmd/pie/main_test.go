package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pie/cmd/pie/commands"
	"go.trai.ch/pie/internal/app"
	"go.trai.ch/pie/internal/testutil/npmtest"
)

func TestRun(t *testing.T) {
	// Save original args
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
	}()

	t.Setenv("PIE_REGISTRY", "")
	t.Setenv("PIE_STORE_DIR", "")
	t.Setenv("PIE_CONCURRENCY", "")

	reg := npmtest.NewRegistry(t)
	reg.Publish(t, "left-pad", "1.0.0", nil)
	reg.Publish(t, "left-pad", "1.3.0", nil)

	tests := []struct {
		name         string
		args         []string
		expectedExit int
	}{
		{
			name:         "Install resolves and links",
			args:         []string{"install", "left-pad@^1.0.0"},
			expectedExit: commands.ExitOK,
		},
		{
			name:         "Install without specifiers or lockfile",
			args:         []string{"install"},
			expectedExit: commands.ExitUsage,
		},
		{
			name:         "Install with invalid range",
			args:         []string{"install", "left-pad@>="},
			expectedExit: commands.ExitUsage,
		},
		{
			name:         "Install unknown package",
			args:         []string{"install", "missing-pkg"},
			expectedExit: commands.ExitPackageNotFound,
		},
		{
			name:         "Install unsatisfiable range",
			args:         []string{"install", "left-pad@>=9.9.9"},
			expectedExit: commands.ExitUnsatisfiableRange,
		},
		{
			name:         "Frozen lockfile without lockfile",
			args:         []string{"install", "--frozen-lockfile", "left-pad"},
			expectedExit: commands.ExitLockfile,
		},
		{
			name:         "Version",
			args:         []string{"version"},
			expectedExit: commands.ExitOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			projectDir := t.TempDir()
			storeDir := filepath.Join(t.TempDir(), "store")

			args := append([]string{"pie"}, tt.args...)
			if tt.args[0] == "install" {
				args = append(args, "--dir", projectDir, "--registry", reg.URL(), "--store", storeDir)
			}
			os.Args = args

			exitCode := run(func(a *app.App) {
				a.WithHTTPClient(reg.Client())
			})
			assert.Equal(t, tt.expectedExit, exitCode)
		})
	}
}

func TestRun_InstallWritesProject(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
	}()

	t.Setenv("PIE_REGISTRY", "")
	t.Setenv("PIE_STORE_DIR", "")
	t.Setenv("PIE_CONCURRENCY", "")

	reg := npmtest.NewRegistry(t)
	reg.Publish(t, "left-pad", "1.3.0", nil)

	projectDir := t.TempDir()
	os.Args = []string{
		"pie", "install", "left-pad",
		"--dir", projectDir,
		"--registry", reg.URL(),
		"--store", filepath.Join(t.TempDir(), "store"),
	}

	exitCode := run(func(a *app.App) {
		a.WithHTTPClient(reg.Client())
	})
	require.Equal(t, commands.ExitOK, exitCode)

	assert.FileExists(t, filepath.Join(projectDir, "node_modules", "left-pad", "package.json"))
	assert.FileExists(t, filepath.Join(projectDir, "pie-lock.yaml"))
}
