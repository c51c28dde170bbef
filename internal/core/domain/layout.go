package domain

import (
	"os"
	"path/filepath"
)

const (
	// AppDirName is the name of the per-user directory under the user cache directory.
	AppDirName = "pie"

	// StoreDirName is the name of the content addressable store directory.
	StoreDirName = "store"

	// StoreLayoutVersion names the on-disk layout generation inside the store.
	StoreLayoutVersion = "v1"

	// StoreTempDirName is the staging directory inside the store root.
	StoreTempDirName = "tmp"

	// ModulesDirName is the name of the project dependency directory.
	ModulesDirName = "node_modules"

	// VirtualStoreDirName is the directory inside node_modules that holds one folder per resolved package.
	VirtualStoreDirName = ".pie"

	// ConfigFileName is the name of the optional project configuration file.
	ConfigFileName = ".pie.yaml"

	// LockFileName is the default lockfile name.
	LockFileName = "pie-lock.yaml"

	// DefaultRegistryURL is the public npm registry.
	DefaultRegistryURL = "https://registry.npmjs.org"

	// DirPerm is the default permission for directories (rwxr-xr-x).
	DirPerm = 0o755

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// ExecFilePerm is the permission for files that carried an executable bit (rwxr-xr-x).
	ExecFilePerm = 0o755
)

// DefaultStorePath returns the default content store location.
// It joins the user cache directory, pie, and store. When no cache directory
// is known it falls back to a .pie directory under the working directory.
func DefaultStorePath() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		return filepath.Join(VirtualStoreDirName, StoreDirName)
	}
	return filepath.Join(base, AppDirName, StoreDirName)
}

// ModulesPath returns the dependency directory of the given project.
func ModulesPath(projectDir string) string {
	return filepath.Join(projectDir, ModulesDirName)
}
