// Package lockfile implements the LockfileManager port with a YAML lockfile.
package lockfile

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Manager implements ports.LockfileManager.
type Manager struct {
	logger ports.Logger
}

// NewManager creates a Manager that reports ignored lockfiles to logger.
func NewManager(logger ports.Logger) *Manager {
	return &Manager{logger: logger}
}

// Load implements ports.LockfileManager.
func (m *Manager) Load(path string) (*domain.LockRecord, error) {
	//nolint:gosec // path is the project lockfile chosen by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read lockfile"), "path", path)
	}

	var h header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, zerr.With(domain.WithCause(domain.ErrLockfileMalformed, err), "path", path)
	}
	if h.LockfileVersion != domain.LockSchemaVersion {
		m.logger.Warn("ignoring lockfile with unsupported schema version",
			"path", path, "version", h.LockfileVersion, "supported", domain.LockSchemaVersion)
		return nil, nil
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, zerr.With(domain.WithCause(domain.ErrLockfileMalformed, err), "path", path)
	}

	rec, err := doc.toRecord()
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return rec, nil
}

// Stage implements ports.LockfileManager.
func (m *Manager) Stage(path string, graph *domain.ResolutionGraph) (ports.StagedLockfile, error) {
	doc := fromRecord(domain.NewLockRecord(graph))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, zerr.With(domain.WithCause(domain.ErrLockfileWriteFailed, err), "path", path)
	}
	if err := enc.Close(); err != nil {
		return nil, zerr.With(domain.WithCause(domain.ErrLockfileWriteFailed, err), "path", path)
	}

	tmp, err := writeTemp(path, buf.Bytes())
	if err != nil {
		return nil, zerr.With(domain.WithCause(domain.ErrLockfileWriteFailed, err), "path", path)
	}
	return &stagedFile{tmp: tmp, path: path}, nil
}

// Matches implements ports.LockfileManager.
func (m *Manager) Matches(record *domain.LockRecord, specs []domain.VersionSpecifier) bool {
	return record.Matches(specs)
}

// stagedFile is a synced temp file in the lockfile's directory, so the
// final rename stays on one file system.
type stagedFile struct {
	tmp  string
	path string
	done bool
}

func (s *stagedFile) Commit() error {
	if s.done {
		return nil
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		return zerr.With(domain.WithCause(domain.ErrLockfileWriteFailed, err), "path", s.path)
	}
	s.done = true
	return nil
}

func (s *stagedFile) Discard() {
	if s.done {
		return
	}
	_ = os.Remove(s.tmp)
	s.done = true
}

// writeTemp writes data to a synced temp file next to path and returns its name.
func writeTemp(path string, data []byte) (name string, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return "", err
	}

	tmpFile, err := os.CreateTemp(dir, ".pie-lock-*.yaml")
	if err != nil {
		return "", err
	}
	tmpName := tmpFile.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return "", err
	}
	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return "", err
	}
	if err = tmpFile.Close(); err != nil {
		return "", err
	}
	if err = os.Chmod(tmpName, domain.FilePerm); err != nil {
		return "", err
	}
	return tmpName, nil
}
