// Package config provides the configuration loader for pie.
package config

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the configuration file.
const (
	EnvRegistry    = "PIE_REGISTRY"
	EnvStoreDir    = "PIE_STORE_DIR"
	EnvConcurrency = "PIE_CONCURRENCY"
)

// Loader implements ports.ConfigLoader using an optional YAML file.
type Loader struct {
	Logger   ports.Logger
	Filename string
}

// NewLoader creates a new configuration loader.
func NewLoader(log ports.Logger) *Loader {
	return &Loader{
		Logger:   log,
		Filename: domain.ConfigFileName,
	}
}

// Load builds the effective configuration for cwd. Defaults are overlaid by the
// nearest configuration file found from cwd upwards, then by the environment.
func (l *Loader) Load(cwd string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()

	path, err := l.findConfig(cwd)
	if err != nil {
		return nil, err
	}
	if path != "" {
		l.Logger.Debug("loading configuration", "path", path)
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfig returns the path of the nearest configuration file, or "" when
// no directory between cwd and the filesystem root holds one.
func (l *Loader) findConfig(cwd string) (string, error) {
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve working directory")
	}

	for {
		candidate := filepath.Join(dir, l.Filename)
		info, statErr := os.Stat(candidate)
		if statErr == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func applyFile(cfg *domain.Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is discovered from the working directory
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to read config file"), "path", path)
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return zerr.With(domain.WithCause(domain.ErrConfigInvalid, err), "path", path)
	}

	if doc.Registry != nil {
		cfg.RegistryURL = *doc.Registry
	}
	if doc.Store != nil {
		cfg.StoreDir = resolvePath(filepath.Dir(path), *doc.Store)
	}
	if doc.Concurrency != nil {
		cfg.Concurrency = *doc.Concurrency
	}
	if doc.Lockfile != nil {
		cfg.LockfileName = *doc.Lockfile
	}
	if doc.Network != nil {
		if err := applyNetwork(cfg, doc.Network); err != nil {
			return zerr.With(err, "path", path)
		}
	}
	return nil
}

func applyNetwork(cfg *domain.Config, n *NetworkDTO) error {
	if n.Retries != nil {
		cfg.Retries = *n.Retries
	}
	if n.Backoff != nil {
		d, err := time.ParseDuration(*n.Backoff)
		if err != nil {
			return zerr.With(domain.WithCause(domain.ErrConfigInvalid, err), "field", "network.backoff")
		}
		cfg.Backoff = d
	}
	if n.Timeout != nil {
		d, err := time.ParseDuration(*n.Timeout)
		if err != nil {
			return zerr.With(domain.WithCause(domain.ErrConfigInvalid, err), "field", "network.timeout")
		}
		cfg.Timeout = d
	}
	return nil
}

func applyEnv(cfg *domain.Config) error {
	if v, ok := os.LookupEnv(EnvRegistry); ok && v != "" {
		cfg.RegistryURL = v
	}
	if v, ok := os.LookupEnv(EnvStoreDir); ok && v != "" {
		cfg.StoreDir = v
	}
	if v, ok := os.LookupEnv(EnvConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return zerr.With(domain.WithCause(domain.ErrConfigInvalid, err), "env", EnvConcurrency)
		}
		cfg.Concurrency = n
	}
	return nil
}

// Validate checks that cfg holds usable values. Command line overrides are
// applied after Load, so callers validate again once they are merged.
func Validate(cfg *domain.Config) error {
	u, err := url.Parse(cfg.RegistryURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("registry", cfg.RegistryURL)
	}
	if strings.TrimSpace(cfg.StoreDir) == "" {
		return invalid("store", cfg.StoreDir)
	}
	if cfg.Concurrency < 1 {
		return invalid("concurrency", cfg.Concurrency)
	}
	if cfg.LockfileName == "" || filepath.Base(cfg.LockfileName) != cfg.LockfileName {
		return invalid("lockfile", cfg.LockfileName)
	}
	if cfg.Retries < 1 {
		return invalid("network.retries", cfg.Retries)
	}
	if cfg.Backoff < 0 {
		return invalid("network.backoff", cfg.Backoff)
	}
	if cfg.Timeout <= 0 {
		return invalid("network.timeout", cfg.Timeout)
	}
	return nil
}

func invalid(field string, value any) error {
	return zerr.With(zerr.With(zerr.Wrap(domain.ErrConfigInvalid, "value out of range"), "field", field), "value", value)
}

// resolvePath interprets a relative store path against the directory of the
// configuration file that named it. A leading ~ expands to the home directory.
func resolvePath(base, p string) string {
	if rest, ok := strings.CutPrefix(p, "~"); ok && (rest == "" || rest[0] == '/' || rest[0] == filepath.Separator) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	if filepath.IsAbs(p) || p == "" {
		return p
	}
	return filepath.Join(base, p)
}
