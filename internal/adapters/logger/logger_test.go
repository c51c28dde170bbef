package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pie/internal/adapters/logger"
	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/zerr"
)

func newBuffered(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	l, ok := logger.New().(*logger.Logger)
	require.True(t, ok)

	var buf bytes.Buffer
	l.SetOutput(&buf)
	return l, &buf
}

func TestLogger_Info(t *testing.T) {
	l, buf := newBuffered(t)

	l.Info("resolved dependency graph", "packages", 3)

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "resolved dependency graph")
	assert.Contains(t, out, "packages=3")
}

func TestLogger_Warn(t *testing.T) {
	l, buf := newBuffered(t)

	l.Warn("ignoring lockfile")

	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "ignoring lockfile")
}

func TestLogger_Debug(t *testing.T) {
	l, buf := newBuffered(t)

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetVerbose(true)
	l.Debug("fetching tarball", "package", "left-pad@1.3.0")
	assert.Contains(t, buf.String(), "fetching tarball")
	assert.Contains(t, buf.String(), "left-pad@1.3.0")
}

func TestLogger_JSON(t *testing.T) {
	l, buf := newBuffered(t)
	l.SetJSON(true)

	l.Info("install complete", "nodes", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "install complete", entry["msg"])
	assert.InDelta(t, 2, entry["nodes"], 0)
}

func TestLogger_JSONError(t *testing.T) {
	l, buf := newBuffered(t)
	l.SetJSON(true)

	l.Error(zerr.Wrap(domain.ErrRegistryUnavailable, "fetching metadata"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "operation failed", entry["msg"])
	assert.Contains(t, entry["error"], "fetching metadata")
}

func TestLogger_ErrorNil(t *testing.T) {
	l, buf := newBuffered(t)

	l.Error(nil)

	assert.Empty(t, buf.String())
}

func TestLogger_ErrorChain(t *testing.T) {
	l, buf := newBuffered(t)

	err := zerr.Wrap(
		zerr.With(zerr.Wrap(domain.ErrUnsatisfiableRange, "no published version satisfies the constraint"), "package", "left-pad"),
		"resolving dependencies",
	)
	l.Error(err)

	out := buf.String()
	assert.Contains(t, out, "Error: resolving dependencies")
	assert.Contains(t, out, "Caused by:")
	assert.Contains(t, out, "→ no published version satisfies the constraint (package=left-pad)")
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: "Error: boom",
		},
		{
			name: "wrapped sentinel",
			err:  zerr.Wrap(errors.New("connection refused"), "fetching metadata"),
			want: "Error: fetching metadata\n\n  Caused by:\n    → connection refused",
		},
		{
			name: "metadata only link is skipped",
			err:  zerr.With(errors.New("disk full"), "path", "/tmp/x"),
			want: "Error: disk full",
		},
		{
			name: "multiline message",
			err:  zerr.Wrap(errors.New("inner"), "first\nsecond"),
			want: "Error: first\n       second\n\n  Caused by:\n    → inner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.FormatError(tt.err))
		})
	}
}

func TestNew(t *testing.T) {
	l := logger.New()
	require.NotNil(t, l)
	_, ok := l.(*logger.Logger)
	assert.True(t, ok)
}
