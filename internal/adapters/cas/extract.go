package cas

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/zerr"
)

// extract unpacks a gzip compressed tarball into dir. The first path
// component of every entry (npm uses "package/") is dropped. Links and
// device nodes are skipped.
func extract(ctx context.Context, r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return domain.WithCause(domain.ErrExtractionFailed, err)
	}
	defer func() {
		_ = gz.Close()
	}()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return domain.WithCause(domain.ErrExtractionFailed, err)
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return domain.WithCause(domain.ErrExtractionFailed, err)
		}

		rel, ok, err := stripComponent(hdr.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		dest := filepath.Join(dir, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, domain.DirPerm); err != nil {
				return domain.WithCause(domain.ErrExtractionFailed, err)
			}
		case tar.TypeReg:
			if err := writeFile(dest, tr, hdr.FileInfo().Mode()); err != nil {
				return zerr.With(domain.WithCause(domain.ErrExtractionFailed, err), "entry", hdr.Name)
			}
		default:
			// Symlinks, hard links, devices, and pax records are not materialized.
		}
	}
}

// stripComponent validates name and removes its first component. It reports
// false for the top-level directory itself.
func stripComponent(name string) (string, bool, error) {
	slashed := strings.ReplaceAll(name, "\\", "/")
	if path.IsAbs(slashed) {
		return "", false, zerr.With(zerr.Wrap(domain.ErrExtractionFailed, "absolute path in archive"), "entry", name)
	}

	clean := path.Clean(slashed)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false, zerr.With(zerr.Wrap(domain.ErrExtractionFailed, "path escapes package root"), "entry", name)
	}

	_, rest, found := strings.Cut(clean, "/")
	if !found || rest == "" {
		return "", false, nil
	}
	return filepath.FromSlash(rest), true, nil
}

func writeFile(dest string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), domain.DirPerm); err != nil {
		return err
	}

	perm := os.FileMode(domain.FilePerm)
	if mode&0o111 != 0 {
		perm = domain.ExecFilePerm
	}

	//nolint:gosec // dest is confined to the staging directory by stripComponent
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// OpenFile honours the umask; the store keeps exact modes.
	return os.Chmod(dest, perm)
}
