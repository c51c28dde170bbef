package cas_test

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"go.trai.ch/pie/internal/adapters/cas"
	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/testutil/npmtest"
)

func newStore(t *testing.T) *cas.Store {
	t.Helper()
	store, err := cas.NewStore(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

// rawTarball builds an archive from headers verbatim, for entries npmtest.Tarball refuses to produce.
func rawTarball(t *testing.T, headers ...*tar.Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, hdr := range headers {
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader failed: %v", err)
		}
		if hdr.Size > 0 {
			if _, err := tw.Write(bytes.Repeat([]byte("x"), int(hdr.Size))); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func assertStagingEmpty(t *testing.T, store *cas.Store) {
	t.Helper()
	entries, err := os.ReadDir(store.TempDir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty staging directory, found %d entries", len(entries))
	}
}

func TestStore_PutAndGet(t *testing.T) {
	store := newStore(t)
	data := npmtest.Tarball(t,
		npmtest.File{Name: "package.json", Body: `{"name":"a"}`},
		npmtest.File{Name: "lib/index.js", Body: "exports.a = 1;\n"},
		npmtest.File{Name: "bin/cli.js", Body: "#!/usr/bin/env node\n", Executable: true},
	)
	integrity := npmtest.Integrity(data)

	if store.Contains(integrity) {
		t.Fatal("empty store reports entry")
	}

	entry, err := store.Put(context.Background(), integrity, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	hex := integrity.Hex()
	wantPath := filepath.Join(store.Root(), "v1", "sha512", hex[:2], hex[2:])
	if entry.Path != wantPath {
		t.Errorf("expected entry path %q, got %q", wantPath, entry.Path)
	}

	body, err := os.ReadFile(filepath.Join(entry.Path, "lib", "index.js"))
	if err != nil {
		t.Fatalf("expected stripped file: %v", err)
	}
	if string(body) != "exports.a = 1;\n" {
		t.Errorf("unexpected content %q", body)
	}

	info, err := os.Stat(filepath.Join(entry.Path, "bin", "cli.js"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("expected executable mode, got %v", info.Mode().Perm())
	}
	info, err = os.Stat(filepath.Join(entry.Path, "package.json"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("expected 0644, got %v", info.Mode().Perm())
	}

	got, err := store.Get(integrity)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Path != entry.Path {
		t.Fatalf("Get returned %+v", got)
	}
	if !store.Contains(integrity) {
		t.Error("expected Contains after Put")
	}
	assertStagingEmpty(t, store)
}

func TestStore_GetMissing(t *testing.T) {
	store := newStore(t)
	got, err := store.Get(npmtest.Integrity([]byte("nothing")))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil entry, got %+v", got)
	}
}

func TestStore_PutIsIdempotent(t *testing.T) {
	store := newStore(t)
	data := npmtest.Tarball(t, npmtest.File{Name: "index.js", Body: "1"})
	integrity := npmtest.Integrity(data)

	first, err := store.Put(context.Background(), integrity, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("first Put failed: %v", err)
	}

	// The existing entry wins; the second stream is not even parsed.
	second, err := store.Put(context.Background(), integrity, bytes.NewReader([]byte("not a tarball")))
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if first.Path != second.Path {
		t.Errorf("expected same entry, got %q and %q", first.Path, second.Path)
	}
}

func TestStore_ConcurrentPut(t *testing.T) {
	store := newStore(t)
	data := npmtest.Tarball(t, npmtest.File{Name: "index.js", Body: "shared"})
	integrity := npmtest.Integrity(data)

	const workers = 8
	var wg sync.WaitGroup
	paths := make([]string, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Go(func() {
			entry, err := store.Put(context.Background(), integrity, bytes.NewReader(data))
			errs[i] = err
			if entry != nil {
				paths[i] = entry.Path
			}
		})
	}
	wg.Wait()

	for i := range workers {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Errorf("worker %d got %q, want %q", i, paths[i], paths[0])
		}
	}
	assertStagingEmpty(t, store)
}

func TestStore_SkipsLinks(t *testing.T) {
	store := newStore(t)
	data := rawTarball(t,
		&tar.Header{Name: "package/real.js", Typeflag: tar.TypeReg, Mode: 0o644, Size: 3},
		&tar.Header{Name: "package/link.js", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"},
		&tar.Header{Name: "package/hard.js", Typeflag: tar.TypeLink, Linkname: "package/real.js"},
	)

	entry, err := store.Put(context.Background(), npmtest.Integrity(data), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(entry.Path, "real.js")); err != nil {
		t.Errorf("expected regular file: %v", err)
	}
	for _, name := range []string{"link.js", "hard.js"} {
		if _, err := os.Lstat(filepath.Join(entry.Path, name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected %s to be skipped, got %v", name, err)
		}
	}
}

func TestStore_RejectsBadArchives(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{
			name: "parent traversal",
			data: func(t *testing.T) []byte {
				return rawTarball(t, &tar.Header{Name: "package/../../evil.js", Typeflag: tar.TypeReg, Mode: 0o644, Size: 1})
			},
		},
		{
			name: "absolute path",
			data: func(t *testing.T) []byte {
				return rawTarball(t, &tar.Header{Name: "/tmp/evil.js", Typeflag: tar.TypeReg, Mode: 0o644, Size: 1})
			},
		},
		{
			name: "not gzip",
			data: func(*testing.T) []byte { return []byte("plain text") },
		},
		{
			name: "truncated",
			data: func(t *testing.T) []byte {
				full := npmtest.Tarball(t, npmtest.File{Name: "index.js", Body: string(bytes.Repeat([]byte("a"), 4096))})
				return full[:len(full)/2]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			data := tt.data(t)
			integrity := npmtest.Integrity(data)

			entry, err := store.Put(context.Background(), integrity, bytes.NewReader(data))
			if !errors.Is(err, domain.ErrExtractionFailed) {
				t.Fatalf("expected ErrExtractionFailed, got %v", err)
			}
			if entry != nil {
				t.Errorf("expected no entry, got %+v", entry)
			}
			if store.Contains(integrity) {
				t.Error("failed extraction left an entry behind")
			}
			assertStagingEmpty(t, store)
		})
	}
}
