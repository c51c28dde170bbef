// Package npmtest provides an in-memory npm registry and tarball builders for tests.
package npmtest

import (
	"archive/tar"
	"bytes"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.trai.ch/pie/internal/core/domain"
)

// File is one entry of a generated package tarball.
type File struct {
	Name       string
	Body       string
	Executable bool
}

// Tarball builds a gzip compressed tarball in the npm layout, with every file
// below "package/".
func Tarball(t testing.TB, files ...File) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	modTime := time.Date(1985, 10, 26, 8, 15, 0, 0, time.UTC)

	if err := tw.WriteHeader(&tar.Header{Name: "package/", Typeflag: tar.TypeDir, Mode: 0o755, ModTime: modTime}); err != nil {
		t.Fatalf("write dir header: %v", err)
	}
	for _, f := range files {
		mode := int64(0o644)
		if f.Executable {
			mode = 0o755
		}
		hdr := &tar.Header{
			Name:     "package/" + f.Name,
			Typeflag: tar.TypeReg,
			Mode:     mode,
			Size:     int64(len(f.Body)),
			ModTime:  modTime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", f.Name, err)
		}
		if _, err := tw.Write([]byte(f.Body)); err != nil {
			t.Fatalf("write body %s: %v", f.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

// Integrity returns the sha512 digest of data.
func Integrity(data []byte) domain.Integrity {
	sum := sha512.Sum512(data)
	return domain.Integrity{Algorithm: domain.SHA512, Sum: sum[:]}
}

// SRI returns the sha512 subresource integrity string of data.
func SRI(data []byte) string {
	sum := sha512.Sum512(data)
	return "sha512-" + base64.StdEncoding.EncodeToString(sum[:])
}

type version struct {
	deps    map[string]string
	tarball []byte
	served  []byte
}

type pkg struct {
	versions map[string]*version
	tags     map[string]string
}

// Registry is a fake npm registry backed by httptest.Server.
type Registry struct {
	server *httptest.Server

	mu       sync.Mutex
	packages map[string]*pkg
	failures map[string]int

	metadataRequests atomic.Int64
	tarballRequests  atomic.Int64
}

// NewRegistry starts a fake registry that is closed when the test ends.
func NewRegistry(t testing.TB) *Registry {
	t.Helper()
	r := &Registry{
		packages: make(map[string]*pkg),
		failures: make(map[string]int),
	}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.server.Close)
	return r
}

// URL returns the registry base URL.
func (r *Registry) URL() string {
	return r.server.URL
}

// Client returns an HTTP client for the registry.
func (r *Registry) Client() *http.Client {
	return r.server.Client()
}

// Publish adds a version of name with the given dependencies and files. The
// latest tag follows the most recently published version.
func (r *Registry) Publish(t testing.TB, name, ver string, deps map[string]string, files ...File) []byte {
	t.Helper()
	if len(files) == 0 {
		files = []File{
			{Name: "package.json", Body: `{"name":"` + name + `","version":"` + ver + `"}`},
			{Name: "index.js", Body: "module.exports = '" + name + "@" + ver + "';\n"},
		}
	}
	data := Tarball(t, files...)

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packages[name]
	if !ok {
		p = &pkg{versions: make(map[string]*version), tags: make(map[string]string)}
		r.packages[name] = p
	}
	p.versions[ver] = &version{deps: deps, tarball: data, served: data}
	p.tags[domain.LatestTag] = ver
	return data
}

// Tag points a dist-tag of name at ver.
func (r *Registry) Tag(name, tag, ver string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages[name].tags[tag] = ver
}

// Corrupt makes the registry serve different bytes for a tarball while the
// metadata keeps advertising the original digest.
func (r *Registry) Corrupt(name, ver string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.packages[name].versions[ver]
	served := bytes.Clone(v.tarball)
	served[len(served)/2] ^= 0xff
	v.served = served
}

// FailNext makes the next n requests whose path starts with prefix answer 503.
func (r *Registry) FailNext(prefix string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[prefix] = n
}

// MetadataRequests returns the number of metadata documents requested.
func (r *Registry) MetadataRequests() int64 {
	return r.metadataRequests.Load()
}

// TarballRequests returns the number of tarballs requested.
func (r *Registry) TarballRequests() int64 {
	return r.tarballRequests.Load()
}

// Requests returns the total number of requests served.
func (r *Registry) Requests() int64 {
	return r.MetadataRequests() + r.TarballRequests()
}

// TarballURL returns the URL the registry advertises for name@ver.
func (r *Registry) TarballURL(name, ver string) string {
	return r.server.URL + "/-/tarballs/" + url.PathEscape(name) + "/" + ver + ".tgz"
}

func (r *Registry) serve(w http.ResponseWriter, req *http.Request) {
	p := req.URL.Path
	if r.shouldFail(p) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if rest, ok := strings.CutPrefix(req.URL.EscapedPath(), "/-/tarballs/"); ok {
		r.tarballRequests.Add(1)
		r.serveTarball(w, rest)
		return
	}

	r.metadataRequests.Add(1)
	r.serveMetadata(w, strings.TrimPrefix(p, "/"))
}

func (r *Registry) shouldFail(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for prefix, n := range r.failures {
		if n > 0 && strings.HasPrefix(p, prefix) {
			r.failures[prefix] = n - 1
			return true
		}
	}
	return false
}

func (r *Registry) serveMetadata(w http.ResponseWriter, name string) {
	r.mu.Lock()
	p, ok := r.packages[name]
	if !ok {
		r.mu.Unlock()
		http.NotFound(w, nil)
		return
	}

	doc := map[string]any{"name": name, "dist-tags": p.tags}
	versions := make(map[string]any, len(p.versions))
	for ver, v := range p.versions {
		versions[ver] = map[string]any{
			"name":         name,
			"version":      ver,
			"dependencies": v.deps,
			"dist": map[string]string{
				"tarball":   r.TarballURL(name, ver),
				"integrity": SRI(v.tarball),
			},
		}
	}
	doc["versions"] = versions
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/vnd.npm.install-v1+json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (r *Registry) serveTarball(w http.ResponseWriter, rest string) {
	escaped, file, ok := strings.Cut(rest, "/")
	name, err := url.PathUnescape(escaped)
	if !ok || err != nil {
		http.NotFound(w, nil)
		return
	}
	ver := strings.TrimSuffix(file, ".tgz")

	r.mu.Lock()
	var data []byte
	if p, found := r.packages[name]; found {
		if v, found := p.versions[ver]; found {
			data = v.served
		}
	}
	r.mu.Unlock()

	if data == nil {
		http.NotFound(w, nil)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
