// Package fetcher downloads package tarballs, verifies them, and hands them to the content store.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/pie/internal/adapters/httputil"
	"go.trai.ch/pie/internal/build"
	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// Fetcher implements ports.Fetcher.
type Fetcher struct {
	store      ports.ContentStore
	httpClient *http.Client
	policy     httputil.Policy
	userAgent  string
	group      singleflight.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		if hc != nil {
			f.httpClient = hc
		}
	}
}

// WithRetry sets the number of attempts and the initial backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(f *Fetcher) {
		f.policy.Attempts = attempts
		f.policy.Backoff = backoff
	}
}

// WithAttemptTimeout bounds every single download attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.policy.AttemptTimeout = d
	}
}

// New creates a Fetcher that stores into store.
func New(store ports.ContentStore, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:      store,
		httpClient: http.DefaultClient,
		policy:     httputil.DefaultPolicy,
		userAgent:  "pie/" + build.Version,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements ports.Fetcher. Callers asking for the same digest at the
// same time share a single download. The shared download is detached from
// every caller's cancellation; each caller stops waiting when its own ctx ends
// and the download stays bounded by the per-attempt timeout.
func (f *Fetcher) Fetch(ctx context.Context, meta domain.VersionMetadata) (*domain.StoreEntry, error) {
	if meta.Integrity.IsZero() {
		return nil, zerr.With(zerr.Wrap(domain.ErrFetchFailed, "package has no integrity digest"), "package", meta.Key())
	}
	if err := ctx.Err(); err != nil {
		return nil, zerr.With(domain.WithCause(domain.ErrFetchFailed, err), "package", meta.Key())
	}

	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(meta.Integrity.String(), func() (any, error) {
		return f.fetch(shared, meta)
	})

	select {
	case <-ctx.Done():
		return nil, zerr.With(domain.WithCause(domain.ErrFetchFailed, ctx.Err()), "package", meta.Key())
	case res := <-ch:
		if res.Err != nil {
			return nil, zerr.With(res.Err, "package", meta.Key())
		}
		return res.Val.(*domain.StoreEntry), nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, meta domain.VersionMetadata) (*domain.StoreEntry, error) {
	entry, err := f.store.Get(meta.Integrity)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}

	var path string
	err = f.policy.Do(ctx, func(ctx context.Context) error {
		p, err := f.download(ctx, meta)
		if err != nil {
			return err
		}
		path = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = os.Remove(path)
	}()

	// Extraction is not bounded by the attempt deadline.
	//nolint:gosec // path is a staging file created by download
	file, err := os.Open(path)
	if err != nil {
		return nil, domain.WithCause(domain.ErrFetchFailed, err)
	}
	defer func() {
		_ = file.Close()
	}()

	return f.store.Put(ctx, meta.Integrity, file)
}

// download streams the tarball into a uniquely named staging file while
// hashing it, and returns the path once the digest matches.
func (f *Fetcher) download(ctx context.Context, meta domain.VersionMetadata) (path string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.TarballURL, http.NoBody)
	if err != nil {
		return "", zerr.With(domain.WithCause(domain.ErrFetchFailed, err), "url", meta.TarballURL)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", httputil.Retryable(zerr.With(domain.WithCause(domain.ErrFetchFailed, err), "url", meta.TarballURL))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", zerr.With(zerr.Wrap(domain.ErrFetchFailed, "tarball not found"), "url", meta.TarballURL)
	case httputil.StatusRetryable(resp.StatusCode):
		statusErr := zerr.With(zerr.Wrap(domain.ErrFetchFailed, "tarball server error"), "status_code", resp.StatusCode)
		return "", httputil.Retryable(statusErr)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		statusErr := zerr.With(zerr.Wrap(domain.ErrFetchFailed, "unexpected tarball status"), "status_code", resp.StatusCode)
		return "", zerr.With(statusErr, "url", meta.TarballURL)
	}

	hash, err := meta.Integrity.NewHash()
	if err != nil {
		return "", err
	}

	path = filepath.Join(f.store.TempDir(), "fetch-"+uuid.NewString()+".tgz")
	//nolint:gosec // path is inside the store staging directory
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, domain.FilePerm)
	if err != nil {
		return "", domain.WithCause(domain.ErrFetchFailed, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = io.Copy(io.MultiWriter(file, hash), resp.Body); err != nil {
		_ = file.Close()
		return "", httputil.Retryable(zerr.With(domain.WithCause(domain.ErrFetchFailed, err), "url", meta.TarballURL))
	}
	if err = file.Close(); err != nil {
		return "", domain.WithCause(domain.ErrFetchFailed, err)
	}

	actual := domain.Integrity{Algorithm: meta.Integrity.Algorithm, Sum: hash.Sum(nil)}
	if !actual.Equal(meta.Integrity) {
		violation := zerr.With(zerr.Wrap(domain.ErrIntegrityViolation, "downloaded bytes do not match the published digest"), "expected", meta.Integrity.String())
		err = zerr.With(violation, "actual", actual.String())
		return "", err
	}
	return path, nil
}
