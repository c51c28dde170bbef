// Package registry implements the RegistryClient port against the npm registry HTTP API.
package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.trai.ch/pie/internal/adapters/httputil"
	"go.trai.ch/pie/internal/build"
	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/zerr"
)

// acceptHeader asks for the abbreviated install document and falls back to the full one.
const acceptHeader = "application/vnd.npm.install-v1+json; q=1.0, application/json; q=0.8, */*"

// maxDocumentSize caps how much of a metadata response is read.
const maxDocumentSize = 256 << 20

// Client implements ports.RegistryClient. It holds no per-package state and
// is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     httputil.Policy
	userAgent  string
}

// New creates a Client for the public registry, adjusted by opts.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    domain.DefaultRegistryURL,
		httpClient: http.DefaultClient,
		policy:     httputil.DefaultPolicy,
		userAgent:  "pie/" + build.Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPackageMetadata implements ports.RegistryClient.
func (c *Client) FetchPackageMetadata(ctx context.Context, name domain.PackageName) (*domain.PackageMetadata, error) {
	url := c.packageURL(name)

	var doc *packageDocument
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		d, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, zerr.With(err, "package", name.String())
	}

	meta, err := doc.toDomain(name)
	if err != nil {
		return nil, zerr.With(err, "package", name.String())
	}
	return meta, nil
}

// packageURL escapes the scope separator so "@scope/name" stays one path segment.
func (c *Client) packageURL(name domain.PackageName) string {
	return c.baseURL + "/" + strings.Replace(name.String(), "/", "%2f", 1)
}

func (c *Client) get(ctx context.Context, url string) (*packageDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, domain.WithCause(domain.ErrRegistryUnavailable, err)
	}
	req.Header.Set("Accept", acceptHeader)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, httputil.Retryable(zerr.With(domain.WithCause(domain.ErrRegistryUnavailable, err), "url", url))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, zerr.Wrap(domain.ErrPackageNotFound, "registry answered 404")
	case httputil.StatusRetryable(resp.StatusCode):
		statusErr := zerr.With(zerr.Wrap(domain.ErrRegistryUnavailable, "registry answered with a server error"), "status_code", resp.StatusCode)
		return nil, httputil.Retryable(statusErr)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		statusErr := zerr.With(zerr.Wrap(domain.ErrMalformedResponse, "unexpected registry status"), "status_code", resp.StatusCode)
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, httputil.Retryable(domain.WithCause(domain.ErrRegistryUnavailable, err))
	}

	var doc packageDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, domain.WithCause(domain.ErrMalformedResponse, err)
	}
	return &doc, nil
}
