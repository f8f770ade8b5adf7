package httpstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.trai.ch/rig/internal/core/domain"
	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.BlobStore = (*Client)(nil)

// Client is a ports.BlobStore backed by a remote Server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a Client for the server at baseURL.
// A nil httpClient selects http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

func (c *Client) blobURL(key string) string {
	return c.base + "/blobs/" + url.PathEscape(key)
}

// Get downloads the blob stored under key. Returns nil, nil if not found.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.blobURL(key), http.NoBody)
	if err != nil {
		return nil, errors.Join(domain.ErrStoreReadFailed, zerr.With(err, "key", key))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Join(domain.ErrStoreReadFailed, zerr.With(err, "key", key))
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, nil
	default:
		_ = resp.Body.Close()
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrStoreReadFailed, "unexpected response"),
			"status", resp.StatusCode), "key", key)
	}
}

// Put uploads r under key.
func (c *Client) Put(ctx context.Context, key string, r io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.blobURL(key), r)
	if err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.With(err, "key", key))
	}
	req.Header.Set("Content-Type", "application/gzip")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(domain.ErrStoreWriteFailed, zerr.With(err, "key", key))
	}
	defer resp.Body.Close() //nolint:errcheck // Body is drained below
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrStoreWriteFailed, "unexpected response"),
			"status", resp.StatusCode), "key", key)
	}
	return nil
}
