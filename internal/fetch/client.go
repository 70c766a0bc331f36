// Package fetch issues subset requests against the remote NetCDF Subset
// Service.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hydroclim/daymet-pipeline/internal/dataset"
	"github.com/hydroclim/daymet-pipeline/internal/daymet"
	"github.com/hydroclim/daymet-pipeline/internal/metrics"
	"github.com/hydroclim/daymet-pipeline/internal/storage"
)

// Client performs blocking, sequential fetches for one dataset version.
type Client struct {
	httpClient *http.Client
	version    string
	// baseURL overrides the canonical service URL; tests point it at a
	// local server.
	baseURL string
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewClient creates a fetch client. The timeout bounds each request
// end-to-end; there are no automatic retries. Metrics may be nil, for
// tests.
func NewClient(version string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		version: version,
		metrics: m,
		log:     logger,
	}
}

func (c *Client) requestURL(req daymet.Request) string {
	if c.baseURL != "" {
		return c.baseURL + "/" + req.FileName(c.version)
	}
	return req.URL(c.version)
}

// Fetch performs one subset request and returns the raw NetCDF payload.
func (c *Client) Fetch(ctx context.Context, req daymet.Request) ([]byte, error) {
	fullURL := c.requestURL(req) + "?" + req.Query().Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(fullURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{Status: resp.StatusCode, URL: fullURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(fullURL, err)
	}
	if c.metrics != nil {
		c.metrics.FetchBytes.WithLabelValues(req.Variable, c.version).Observe(float64(len(body)))
	}
	return body, nil
}

// Open performs one subset request and decodes the payload in memory, for
// the merge-per-feature path.
func (c *Client) Open(ctx context.Context, req daymet.Request) (*dataset.Dataset, error) {
	body, err := c.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return dataset.Decode(body)
}

// Download performs one subset request and persists the raw payload under
// {featureKey}/{featureKey}_{filename}, creating the feature prefix as
// needed. It returns the storage key written.
func (c *Client) Download(ctx context.Context, req daymet.Request, store storage.Store) (string, error) {
	body, err := c.Fetch(ctx, req)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s_%s", req.Key, req.Key, req.FileName(c.version))
	if err := store.Write(ctx, key, body); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	c.log.Info("stored Daymet data", "key", key, "bytes", len(body))
	return key, nil
}
