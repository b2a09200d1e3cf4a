// Package sources holds the HTTP clients for the external enrichment
// collaborators. Each client is a thin REST wrapper: retries belong to the
// fan-out's policy, not here.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultUserAgent = "finrisk/1.0 (compliance-screening)"

// httpClient is the shared request helper. A non-2xx status other than 404 is
// a transport-level failure; 404 means the source had nothing for the entity.
type httpClient struct {
	base      *url.URL
	client    *http.Client
	userAgent string
}

func newHTTPClient(baseURL string, timeout time.Duration) (*httpClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		base:      base,
		client:    &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
	}, nil
}

// getJSON issues a GET for path with query params and decodes the body into
// out. Returns (false, nil) on 404, (true, nil) on success.
func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	u := *c.base
	u.Path, _ = url.JoinPath(u.Path, path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u.Host)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response from %s: %w", u.Host, err)
	}
	return true, nil
}
