package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRegistryURL is the public npm registry.
const DefaultRegistryURL = "https://registry.npmjs.org"

const userAgent = "nodetree"

// client talks to an npm-compatible registry.
type client struct {
	http    *http.Client
	baseURL string

	attempts int
	delay    time.Duration
}

func newClient(baseURL string, hc *http.Client) *client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &client{
		http:     hc,
		baseURL:  strings.TrimRight(baseURL, "/"),
		attempts: 3,
		delay:    time.Second,
	}
}

// metadata fetches the packument of a package, retrying transient failures.
func (c *client) metadata(ctx context.Context, name string) (*packument, error) {
	var meta packument
	err := retry(ctx, c.attempts, c.delay, func() error {
		return c.getJSON(ctx, c.baseURL+"/"+escapeName(name), &meta)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *client) getJSON(ctx context.Context, u string, v any) error {
	body, err := c.doRequest(ctx, u)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrNetwork, u, err)
	}
	return nil
}

func (c *client) doRequest(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrPackageNotFound
	case code >= 500:
		return &retryableError{err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// retry runs fn up to attempts times, doubling delay after each retryable
// failure. Non-retryable errors are returned immediately.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !isRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// escapeName encodes a scoped name for the registry URL: @scope/pkg
// becomes @scope%2fpkg.
func escapeName(name string) string {
	if strings.HasPrefix(name, "@") {
		return "@" + url.PathEscape(name[1:])
	}
	return url.PathEscape(name)
}
