package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Fetcher loads raw markup for a document reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, ref string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, ref string) (string, error) { return f(ctx, ref) }

// FetchError is a failed load: a non-success status, or StatusCode 0 for a
// transport failure.
type FetchError struct {
	Ref        string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %s", e.Ref, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fetch %s: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status from a fetch failure, or 0.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// Client fetches document markup over HTTP. Relative references resolve
// against the base URL.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	maxBytes   int64
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBytes: 16 << 20,
	}, nil
}

// Resolve returns the absolute URL for ref.
func (c *Client) Resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse ref %q: %w", ref, err)
	}
	return c.baseURL.ResolveReference(r).String(), nil
}

// Fetch GETs ref once and returns the body. A status outside 2xx is a
// FetchError.
func (c *Client) Fetch(ctx context.Context, ref string) (string, error) {
	u, err := c.Resolve(ref)
	if err != nil {
		return "", &FetchError{Ref: ref, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &FetchError{Ref: ref, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &FetchError{Ref: ref, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &FetchError{
			Ref:        ref,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return "", &FetchError{Ref: ref, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBytes {
		return "", &FetchError{Ref: ref, Err: fmt.Errorf("document exceeds %d bytes", c.maxBytes)}
	}
	return string(body), nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
