// Package transport wraps the HTTP client used for release listings and
// archive downloads. Failures are reported as *Error so callers can tell
// network problems apart from resolution or filesystem errors.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const userAgent = "phpfarm (+https://github.com/frederic-klein/phpfarm)"

// ErrNotFound is wrapped by *Error when the server answered 404.
var ErrNotFound = errors.New("not found")

// Error is a network or HTTP failure for one URL.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client issues GET and HEAD requests and turns non-2xx answers into *Error.
type Client struct {
	http *http.Client
}

// NewClient creates a client around hc; nil selects a default client.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{http: hc}
}

// Response is the subset of an HTTP response the feeds and downloader use.
type Response struct {
	Body         io.ReadCloser
	Size         int64
	LastModified time.Time
}

// Get fetches url. The caller closes Body.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodGet, url)
}

// Head probes url without a body. A 404 is reported as an *Error wrapping
// ErrNotFound.
func (c *Client) Head(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodHead, url)
}

func (c *Client) do(ctx context.Context, method, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &Error{Method: method, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Method: method, URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		e := &Error{Method: method, URL: url, StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusNotFound {
			e.Err = ErrNotFound
		}
		return nil, e
	}

	out := &Response{Body: resp.Body, Size: resp.ContentLength}
	if out.Size < 0 {
		out.Size = 0
		if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
			out.Size = n
		}
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			out.LastModified = t.UTC()
		}
	}
	if method == http.MethodHead {
		resp.Body.Close()
		out.Body = http.NoBody
	}
	return out, nil
}
