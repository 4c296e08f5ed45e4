// Package httpx provides the shared outbound HTTP plumbing: one client
// shape with a hard timeout, and request construction with the API's
// user agent. Every upstream call in the repo goes through it, so no
// outbound request can hang.
package httpx

import (
	"context"
	"io"
	"net/http"
	"time"
)

const userAgent = "venue-api/1.0 (+https://thechurchstudio.com)"

// DefaultTimeout bounds every outbound call; upstreams that exceed it are
// treated as ordinary failures by the callers.
const DefaultTimeout = 15 * time.Second

// NewClient returns an HTTP client with the given total-request timeout.
// A zero timeout falls back to DefaultTimeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NewRequest builds a request carrying the API user agent plus the given
// headers.
func NewRequest(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
