package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourorg/release-tracker/internal/release"
)

const defaultUserAgent = "release-tracker/1.0"

var errRateLimited = errors.New("rate limited")

// Fetcher performs HTTP GETs with retry on network errors, 429 and 5xx
type Fetcher struct {
	http       *http.Client
	userAgent  string
	token      string
	maxRetries int
	backoff    time.Duration
}

// NewFetcher creates a fetcher with a per-request timeout.
// token is sent as a bearer token to api.github.com only.
func NewFetcher(timeout time.Duration, token string) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		http: &http.Client{
			Timeout: timeout,
		},
		userAgent:  defaultUserAgent,
		token:      token,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// WithRetry overrides the retry policy
func (f *Fetcher) WithRetry(maxRetries int, backoff time.Duration) *Fetcher {
	f.maxRetries = maxRetries
	f.backoff = backoff
	return f
}

// Get fetches url and returns the body for 2xx responses.
// Transport failures and other statuses are reported as release.ErrSourceUnavailable.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	status, body, err := f.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: GET %s: status %d: %s", release.ErrSourceUnavailable, url, status, truncate(string(body), 200))
	}
	return body, nil
}

// get returns the status and body of any completed response
func (f *Fetcher) get(ctx context.Context, url string, header http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: GET %s: %v", release.ErrSourceUnavailable, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read %s: %v", release.ErrSourceUnavailable, url, err)
	}
	return resp.StatusCode, body, nil
}

// doWithRetry performs HTTP request with retry logic for 429 and 5xx errors
func (f *Fetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * f.backoff
			if errors.Is(lastErr, errRateLimited) {
				// For rate limiting, use longer backoff
				backoff *= 2
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := f.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Success or client error (don't retry)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = errRateLimited
		} else {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		}
	}

	return nil, lastErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
