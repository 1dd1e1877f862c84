package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultFetchRetries = 2
	defaultFetchBackoff = 2 * time.Second

	// Feed documents larger than this are rejected rather than read.
	maxResponseSize = 10 << 20
)

// StatusError reports a non-success HTTP status. Client errors (4xx)
// are permanent and never retried; server errors are transient.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.Code, e.Status)
}

func (e *StatusError) Retryable() bool {
	return e.Code >= 500
}

// FetchRequest carries the source URL plus the conditional request
// validators saved from the previous successful fetch.
type FetchRequest struct {
	URL          string
	Timeout      time.Duration
	ETag         string
	LastModified string
}

type FetchResult struct {
	StatusCode   int
	Body         []byte
	ContentType  string
	ETag         string
	LastModified string

	// NotModified is set on a 304 response; Body is empty then.
	NotModified bool
}

// Fetcher downloads documents over HTTP with bounded retries. Waits
// between attempts grow linearly with the attempt number.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	backoff    time.Duration
}

func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &Fetcher{
		client:     client,
		userAgent:  userAgent,
		maxRetries: defaultFetchRetries,
		backoff:    defaultFetchBackoff,
	}
}

// Fetch downloads req.URL, retrying transient failures. Permanent
// failures (4xx responses, malformed URLs) return immediately.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * f.backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := f.fetchOnce(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", f.maxRetries+1, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", f.userAgent)
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}
	if req.LastModified != "" {
		httpReq.Header.Set("If-Modified-Since", req.LastModified)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{StatusCode: resp.StatusCode, NotModified: true}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", req.URL, maxResponseSize)
	}

	return &FetchResult{
		StatusCode:   resp.StatusCode,
		Body:         body,
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}
