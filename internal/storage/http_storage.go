package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	maxFetchAttempts = 3
	maxRedirects     = 3
)

// HTTPImageFetcher downloads images over HTTP(S)
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
}

// HTTPFetcherOption configures an HTTPImageFetcher
type HTTPFetcherOption func(*HTTPImageFetcher)

// WithFetchTimeout bounds each attempt, headers and body included
func WithFetchTimeout(timeout time.Duration) HTTPFetcherOption {
	return func(f *HTTPImageFetcher) {
		if timeout > 0 {
			f.client.Timeout = timeout
		}
	}
}

// WithRetryBackoff sets the base delay; attempt n waits n*backoff before retrying
func WithRetryBackoff(backoff time.Duration) HTTPFetcherOption {
	return func(f *HTTPImageFetcher) {
		if backoff >= 0 {
			f.backoff = backoff
		}
	}
}

// WithMaxBytes caps the downloaded body
func WithMaxBytes(maxBytes int64) HTTPFetcherOption {
	return func(f *HTTPImageFetcher) {
		if maxBytes > 0 {
			f.maxBytes = maxBytes
		}
	}
}

// NewHTTPImageFetcher creates an HTTP image fetcher tuned for single image downloads
func NewHTTPImageFetcher(opts ...HTTPFetcherOption) *HTTPImageFetcher {
	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	f := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (limit: %d)", maxRedirects)
				}
				return nil
			},
		},
		maxBytes: DefaultMaxImageBytes,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the image at imageURL. Transport errors and 5xx answers are
// retried up to three attempts in total; 4xx answers fail immediately.
func (h *HTTPImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		data, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < maxFetchAttempts {
			if err := sleep(ctx, time.Duration(attempt)*h.backoff); err != nil {
				lastErr = err
				break
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch image: %w", lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "NeuraVision/2.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	return readLimited(resp.Body, h.maxBytes)
}

func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return !errors.Is(err, ErrImageTooLarge) && !errors.Is(err, ErrInvalidLocation)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
