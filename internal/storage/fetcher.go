package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	fetchAttempts      = 3
	defaultMaxFetch    = 10 * 1024 * 1024
	defaultFetchName   = "image"
	fetcherUserAgent   = "Image-Inspector/1.0"
	fetcherAcceptTypes = "image/jpeg, image/png, image/webp, image/gif, image/bmp, image/tiff, */*"
)

// RemoteImage is a downloaded file before decoding
type RemoteImage struct {
	Data        []byte
	ContentType string
	Name        string
	FetchedAt   time.Time
}

// ImageFetcher downloads image files by URL
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*RemoteImage, error)
}

// HTTPImageFetcher downloads over HTTP with bounded retries
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
}

// FetcherOption configures an HTTPImageFetcher
type FetcherOption func(*HTTPImageFetcher)

// WithMaxBytes caps the accepted response size
func WithMaxBytes(n int64) FetcherOption {
	return func(h *HTTPImageFetcher) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*base
func WithBackoff(base time.Duration) FetcherOption {
	return func(h *HTTPImageFetcher) {
		if base >= 0 {
			h.backoff = base
		}
	}
}

// WithTimeout sets the overall per-request timeout
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(h *HTTPImageFetcher) {
		if timeout > 0 {
			h.client.Timeout = timeout
		}
	}
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(opts ...FetcherOption) *HTTPImageFetcher {
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

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: defaultMaxFetch,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*RemoteImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", fetcherAcceptTypes)
	req.Header.Set("User-Agent", fetcherUserAgent)

	// only transient failures are retried: transport errors and 5xx
	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt < fetchAttempts; attempt++ {
		resp, err = h.client.Do(req)
		if err != nil {
			lastErr = err
			resp = nil
		} else if resp.StatusCode == http.StatusOK {
			break
		} else {
			status := resp.StatusCode
			resp.Body.Close()
			resp = nil

			if status >= 400 && status < 500 {
				lastErr = fmt.Errorf("client error: status code %d", status)
				break
			}
			lastErr = fmt.Errorf("server error: status code %d", status)
		}

		if attempt < fetchAttempts-1 {
			if err := sleepContext(ctx, time.Duration(attempt+1)*h.backoff); err != nil {
				return nil, err
			}
		}
	}

	if resp == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("unknown error")
		}
		return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
	}
	defer resp.Body.Close()

	if resp.ContentLength > h.maxBytes {
		return nil, &TooLargeError{Limit: h.maxBytes}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, &TooLargeError{Limit: h.maxBytes}
	}

	return &RemoteImage{
		Data:        data,
		ContentType: mediaType(resp.Header.Get("Content-Type"), data),
		Name:        nameFromURL(resp.Request.URL),
		FetchedAt:   time.Now(),
	}, nil
}

// TooLargeError reports a download over the configured limit
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("image exceeds %d bytes", e.Limit)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// mediaType prefers the declared type and sniffs when it is missing or generic
func mediaType(header string, data []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	return http.DetectContentType(data)
}

func nameFromURL(u *url.URL) string {
	if u == nil {
		return defaultFetchName
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return defaultFetchName
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return strings.TrimSpace(base)
}
