package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusError is returned when the upstream answers with a non-200 status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// ErrBodyTooLarge is returned when a response exceeds the configured size cap.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// HTTPClient performs rate-limited GET requests with a fixed header set.
type HTTPClient struct {
	client  *http.Client
	limiter *RateLimiter
	headers map[string]string
	log     logrus.FieldLogger
}

// HTTPOption customises an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.client = c }
}

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPClient) {
		if d > 0 {
			h.client = &http.Client{Timeout: d, Transport: h.client.Transport}
		}
	}
}

// WithRateLimiter shares a limiter between clients.
func WithRateLimiter(l *RateLimiter) HTTPOption {
	return func(h *HTTPClient) { h.limiter = l }
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTPClient) { h.headers[key] = value }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logrus.FieldLogger) HTTPOption {
	return func(h *HTTPClient) { h.log = l }
}

// NewHTTPClient builds a client with a 60s timeout and no rate limit unless
// options say otherwise.
func NewHTTPClient(opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: NewRateLimiter(0),
		headers: make(map[string]string),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// MinInterval returns the spacing the shared limiter enforces between requests.
func (h *HTTPClient) MinInterval() time.Duration { return h.limiter.Interval() }

// DoGet waits for the limiter, issues a GET and returns the body of a 200
// response. The caller must close the body.
func (h *HTTPClient) DoGet(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	h.log.WithFields(logrus.Fields{
		"url":     url,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug("http get")

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// GetBytes fetches url and reads the whole body. maxBytes <= 0 means no cap.
func (h *HTTPClient) GetBytes(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	body, err := h.DoGet(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if maxBytes <= 0 {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", url, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("read %s: %w", url, ErrBodyTooLarge)
	}
	return data, nil
}
