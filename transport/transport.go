// Package transport issues the HTTP GET requests behind every adapter and
// defines the seam tests use to script responses.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Response is a completed HTTP exchange. Non-2xx statuses are delivered
// here, not as errors; classifying them is the adapter's job.
type Response struct {
	StatusCode int
	Body       []byte
}

// Getter performs a single GET request. Implementations return an error only
// for request construction, network or body-read failures.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) (*Response, error)
}

// Observer receives the outcome of every completed request. A zero status
// code means the request never produced a response.
type Observer interface {
	ObserveRequest(duration time.Duration, statusCode int, bytes int, err error)
}

const defaultUserAgent = "perpdata/1.0"

// HTTPTransport is the production Getter. The zero value is not usable;
// construct it with New. It is safe for concurrent use.
type HTTPTransport struct {
	client     *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	observer   Observer
	userAgent  string
	ownsClient bool
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient uses the supplied client instead of the built-in pooled
// one. The caller keeps ownership; Close will not touch it.
func WithHTTPClient(client *http.Client) Option {
	return func(t *HTTPTransport) {
		t.client = client
		t.ownsClient = false
	}
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// Waiting for a token honors the request context.
func WithRateLimit(rps float64, burst int) Option {
	return func(t *HTTPTransport) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(t *HTTPTransport) {
		if ua != "" {
			t.userAgent = ua
		}
	}
}

// WithObserver registers a request outcome observer.
func WithObserver(observer Observer) Option {
	return func(t *HTTPTransport) {
		t.observer = observer
	}
}

// New builds an HTTPTransport. Without WithHTTPClient it owns a pooled
// client whose idle connections are released by Close.
func New(opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		logger:    slog.Default(),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
		t.ownsClient = true
	}
	return t
}

// Get performs one GET request. Request deadlines come from ctx; the
// transport imposes none of its own.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	requestURL := rawURL
	if len(params) > 0 {
		requestURL = rawURL + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.observe(time.Since(start), 0, 0, err)
		t.logger.Debug("http request failed",
			"url", rawURL,
			"request_id", requestID,
			"error", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		t.observe(duration, resp.StatusCode, 0, err)
		return nil, fmt.Errorf("read response body: %w", err)
	}

	t.observe(duration, resp.StatusCode, len(body), nil)
	t.logger.Debug("http request completed",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", duration.Milliseconds(),
		"request_id", requestID)
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (t *HTTPTransport) observe(duration time.Duration, status, bytes int, err error) {
	if t.observer != nil {
		t.observer.ObserveRequest(duration, status, bytes, err)
	}
}

// Close releases idle connections of an owned client. It is a no-op when
// the client was injected.
func (t *HTTPTransport) Close() error {
	if t.ownsClient {
		t.client.CloseIdleConnections()
	}
	return nil
}
