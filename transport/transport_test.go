package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingObserver struct {
	mu     sync.Mutex
	status []int
	errs   []error
	bytes  []int
}

func (o *recordingObserver) ObserveRequest(_ time.Duration, statusCode int, bytes int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = append(o.status, statusCode)
	o.bytes = append(o.bytes, bytes)
	o.errs = append(o.errs, err)
}

func TestGet(t *testing.T) {
	t.Run("returns status and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		tr := New(WithHTTPClient(server.Client()), WithLogger(testLogger()))
		resp, err := tr.Get(context.Background(), server.URL, nil)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	})

	t.Run("delivers non-2xx as response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`slow down`))
		}))
		defer server.Close()

		tr := New(WithHTTPClient(server.Client()), WithLogger(testLogger()))
		resp, err := tr.Get(context.Background(), server.URL, nil)

		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "slow down", string(resp.Body))
	})

	t.Run("encodes query parameters", func(t *testing.T) {
		var gotQuery url.Values
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			_, _ = w.Write([]byte(`[]`))
		}))
		defer server.Close()

		params := url.Values{}
		params.Set("symbol", "BTCUSDT")
		params.Set("limit", "500")

		tr := New(WithHTTPClient(server.Client()), WithLogger(testLogger()))
		_, err := tr.Get(context.Background(), server.URL, params)

		require.NoError(t, err)
		assert.Equal(t, "BTCUSDT", gotQuery.Get("symbol"))
		assert.Equal(t, "500", gotQuery.Get("limit"))
	})

	t.Run("sets tracing headers", func(t *testing.T) {
		var gotRequestID, gotUserAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotRequestID = r.Header.Get("X-Request-ID")
			gotUserAgent = r.Header.Get("User-Agent")
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		tr := New(WithHTTPClient(server.Client()), WithLogger(testLogger()), WithUserAgent("perpdata-test"))
		_, err := tr.Get(context.Background(), server.URL, nil)

		require.NoError(t, err)
		assert.NotEmpty(t, gotRequestID)
		assert.Equal(t, "perpdata-test", gotUserAgent)
	})

	t.Run("returns network errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		tr := New(WithLogger(testLogger()))
		_, err := tr.Get(context.Background(), server.URL, nil)

		assert.Error(t, err)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		tr := New(WithHTTPClient(server.Client()), WithLogger(testLogger()))
		_, err := tr.Get(ctx, server.URL, nil)

		assert.Error(t, err)
	})
}

func TestObserver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	}))
	defer server.Close()

	obs := &recordingObserver{}
	tr := New(WithHTTPClient(server.Client()), WithLogger(testLogger()), WithObserver(obs))

	_, err := tr.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)

	require.Len(t, obs.status, 1)
	assert.Equal(t, http.StatusBadGateway, obs.status[0])
	assert.Equal(t, len("upstream down"), obs.bytes[0])
	assert.NoError(t, obs.errs[0])
}

func TestRateLimitedTransportStillServes(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tr := New(WithHTTPClient(server.Client()), WithLogger(testLogger()), WithRateLimit(1000, 5))
	for i := 0; i < 3; i++ {
		_, err := tr.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, calls)
}

func TestClose(t *testing.T) {
	t.Run("owned client", func(t *testing.T) {
		tr := New(WithLogger(testLogger()))
		assert.NoError(t, tr.Close())
	})

	t.Run("injected client is left alone", func(t *testing.T) {
		tr := New(WithHTTPClient(&http.Client{}), WithLogger(testLogger()))
		assert.NoError(t, tr.Close())
	})
}
