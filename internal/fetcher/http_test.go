package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/rseng/rseng-activity/internal/resilience"
)

func newTestFetcher(retries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		MaxRetries:  retries,
		DefaultRate: 100,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("hello world")) //nolint:errcheck
	}))
	defer srv.Close()

	body, err := newTestFetcher(3).Download(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestDownload_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestDownload_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	body, err := newTestFetcher(2).Download(context.Background(), srv.URL)
	require.NoError(t, err)
	body.Close() //nolint:errcheck
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownload_ExhaustedRetriesAreTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(1).Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestAdaptiveLimiter(t *testing.T) {
	a := NewAdaptiveLimiter(10, 1)
	for range 10 {
		a.OnSuccess()
	}
	assert.InDelta(t, 20, float64(a.Limit()), 0.001)

	for range 10 {
		a.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(a.Limit()), 0.001)
}

func TestLimiterFor_UsesHostRate(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{HostRates: map[string]rate.Limit{"zenodo.org": 1.5}})
	lim := f.limiterFor("https://zenodo.org/api/records/1")
	assert.InDelta(t, 1.5, float64(lim.Limit()), 0.001)
	assert.Same(t, lim, f.limiterFor("https://zenodo.org/api/records/2"))

	other := f.limiterFor("https://example.org/x")
	assert.InDelta(t, 5, float64(other.Limit()), 0.001)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"x","count":3}`)) //nolint:errcheck
	}))
	defer srv.Close()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	got, err := GetJSON[payload](context.Background(), newTestFetcher(1), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Name)
	assert.Equal(t, 3, got.Count)
}

func TestGetJSON_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := GetJSON[map[string]any](context.Background(), newTestFetcher(1), srv.URL)
	assert.Error(t, err)
}
