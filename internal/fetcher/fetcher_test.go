package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestFetcher(maxRetries int, sleeps *[]time.Duration) *Fetcher {
	return New(Options{
		MaxRetries:     maxRetries,
		RetryBaseDelay: time.Second,
		RequestTimeout: 2 * time.Second,
		Jitter:         func(time.Duration) time.Duration { return 100 * time.Millisecond },
		Sleep: func(ctx context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	})
}

func TestFetch_OK_SendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer ts.Close()

	var sleeps []time.Duration
	body, err := newTestFetcher(3, &sleeps).Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", string(body))
	require.Equal(t, DefaultUserAgent, gotUA)
	require.Contains(t, gotAccept, "text/html")
	require.Empty(t, sleeps)
}

func TestFetch_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("third time"))
	}))
	defer ts.Close()

	var sleeps []time.Duration
	body, err := newTestFetcher(3, &sleeps).Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Equal(t, "third time", string(body))
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
	// base*attempt + fixed jitter
	require.Equal(t, []time.Duration{1100 * time.Millisecond, 2100 * time.Millisecond}, sleeps)
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	var sleeps []time.Duration
	_, err := newTestFetcher(3, &sleeps).Fetch(context.Background(), ts.URL)
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	require.Equal(t, 3, fe.Attempts)
	require.Equal(t, http.StatusNotFound, fe.StatusCode)
	require.Equal(t, ts.URL, fe.URL)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
	require.Len(t, sleeps, 2)
}

func TestFetch_TransportError(t *testing.T) {
	f := New(Options{
		MaxRetries: 2,
		Client: &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})},
		Jitter: func(time.Duration) time.Duration { return 0 },
		Sleep:  func(context.Context, time.Duration) error { return nil },
	})

	_, err := f.Fetch(context.Background(), "http://example.test/p/1")
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, 2, fe.Attempts)
	require.Zero(t, fe.StatusCode)
	require.Contains(t, fe.Error(), "connection refused")
}

func TestFetch_UsesPageCache(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer ts.Close()

	cache := &memCache{m: map[string][]byte{}}
	f := New(Options{Cache: cache})

	body, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Equal(t, "fresh", string(body))

	body, err = f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Equal(t, "fresh", string(body))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestForget_PurgesCachedPage(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer ts.Close()

	cache := &memCache{m: map[string][]byte{}}
	f := New(Options{Cache: cache})

	_, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	f.Forget(context.Background(), ts.URL)
	require.NotContains(t, cache.m, ts.URL)

	_, err = f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestForget_WithoutCache(t *testing.T) {
	require.NotPanics(t, func() {
		New(Options{}).Forget(context.Background(), "https://joyandco.com/product/lamp")
	})
}

func TestRandomJitter_Bounds(t *testing.T) {
	require.Zero(t, RandomJitter(0))
	for i := 0; i < 100; i++ {
		j := RandomJitter(10 * time.Millisecond)
		require.GreaterOrEqual(t, j, time.Duration(0))
		require.Less(t, j, 10*time.Millisecond)
	}
}

type memCache struct{ m map[string][]byte }

func (c *memCache) Get(_ context.Context, url string) ([]byte, bool, error) {
	b, ok := c.m[url]
	return b, ok, nil
}

func (c *memCache) Set(_ context.Context, url string, body []byte) error {
	c.m[url] = body
	return nil
}

func (c *memCache) Purge(_ context.Context, url string) error {
	delete(c.m, url)
	return nil
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
