package httpclient_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lojistack/erp-sync-server/internal/httpclient"
)

// newTestServer creates a new test server with keep-alives disabled.
// This prevents flaky tests when running in parallel, as closing a server
// with keep-alives enabled can affect other tests sharing the HTTP transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

// fakeCredentials is a CredentialSource with a swappable token
type fakeCredentials struct {
	token        atomic.Value
	refreshCalls atomic.Int32
	refreshErr   error
}

func newFakeCredentials(token string) *fakeCredentials {
	creds := &fakeCredentials{}
	creds.token.Store(token)
	return creds
}

func (f *fakeCredentials) Token(_ context.Context) (string, error) {
	return f.token.Load().(string), nil
}

func (f *fakeCredentials) Refresh(_ context.Context) error {
	f.refreshCalls.Add(1)
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.token.Store("refreshed-token")
	return nil
}

// fastOptions keeps retry delays negligible in tests
func fastOptions(maxAttempts int) []httpclient.Option {
	return []httpclient.Option{
		httpclient.WithMaxAttempts(maxAttempts),
		httpclient.WithInitialBackoff(time.Millisecond),
		httpclient.WithRateLimitDelay(2 * time.Millisecond),
		httpclient.WithRequestsPerSecond(10000),
	}
}

func TestGetJSONSuccess(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"id":42,"name":"widget"}}`)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(newFakeCredentials("tok-1"), fastOptions(3)...)

	var out struct {
		Data struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.Data.ID)
	assert.Equal(t, "widget", out.Data.Name)
}

func TestGetJSONRetryBound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(newFakeCredentials("tok-1"), fastOptions(3)...)

	err := client.GetJSON(context.Background(), server.URL, nil)
	require.Error(t, err)

	// Exactly maxAttempts calls, then a terminal error embedding the last failure
	assert.Equal(t, int32(3), calls.Load())

	var exhausted *httpclient.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Contains(t, exhausted.Error(), "boom")

	var httpErr *httpclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestGetJSONRateLimited(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(newFakeCredentials("tok-1"), fastOptions(3)...)

	err := client.GetJSON(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var exhausted *httpclient.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Contains(t, exhausted.Error(), "slow down")
}

func TestGetJSONRetryAfterHeader(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(newFakeCredentials("tok-1"), fastOptions(3)...)

	start := time.Now()
	err := client.GetJSON(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	// The second attempt waited out the advertised Retry-After
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestGetJSONCredentialRefresh(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "token expired", http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer refreshed-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	creds := newFakeCredentials("stale-token")
	client := httpclient.NewDefaultClient(creds, fastOptions(3)...)

	err := client.GetJSON(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), creds.refreshCalls.Load())
}

func TestGetJSONRefreshFailureIsTerminal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := newFakeCredentials("stale-token")
	creds.refreshErr = fmt.Errorf("refresh endpoint unavailable")
	client := httpclient.NewDefaultClient(creds, fastOptions(5)...)

	err := client.GetJSON(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential refresh failed")
	// A failed refresh does not burn the remaining attempts
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSONNotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "no such entity", http.StatusNotFound)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(newFakeCredentials("tok-1"), fastOptions(5)...)

	err := client.GetJSON(context.Background(), server.URL, nil)
	require.ErrorIs(t, err, httpclient.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSONMalformedBody(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"data":`)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(newFakeCredentials("tok-1"), fastOptions(5)...)

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSONContextCancellation(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := httpclient.NewDefaultClient(newFakeCredentials("tok-1"), fastOptions(5)...)

	err := client.GetJSON(ctx, server.URL, nil)
	require.ErrorIs(t, err, context.Canceled)
}
