package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchReturnsBody(t *testing.T) {
	srv := jsonServer(t, `{"servers":3,"players":42}`)
	f := NewFetcher(DefaultTimeout, zap.NewNop())

	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"servers":3,"players":42}`, string(body))
}

func TestFetchNonOKStatusIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(DefaultTimeout, zap.NewNop())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, srv.URL, fe.Endpoint)
}

func TestMergeSumsAllHealthySources(t *testing.T) {
	a := jsonServer(t, `{"servers":5,"players":10}`)
	b := jsonServer(t, `{"servers":7,"players":20,"motd":"hello"}`)
	c := jsonServer(t, `{"servers":1,"players":3}`)

	f := NewFetcher(DefaultTimeout, zap.NewNop())
	pop := f.Merge(context.Background(), []string{a.URL, b.URL, c.URL})

	assert.Equal(t, 13, pop.Servers)
	assert.Equal(t, 33, pop.Players)
	assert.Equal(t, 3, pop.Sources)
	assert.Equal(t, 0, pop.Failed)
}

func TestMergeToleratesFailingSources(t *testing.T) {
	healthy := jsonServer(t, `{"servers":5,"players":10}`)
	garbage := jsonServer(t, `<html>not json</html>`)

	// An endpoint that refuses connections.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	f := NewFetcher(DefaultTimeout, zap.NewNop())
	pop := f.Merge(context.Background(), []string{healthy.URL, garbage.URL, deadURL})

	assert.Equal(t, 5, pop.Servers)
	assert.Equal(t, 10, pop.Players)
	assert.Equal(t, 3, pop.Sources)
	assert.Equal(t, 2, pop.Failed)
}

func TestMergeNonNumericFieldsContributeZero(t *testing.T) {
	bad := jsonServer(t, `{"servers":"many","players":"lots"}`)
	good := jsonServer(t, `{"servers":2,"players":8}`)

	f := NewFetcher(DefaultTimeout, zap.NewNop())
	pop := f.Merge(context.Background(), []string{bad.URL, good.URL})

	assert.Equal(t, 2, pop.Servers)
	assert.Equal(t, 8, pop.Players)
	assert.Equal(t, 1, pop.Failed)
}

func TestMergeTimesOutSlowSource(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(`{"servers":100,"players":1000}`))
	}))
	t.Cleanup(slow.Close)
	fast := jsonServer(t, `{"servers":4,"players":9}`)

	f := NewFetcher(50*time.Millisecond, zap.NewNop())

	start := time.Now()
	pop := f.Merge(context.Background(), []string{slow.URL, fast.URL})
	elapsed := time.Since(start)

	assert.Equal(t, 4, pop.Servers)
	assert.Equal(t, 9, pop.Players)
	assert.Equal(t, 1, pop.Failed)
	// The slow source is bounded by its own timeout, not by the other's.
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestMergeNoEndpoints(t *testing.T) {
	f := NewFetcher(DefaultTimeout, zap.NewNop())
	pop := f.Merge(context.Background(), nil)
	assert.Equal(t, Population{}, pop)
}
