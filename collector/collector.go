package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single master-server request (connect + response).
const DefaultTimeout = 2000 * time.Millisecond

// FetchError reports a failed request to a single master server. It is
// scoped to that endpoint only - the merge cycle tolerates it and the
// endpoint simply contributes zero to the aggregate.
type FetchError struct {
	Endpoint string
	Err      error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher queries the redundant master-server info endpoints.
// It issues plain GETs and never retries - a dead master is simply
// excluded from that cycle's aggregate.
type Fetcher struct {
	HTTP      *http.Client // injected for testability (timeout applies per request)
	Log       *zap.Logger
	UserAgent string // optional
}

// NewFetcher returns a ready-to-use fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration, log *zap.Logger) *Fetcher {
	return &Fetcher{
		HTTP:      &http.Client{Timeout: timeout},
		Log:       log,
		UserAgent: "poptrack/0.1",
	}
}

// Fetch issues a single GET to one endpoint and returns the raw response
// body. Network errors, timeouts and non-200 statuses all come back as a
// *FetchError carrying the underlying cause.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: err}
	}
	return body, nil
}

// Merge queries every endpoint concurrently and sums the counts of the
// sources that both fetched and parsed successfully. A failing source is
// logged and contributes (0, 0) - a single dead master must never abort
// the cycle. Merge returns once every endpoint has either resolved or hit
// its per-request timeout.
func (f *Fetcher) Merge(ctx context.Context, endpoints []string) Population {
	type result struct {
		info masterInfo
		ok   bool
	}
	results := make([]result, len(endpoints))

	var wg sync.WaitGroup
	for i, addr := range endpoints {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()

			body, err := f.Fetch(ctx, addr)
			if err != nil {
				f.Log.Warn("master server unreachable", zap.String("endpoint", addr), zap.Error(err))
				return
			}
			var info masterInfo
			if err := json.Unmarshal(body, &info); err != nil {
				f.Log.Warn("malformed master server info", zap.String("endpoint", addr), zap.Error(err))
				return
			}
			results[i] = result{info: info, ok: true}
		}(i, addr)
	}
	wg.Wait()

	pop := Population{Sources: len(endpoints)}
	for _, r := range results {
		if !r.ok {
			pop.Failed++
			continue
		}
		pop.Servers += r.info.Servers
		pop.Players += r.info.Players
	}

	f.Log.Info("merge cycle complete",
		zap.Int("sources", pop.Sources),
		zap.Int("failed", pop.Failed),
		zap.Int("servers", pop.Servers),
		zap.Int("players", pop.Players),
	)
	return pop
}
