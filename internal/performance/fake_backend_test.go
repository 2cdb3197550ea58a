package performance_test

import (
	"context"
	"sync"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/performance"
)

// fakeBackend records queries and serves canned results. When gate is set,
// calls for that period block until released or canceled.
type fakeBackend struct {
	mu      sync.Mutex
	queries []performance.Query
	creds   []auth.Credentials
	brands  []performance.Record
	models  performance.ModelResult
	err     error
	gates   map[string]chan struct{}
	started chan string

	// ignoreCancel makes gated calls wait for release even after cancellation.
	ignoreCancel bool
}

func (f *fakeBackend) record(creds auth.Credentials, q performance.Query) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	f.creds = append(f.creds, creds)
	if f.started != nil {
		f.started <- string(q.Kind)
	}
	return f.gates[string(q.Kind)]
}

func (f *fakeBackend) wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	if f.ignoreCancel {
		<-gate
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) FetchBrandPerformance(ctx context.Context, creds auth.Credentials, q performance.Query) ([]performance.Record, error) {
	if err := f.wait(ctx, f.record(creds, q)); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]performance.Record, len(f.brands))
	copy(out, f.brands)
	// tag records with the period so tests can tell responses apart
	for i := range out {
		out[i].ID = string(q.Kind) + ":" + out[i].ID
	}
	return out, nil
}

func (f *fakeBackend) FetchModelPerformance(ctx context.Context, creds auth.Credentials, q performance.Query) (performance.ModelResult, error) {
	if err := f.wait(ctx, f.record(creds, q)); err != nil {
		return performance.ModelResult{}, err
	}
	if f.err != nil {
		return performance.ModelResult{}, f.err
	}
	return f.models, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}
