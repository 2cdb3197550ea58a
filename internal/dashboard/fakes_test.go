package dashboard_test

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/period"
	"github.com/noah-isme/dealer-insights/internal/stock"
)

var fixedNow = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

func rec(id string, qty, amount int64) performance.Record {
	return performance.Record{ID: id, Name: "Brand " + id, TotalQuantity: qty, TotalAmount: decimal.NewFromInt(amount)}
}

// fakeFetcher serves canned records per period kind. Fetches for kinds with a
// gate block until the gate is closed or the fetch is cancelled.
type fakeFetcher struct {
	mu      sync.Mutex
	records map[period.Kind][]performance.Record
	gates   map[period.Kind]chan struct{}
	err     error
	calls   []performance.Request
	started chan period.Kind
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		records: map[period.Kind][]performance.Record{},
		gates:   map[period.Kind]chan struct{}{},
		started: make(chan period.Kind, 16),
	}
}

func (f *fakeFetcher) FetchReport(ctx context.Context, creds auth.Credentials, req performance.Request) (*performance.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	gate := f.gates[req.Selection.Kind]
	records := f.records[req.Selection.Kind]
	err := f.err
	f.mu.Unlock()

	f.started <- req.Selection.Kind
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	iv, err := period.Resolve(req.Selection, fixedNow)
	if err != nil {
		return nil, err
	}
	dealerID := req.DealerID
	if dealerID == "" {
		dealerID = creds.DealerID
	}
	sortKey := req.Sort
	if sortKey == "" {
		sortKey = req.Scope.DefaultSort()
	}
	return &performance.Report{
		Scope:     req.Scope,
		DealerID:  dealerID,
		Selection: req.Selection,
		Interval:  iv,
		SortKey:   sortKey,
		Records:   performance.Rank(records, sortKey),
		FetchedAt: fixedNow,
	}, nil
}

func (f *fakeFetcher) requests() []performance.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]performance.Request(nil), f.calls...)
}

type fakeStock struct {
	summary stock.Summary
	items   []stock.Item
	err     error
}

func (f fakeStock) Summary(context.Context, auth.Credentials) (stock.Summary, error) {
	return f.summary, f.err
}

func (f fakeStock) History(_ context.Context, _ auth.Credentials, filter stock.Filter) ([]stock.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return stock.Apply(f.items, filter), nil
}
