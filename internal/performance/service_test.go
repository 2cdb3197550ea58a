package performance_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/period"
)

var (
	fixedNow = time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC)
	dealer   = auth.Credentials{Token: "token-1", DealerID: "dealer-1"}
)

func newService(backend performance.Backend, cache *performance.Cache) *performance.Service {
	return performance.NewService(performance.ServiceConfig{
		Backend:  backend,
		Cache:    cache,
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
		Logger:   zerolog.Nop(),
	})
}

func TestFetchReportRanksBrandsByAmount(t *testing.T) {
	backend := &fakeBackend{brands: []performance.Record{
		rec("honda", 500, "1000"),
		rec("tvs", 100, "5000"),
		rec("bajaj", 40, "2500.75"),
	}}
	svc := newService(backend, nil)

	report, err := svc.FetchReport(context.Background(), dealer, performance.Request{
		Scope:     performance.ScopeBrand,
		Selection: period.Named(period.Month),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"tvs", "bajaj", "honda"}, names(report.Records))
	require.Equal(t, performance.SortAmount, report.SortKey)
	require.Equal(t, "dealer-1", report.DealerID)
	require.Equal(t, "1 June 2024 to 30 June 2024", report.Interval.Label())
	require.False(t, report.Empty())

	require.Len(t, backend.queries, 1)
	values := backend.queries[0].Values()
	require.Equal(t, "dealer-1", values.Get("dealerId"))
	require.Equal(t, "month", values.Get("period"))
	require.Equal(t, "2024-06-01T00:00:00Z", values.Get("startDate"))
	require.Equal(t, "2024-06-30T23:59:59Z", values.Get("endDate"))
	require.Equal(t, "token-1", backend.creds[0].Token)
}

func TestFetchReportLifetimeSendsNoBounds(t *testing.T) {
	backend := &fakeBackend{}
	svc := newService(backend, nil)

	report, err := svc.FetchReport(context.Background(), dealer, performance.Request{
		Scope:     performance.ScopeBrand,
		Selection: period.Named(period.Lifetime),
	})
	require.NoError(t, err)
	require.True(t, report.Empty())
	values := backend.queries[0].Values()
	require.False(t, values.Has("startDate"))
	require.False(t, values.Has("endDate"))
	require.Equal(t, "lifetime", values.Get("period"))
}

func TestFetchReportRejectsInvalidRangeWithoutRequest(t *testing.T) {
	backend := &fakeBackend{}
	svc := newService(backend, nil)

	sel := period.Between(fixedNow, fixedNow.Add(-time.Hour))
	_, err := svc.FetchReport(context.Background(), dealer, performance.Request{Scope: performance.ScopeBrand, Selection: sel})
	require.ErrorIs(t, err, period.ErrInvalidRange)
	require.Zero(t, backend.calls())
}

func TestFetchReportModelsKeepBackendOrder(t *testing.T) {
	price := decimal.RequireFromString("75000")
	start := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 30, 23, 59, 59, 0, time.UTC)
	backend := &fakeBackend{models: performance.ModelResult{
		Records: []performance.Record{
			{ID: "m1", Name: "Shine", TotalQuantity: 3, TotalAmount: decimal.NewFromInt(225000), UnitPrice: &price},
			{ID: "m2", Name: "Activa", TotalQuantity: 9, TotalAmount: decimal.NewFromInt(675000), UnitPrice: &price},
		},
		Interval: period.Interval{Start: &start, End: &end},
	}}
	svc := newService(backend, nil)

	report, err := svc.FetchReport(context.Background(), dealer, performance.Request{
		Scope:     performance.ScopeModel,
		Selection: period.Named(period.Quarter),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Shine", "Activa"}, names(report.Records))
	require.Equal(t, performance.SortNone, report.SortKey)
	require.Equal(t, "1 April 2024 to 30 June 2024", report.Interval.Label())

	report, err = svc.FetchReport(context.Background(), dealer, performance.Request{
		Scope:     performance.ScopeModel,
		Selection: period.Named(period.Quarter),
		Sort:      performance.SortQuantity,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Activa", "Shine"}, names(report.Records))
}

func TestFetchReportUsesRequestedDealer(t *testing.T) {
	backend := &fakeBackend{}
	svc := newService(backend, nil)

	_, err := svc.FetchReport(context.Background(), dealer, performance.Request{
		Scope:     performance.ScopeBrand,
		DealerID:  "dealer-9",
		Selection: period.Named(period.Week),
	})
	require.NoError(t, err)
	require.Equal(t, "dealer-9", backend.queries[0].DealerID)

	_, err = svc.FetchReport(context.Background(), auth.Credentials{Token: "t"}, performance.Request{
		Scope:     performance.ScopeBrand,
		Selection: period.Named(period.Week),
	})
	require.ErrorIs(t, err, performance.ErrMissingDealer)
}

func TestFetchReportSurfacesFetchError(t *testing.T) {
	backendErr := &performance.FetchError{Status: http.StatusBadGateway, Message: "inventory offline"}
	svc := newService(&fakeBackend{err: backendErr}, nil)

	_, err := svc.FetchReport(context.Background(), dealer, performance.Request{Scope: performance.ScopeBrand, Selection: period.Named(period.Year)})
	var fetchErr *performance.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, "inventory offline", fetchErr.Message)
	require.False(t, fetchErr.Unauthorized())

	plain := errors.New("dial tcp: connection refused")
	svc = newService(&fakeBackend{err: plain}, nil)
	_, err = svc.FetchReport(context.Background(), dealer, performance.Request{Scope: performance.ScopeBrand, Selection: period.Named(period.Year)})
	require.ErrorAs(t, err, &fetchErr)
	require.ErrorIs(t, err, plain)
	require.Zero(t, fetchErr.Status)
}

func TestFetchReportCachesBackendResults(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backend := &fakeBackend{brands: []performance.Record{rec("a", 1, "10.25"), rec("b", 2, "20")}}
	cache := performance.NewCache(client, time.Minute)
	svc := newService(backend, cache)
	req := performance.Request{Scope: performance.ScopeBrand, Selection: period.Named(period.Month)}

	first, err := svc.FetchReport(context.Background(), dealer, req)
	require.NoError(t, err)
	second, err := svc.FetchReport(context.Background(), dealer, req)
	require.NoError(t, err)
	require.Equal(t, 1, backend.calls())
	require.Equal(t, names(first.Records), names(second.Records))
	require.True(t, first.Records[1].TotalAmount.Equal(second.Records[1].TotalAmount))

	key := cache.Key(performance.ScopeBrand, backend.queries[0])
	require.Equal(t, "perf:brand:dealer-1:month:20240601000000Z-20240630235959Z", key)
	require.True(t, mr.Exists(key))

	req.Fresh = true
	_, err = svc.FetchReport(context.Background(), dealer, req)
	require.NoError(t, err)
	require.Equal(t, 2, backend.calls())

	mr.FastForward(2 * time.Minute)
	require.False(t, mr.Exists(key))
}

func TestFetchReportCachesCustomIntervalsExactly(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backend := &fakeBackend{brands: []performance.Record{rec("a", 1, "10")}}
	svc := newService(backend, performance.NewCache(client, time.Minute))
	start := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

	for _, end := range []time.Time{start.Add(5 * time.Second), start.Add(35 * time.Second), start.Add(5 * time.Second)} {
		report, err := svc.FetchReport(context.Background(), dealer, performance.Request{
			Scope:     performance.ScopeBrand,
			Selection: period.Between(start, end),
		})
		require.NoError(t, err)
		require.Equal(t, end, *report.Interval.End)
	}
	require.Equal(t, 2, backend.calls(), "ranges within one minute are distinct entries")
}

func TestCacheKeySharesRollingWeekWithinMinute(t *testing.T) {
	cache := performance.NewCache(nil, time.Minute)
	at := func(sec int) performance.Query {
		now := time.Date(2024, time.June, 15, 10, 30, sec, 0, time.UTC)
		iv, err := period.Resolve(period.Named(period.Week), now)
		require.NoError(t, err)
		return performance.Query{DealerID: "dealer-1", Kind: period.Week, Interval: iv}
	}
	require.Equal(t, cache.Key(performance.ScopeBrand, at(5)), cache.Key(performance.ScopeBrand, at(50)))
	require.Equal(t, "perf:brand:dealer-1:week:20240608103000Z-20240615103000Z", cache.Key(performance.ScopeBrand, at(5)))
}

func TestCacheDisabledWithoutTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.False(t, performance.NewCache(client, 0).Enabled())
	require.False(t, performance.NewCache(nil, time.Minute).Enabled())

	backend := &fakeBackend{}
	svc := newService(backend, performance.NewCache(client, 0))
	req := performance.Request{Scope: performance.ScopeBrand, Selection: period.Named(period.Month)}
	_, _ = svc.FetchReport(context.Background(), dealer, req)
	_, _ = svc.FetchReport(context.Background(), dealer, req)
	require.Equal(t, 2, backend.calls())
	require.Empty(t, mr.Keys())
}
