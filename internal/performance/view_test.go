package performance_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/period"
)

func TestViewLatestSelectionWins(t *testing.T) {
	backend := &fakeBackend{
		brands:  []performance.Record{rec("a", 5, "50")},
		gates:   map[string]chan struct{}{"week": make(chan struct{})},
		started: make(chan string, 4),
	}
	view := performance.NewView(newService(backend, nil))

	type outcome struct {
		report *performance.Report
		err    error
	}
	weekDone := make(chan outcome, 1)
	go func() {
		report, err := view.Select(context.Background(), dealer, performance.Request{
			Scope:     performance.ScopeBrand,
			Selection: period.Named(period.Week),
		})
		weekDone <- outcome{report, err}
	}()
	require.Equal(t, "week", <-backend.started)
	require.True(t, view.Loading())
	require.Nil(t, view.Current())

	yearReport, err := view.Select(context.Background(), dealer, performance.Request{
		Scope:     performance.ScopeBrand,
		Selection: period.Named(period.Year),
	})
	require.NoError(t, err)
	require.Equal(t, "year:a", yearReport.Records[0].ID)

	select {
	case week := <-weekDone:
		require.ErrorIs(t, week.err, performance.ErrSuperseded)
		require.Nil(t, week.report)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded week fetch was not canceled")
	}

	require.Same(t, yearReport, view.Current())
	require.NoError(t, view.Err())
	require.False(t, view.Loading())
	req, ok := view.Selection()
	require.True(t, ok)
	require.Equal(t, period.Year, req.Selection.Kind)
}

func TestViewSupersededResponseArrivingLateIsDropped(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		brands:       []performance.Record{rec("a", 5, "50")},
		gates:        map[string]chan struct{}{"week": release},
		started:      make(chan string, 4),
		ignoreCancel: true,
	}
	view := performance.NewView(newService(backend, nil))

	weekDone := make(chan error, 1)
	go func() {
		_, err := view.Select(context.Background(), dealer, performance.Request{
			Scope:     performance.ScopeBrand,
			Selection: period.Named(period.Week),
		})
		weekDone <- err
	}()
	<-backend.started

	yearReport, err := view.Select(context.Background(), dealer, performance.Request{
		Scope:     performance.ScopeBrand,
		Selection: period.Named(period.Year),
	})
	require.NoError(t, err)
	close(release)

	require.ErrorIs(t, <-weekDone, performance.ErrSuperseded)
	require.Same(t, yearReport, view.Current())
}

func TestViewFailureClearsReport(t *testing.T) {
	backend := &fakeBackend{brands: []performance.Record{rec("a", 1, "1")}}
	view := performance.NewView(newService(backend, nil))
	req := performance.Request{Scope: performance.ScopeBrand, Selection: period.Named(period.Month)}

	_, err := view.Select(context.Background(), dealer, req)
	require.NoError(t, err)
	require.NotNil(t, view.Current())

	backend.err = &performance.FetchError{Status: http.StatusInternalServerError, Message: "boom"}
	_, err = view.Refresh(context.Background(), dealer)
	require.Error(t, err)
	require.Nil(t, view.Current(), "a failed fetch must not leave the old report looking current")
	var fetchErr *performance.FetchError
	require.ErrorAs(t, view.Err(), &fetchErr)
	require.Equal(t, "boom", fetchErr.Message)
}

func TestViewInvalidRangeKeepsState(t *testing.T) {
	backend := &fakeBackend{brands: []performance.Record{rec("a", 1, "1")}}
	view := performance.NewView(newService(backend, nil))

	loaded, err := view.Select(context.Background(), dealer, performance.Request{Scope: performance.ScopeBrand, Selection: period.Named(period.Month)})
	require.NoError(t, err)

	bad := period.Between(fixedNow, fixedNow.AddDate(0, 0, -1))
	_, err = view.Select(context.Background(), dealer, performance.Request{Scope: performance.ScopeBrand, Selection: bad})
	require.ErrorIs(t, err, period.ErrInvalidRange)
	require.Same(t, loaded, view.Current())
	require.Equal(t, 1, backend.calls())
}

func TestViewRefresh(t *testing.T) {
	backend := &fakeBackend{}
	view := performance.NewView(newService(backend, nil))

	_, err := view.Refresh(context.Background(), dealer)
	require.ErrorIs(t, err, performance.ErrNoSelection)

	_, err = view.Select(context.Background(), dealer, performance.Request{Scope: performance.ScopeModel, Selection: period.Named(period.Lifetime)})
	require.NoError(t, err)
	report, err := view.Refresh(context.Background(), dealer)
	require.NoError(t, err)
	require.Equal(t, performance.ScopeModel, report.Scope)
	require.Equal(t, 2, backend.calls())
}
