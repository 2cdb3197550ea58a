package performance

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/obs"
)

var (
	// ErrSuperseded is returned to a Select whose selection was replaced
	// before its fetch completed. Its result is discarded.
	ErrSuperseded = errors.New("performance: selection superseded")
	// ErrNoSelection is returned by Refresh before any selection was made.
	ErrNoSelection = errors.New("performance: no selection to refresh")
)

// Fetcher produces reports. *Service implements it.
type Fetcher interface {
	FetchReport(ctx context.Context, creds auth.Credentials, req Request) (*Report, error)
}

// View holds the report currently displayed for one scope. Only the result
// of the latest selection is ever stored: each Select takes a new sequence
// token and cancels the fetch it replaces.
type View struct {
	fetcher Fetcher

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	request  Request
	selected bool
	loading  bool
	current  *Report
	err      error
}

// NewView constructs an empty view.
func NewView(fetcher Fetcher) *View {
	return &View{fetcher: fetcher}
}

// Select replaces the selection and fetches its report. The displayed report
// is cleared while loading and after a failure. An invalid range is rejected
// without touching the view.
func (v *View) Select(ctx context.Context, creds auth.Credentials, req Request) (*Report, error) {
	if err := req.Selection.Validate(); err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.seq++
	token := v.seq
	if v.cancel != nil {
		v.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.request = req
	v.selected = true
	v.loading = true
	v.current = nil
	v.err = nil
	v.mu.Unlock()

	report, err := v.fetcher.FetchReport(fetchCtx, creds, req)

	v.mu.Lock()
	defer v.mu.Unlock()
	if token != v.seq {
		if obs.SupersededSelections != nil {
			obs.SupersededSelections.Inc()
		}
		return nil, ErrSuperseded
	}
	cancel()
	v.cancel = nil
	v.loading = false
	if err != nil {
		v.err = err
		return nil, err
	}
	v.current = report
	return report, nil
}

// Refresh re-runs the current selection, bypassing cached results.
func (v *View) Refresh(ctx context.Context, creds auth.Credentials) (*Report, error) {
	v.mu.Lock()
	req, ok := v.request, v.selected
	v.mu.Unlock()
	if !ok {
		return nil, ErrNoSelection
	}
	req.Fresh = true
	return v.Select(ctx, creds, req)
}

// Current returns the displayed report, or nil while loading or after a failure.
func (v *View) Current() *Report {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Err returns the failure of the latest selection, if any.
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Loading reports whether the latest selection is still being fetched.
func (v *View) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Selection returns the latest selection, if one was made.
func (v *View) Selection() (Request, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.request, v.selected
}

// Close cancels any in-flight fetch.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}
