package performance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/period"
)

// Query scopes a backend request to a dealer and resolved interval.
type Query struct {
	DealerID string
	Kind     period.Kind
	Interval period.Interval
}

// Values encodes the query parameters understood by the dealer backend.
// Bounds are omitted for unbounded intervals.
func (q Query) Values() url.Values {
	values := url.Values{}
	values.Set("dealerId", q.DealerID)
	values.Set("period", string(q.Kind))
	q.Interval.Encode(values)
	return values
}

// ModelResult is the model-scope response. The backend may echo the bounds
// it applied; Interval is empty when it does not.
type ModelResult struct {
	Records  []Record
	Interval period.Interval
}

// Backend is the dealer backend capability the aggregator reads from. It is
// the only source of aggregated totals.
type Backend interface {
	FetchBrandPerformance(ctx context.Context, creds auth.Credentials, q Query) ([]Record, error)
	FetchModelPerformance(ctx context.Context, creds auth.Credentials, q Query) (ModelResult, error)
}

// FetchError reports a failed backend read. Message carries the backend's
// own message when it supplied one.
type FetchError struct {
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status > 0 {
		return fmt.Sprintf("performance: backend returned %d: %s", e.Status, e.Message)
	}
	return "performance: backend request failed: " + e.Message
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Unauthorized reports whether the backend rejected the caller's credentials.
func (e *FetchError) Unauthorized() bool {
	return e != nil && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}
