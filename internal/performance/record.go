package performance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/dealer-insights/internal/period"
)

// Scope selects whether a report aggregates brands or models.
type Scope string

const (
	ScopeBrand Scope = "brand"
	ScopeModel Scope = "model"
)

// ParseScope accepts the singular and plural wire forms.
func ParseScope(raw string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "brand", "brands":
		return ScopeBrand, nil
	case "model", "models":
		return ScopeModel, nil
	default:
		return "", fmt.Errorf("performance: unknown scope %q", raw)
	}
}

// Plural returns the path segment used by the dealer backend.
func (s Scope) Plural() string {
	return string(s) + "s"
}

// SortKey names the field a report is ranked by.
type SortKey string

const (
	SortAmount   SortKey = "amount"
	SortQuantity SortKey = "quantity"
	// SortNone keeps the order the backend returned.
	SortNone SortKey = "none"
)

// ParseSortKey converts a wire token. An empty token yields "" so the scope
// default applies.
func ParseSortKey(raw string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case "amount", "totalamount":
		return SortAmount, nil
	case "quantity", "totalquantity":
		return SortQuantity, nil
	case "none":
		return SortNone, nil
	default:
		return "", fmt.Errorf("performance: unknown sort key %q", raw)
	}
}

// DefaultSort is the ranking used when the caller does not pick one. Brand
// reports rank by amount; model reports keep the backend order.
func (s Scope) DefaultSort() SortKey {
	if s == ScopeBrand {
		return SortAmount
	}
	return SortNone
}

// Record is one brand or model's aggregated activity within an interval.
// Records are produced by the dealer backend and never modified.
type Record struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	TotalQuantity int64            `json:"totalQuantity"`
	TotalAmount   decimal.Decimal  `json:"totalAmount"`
	UnitPrice     *decimal.Decimal `json:"unitPrice,omitempty"`
}

// Report is a ranked set of records for one scope, dealer and period. A new
// Report replaces the previous one on every selection change.
type Report struct {
	Scope     Scope            `json:"scope"`
	DealerID  string           `json:"dealerId"`
	Selection period.Selection `json:"selection"`
	Interval  period.Interval  `json:"interval"`
	SortKey   SortKey          `json:"sort"`
	Records   []Record         `json:"records"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// Empty reports whether the period produced no records.
func (r *Report) Empty() bool {
	return r == nil || len(r.Records) == 0
}

// Rank returns a copy of records ordered descending by key. Equal values
// keep their input order.
func Rank(records []Record, key SortKey) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	switch key {
	case SortAmount:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].TotalAmount.GreaterThan(out[j].TotalAmount)
		})
	case SortQuantity:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].TotalQuantity > out[j].TotalQuantity
		})
	}
	return out
}
