package stock

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/dealer-insights/internal/auth"
)

// Summary is the dealer's current stock position.
type Summary struct {
	TotalQuantity int64           `json:"totalQuantity"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

// Event is one stock movement. Quantity is signed: sales are negative.
type Event struct {
	Date                 time.Time `json:"date"`
	Quantity             int64     `json:"quantity"`
	CurrentTotalQuantity int64     `json:"currentTotalQuantity"`
}

// Item is the stock history of one model.
type Item struct {
	BrandID   string          `json:"brandId"`
	BrandName string          `json:"brandName"`
	ModelID   string          `json:"modelId"`
	ModelName string          `json:"modelName"`
	Price     decimal.Decimal `json:"price"`
	History   []Event         `json:"stockHistory"`
}

// Filter narrows a stock history. The date range applies only when both
// bounds are set and is inclusive.
type Filter struct {
	BrandID string
	ModelID string
	Start   *time.Time
	End     *time.Time
}

// Backend reads stock data from the dealer backend.
type Backend interface {
	FetchSummary(ctx context.Context, creds auth.Credentials) (Summary, error)
	FetchStock(ctx context.Context, creds auth.Credentials) ([]Item, error)
}

// Service serves stock summaries and filtered histories.
type Service struct {
	backend Backend
	logger  zerolog.Logger
}

// NewService constructs a Service.
func NewService(backend Backend, logger zerolog.Logger) *Service {
	return &Service{backend: backend, logger: logger.With().Str("component", "stock").Logger()}
}

// Summary returns the dealer's stock totals.
func (s *Service) Summary(ctx context.Context, creds auth.Credentials) (Summary, error) {
	if s.backend == nil {
		return Summary{}, errors.New("stock: backend not configured")
	}
	return s.backend.FetchSummary(ctx, creds)
}

// History returns the dealer's stock history narrowed by f.
func (s *Service) History(ctx context.Context, creds auth.Credentials, f Filter) ([]Item, error) {
	if s.backend == nil {
		return nil, errors.New("stock: backend not configured")
	}
	items, err := s.backend.FetchStock(ctx, creds)
	if err != nil {
		return nil, err
	}
	filtered := Apply(items, f)
	s.logger.Debug().Int("items", len(items)).Int("matched", len(filtered)).Msg("stock_history_filtered")
	return filtered, nil
}

// Apply filters items by brand and model and, when both bounds are set,
// keeps only items with at least one event in range and only those events.
// Events are returned newest first. items is not modified.
func Apply(items []Item, f Filter) []Item {
	brandID := strings.TrimSpace(f.BrandID)
	modelID := strings.TrimSpace(f.ModelID)
	ranged := f.Start != nil && f.End != nil

	out := make([]Item, 0, len(items))
	for _, item := range items {
		if brandID != "" && item.BrandID != brandID {
			continue
		}
		if modelID != "" && item.ModelID != modelID {
			continue
		}
		events := make([]Event, 0, len(item.History))
		for _, ev := range item.History {
			if ranged && (ev.Date.Before(*f.Start) || ev.Date.After(*f.End)) {
				continue
			}
			events = append(events, ev)
		}
		if ranged && len(events) == 0 {
			continue
		}
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Date.After(events[j].Date)
		})
		item.History = events
		out = append(out, item)
	}
	return out
}
