package backend

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/dealer-insights/internal/auth"
	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/period"
	"github.com/noah-isme/dealer-insights/internal/stock"
)

type summaryPayload struct {
	TotalQuantity quantity        `json:"totalQuantity"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

type eventRow struct {
	Date                 string   `json:"date"`
	Quantity             quantity `json:"quantity"`
	CurrentTotalQuantity quantity `json:"currentTotalQuantity"`
}

type stockRow struct {
	BrandID      id              `json:"brandId"`
	BrandName    string          `json:"brandName"`
	ModelID      id              `json:"modelId"`
	ModelName    string          `json:"modelName"`
	Price        decimal.Decimal `json:"price"`
	StockHistory []eventRow      `json:"stockHistory"`
}

// FetchSummary implements stock.Backend.
func (c *Client) FetchSummary(ctx context.Context, creds auth.Credentials) (stock.Summary, error) {
	var payload summaryPayload
	if err := c.get(ctx, creds, "/summary", nil, &payload); err != nil {
		return stock.Summary{}, err
	}
	return stock.Summary{TotalQuantity: int64(payload.TotalQuantity), TotalAmount: payload.TotalAmount}, nil
}

// FetchStock implements stock.Backend.
func (c *Client) FetchStock(ctx context.Context, creds auth.Credentials) ([]stock.Item, error) {
	var rows []stockRow
	if err := c.get(ctx, creds, "/stock", nil, &rows); err != nil {
		return nil, err
	}
	items := make([]stock.Item, 0, len(rows))
	for _, row := range rows {
		item := stock.Item{
			BrandID:   string(row.BrandID),
			BrandName: row.BrandName,
			ModelID:   string(row.ModelID),
			ModelName: row.ModelName,
			Price:     row.Price,
			History:   make([]stock.Event, 0, len(row.StockHistory)),
		}
		for _, ev := range row.StockHistory {
			date, err := period.ParseDate(ev.Date, time.UTC, false)
			if err != nil {
				return nil, &performance.FetchError{Message: "malformed stock history date", Err: err}
			}
			item.History = append(item.History, stock.Event{
				Date:                 date,
				Quantity:             int64(ev.Quantity),
				CurrentTotalQuantity: int64(ev.CurrentTotalQuantity),
			})
		}
		items = append(items, item)
	}
	return items, nil
}
