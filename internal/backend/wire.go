package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/period"
)

// id accepts string or numeric identifiers.
type id string

func (v *id) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = id(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*v = id(n.String())
	return nil
}

// quantity accepts integral JSON numbers, including ones encoded as 12.0.
type quantity int64

func (q *quantity) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*q = 0
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	*q = quantity(d.IntPart())
	return nil
}

type brandRow struct {
	BrandID       id              `json:"brandId"`
	BrandName     string          `json:"brandName"`
	TotalQuantity quantity        `json:"totalQuantity"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

func (r brandRow) record() performance.Record {
	return performance.Record{
		ID:            string(r.BrandID),
		Name:          r.BrandName,
		TotalQuantity: int64(r.TotalQuantity),
		TotalAmount:   r.TotalAmount,
	}
}

type modelRow struct {
	ModelID       id                  `json:"modelId"`
	ModelName     string              `json:"modelName"`
	TotalQuantity quantity            `json:"totalQuantity"`
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
	ModelPrice    decimal.NullDecimal `json:"modelPrice"`
}

func (r modelRow) record() performance.Record {
	rec := performance.Record{
		ID:            string(r.ModelID),
		Name:          r.ModelName,
		TotalQuantity: int64(r.TotalQuantity),
		TotalAmount:   r.TotalAmount,
	}
	if r.ModelPrice.Valid {
		price := r.ModelPrice.Decimal
		rec.UnitPrice = &price
	}
	return rec
}

// modelPayload decodes either a bare list of rows or the envelope
// {startDate, endDate, performanceData}.
type modelPayload struct {
	rows  []modelRow
	start string
	end   string
}

func (p *modelPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &p.rows)
	}
	var envelope struct {
		StartDate       string     `json:"startDate"`
		EndDate         string     `json:"endDate"`
		PerformanceData []modelRow `json:"performanceData"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	p.rows = envelope.PerformanceData
	p.start = envelope.StartDate
	p.end = envelope.EndDate
	return nil
}

func (p modelPayload) result() (performance.ModelResult, error) {
	result := performance.ModelResult{Records: make([]performance.Record, 0, len(p.rows))}
	for _, row := range p.rows {
		result.Records = append(result.Records, row.record())
	}
	if strings.TrimSpace(p.start) != "" && strings.TrimSpace(p.end) != "" {
		start, err := period.ParseDate(p.start, time.UTC, false)
		if err != nil {
			return performance.ModelResult{}, &performance.FetchError{Message: "malformed period bounds", Err: err}
		}
		end, err := period.ParseDate(p.end, time.UTC, true)
		if err != nil {
			return performance.ModelResult{}, &performance.FetchError{Message: "malformed period bounds", Err: err}
		}
		result.Interval = period.Interval{Start: &start, End: &end}
	}
	return result, nil
}
