package stock

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/dealer-insights/internal/export"
)

// FileBase names stock exports.
const FileBase = "stock_data"

func columns(price decimal.Decimal) []export.Column[Event] {
	return []export.Column[Event]{
		{Header: "S.No", Value: func(i int, _ Event) export.Cell { return export.Int(int64(i + 1)) }},
		{Header: "Date", Value: func(_ int, ev Event) export.Cell { return export.Text(ev.Date.Format("2006-01-02")) }},
		{Header: "Quantity", Value: func(_ int, ev Event) export.Cell { return export.Int(ev.Quantity) }},
		{Header: "Stock", Value: func(_ int, ev Event) export.Cell { return export.Int(ev.CurrentTotalQuantity) }},
		{Header: "Amount", Value: func(_ int, ev Event) export.Cell {
			return export.Number(decimal.NewFromInt(ev.Quantity).Mul(price).Round(2))
		}},
	}
}

// BuildTable lays out one section per item, headed by its brand and model.
func BuildTable(items []Item) export.Table {
	sections := make([]export.Section, 0, len(items))
	for i, item := range items {
		section := export.Build(fmt.Sprintf("Stock %d", i+1), columns(item.Price), item.History)
		section.Preamble = []string{
			"Brand Name: " + item.BrandName,
			"Model Name: " + item.ModelName,
		}
		sections = append(sections, section)
	}
	return export.Table{Title: "Stock Data", Sections: sections}
}
