package report

import (
	"github.com/noah-isme/dealer-insights/internal/export"
	"github.com/noah-isme/dealer-insights/internal/performance"
)

// FileBase names performance exports, e.g. performance_data.xlsx.
const FileBase = "performance_data"

const sheetName = "Performance Data"

// Columns is the single column schema shared by the on-screen table and both
// export formats. Model reports add the unit price.
func Columns(scope performance.Scope) []export.Column[performance.Record] {
	name := "Brand"
	if scope == performance.ScopeModel {
		name = "Model"
	}
	columns := []export.Column[performance.Record]{
		{Header: "Rank", Value: func(i int, _ performance.Record) export.Cell { return export.Int(int64(i + 1)) }},
		{Header: name, Value: func(_ int, r performance.Record) export.Cell { return export.Text(r.Name) }},
		{Header: "Stock Sold", Value: func(_ int, r performance.Record) export.Cell { return export.Int(r.TotalQuantity) }},
		{Header: "Amount", Value: func(_ int, r performance.Record) export.Cell { return export.Number(r.TotalAmount) }},
	}
	if scope == performance.ScopeModel {
		columns = append(columns, export.Column[performance.Record]{
			Header: "Model Price",
			Value: func(_ int, r performance.Record) export.Cell {
				if r.UnitPrice == nil {
					return export.Text("")
				}
				return export.Number(*r.UnitPrice)
			},
		})
	}
	return columns
}

// Title heads the PDF export.
func Title(scope performance.Scope) string {
	if scope == performance.ScopeModel {
		return "Top Performing Models"
	}
	return "Top Performing Brands"
}

// BuildTable renders the report's records in ranked order. Rank is the
// 1-based position, never a field of the data.
func BuildTable(r *performance.Report) export.Table {
	var records []performance.Record
	scope := performance.ScopeBrand
	if r != nil {
		records = r.Records
		scope = r.Scope
	}
	return export.Table{
		Title:    Title(scope),
		Sections: []export.Section{export.Build(sheetName, Columns(scope), records)},
	}
}
