package report

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/period"
)

// Display formats amounts for presentation. Exports never use it.
type Display struct {
	symbol  string
	printer *message.Printer
}

// NewDisplay builds a formatter for the currency glyph and BCP 47 locale.
// Unknown locales fall back to en-IN.
func NewDisplay(symbol, locale string) *Display {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.MustParse("en-IN")
	}
	if symbol == "" {
		symbol = "₹"
	}
	return &Display{symbol: symbol, printer: message.NewPrinter(tag)}
}

// Amount renders v with the currency glyph and locale grouping.
func (d *Display) Amount(v decimal.Decimal) string {
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Abs()
	}
	return sign + d.symbol + d.printer.Sprint(number.Decimal(v.InexactFloat64(), number.MaxFractionDigits(2)))
}

// Quantity renders n with locale grouping.
func (d *Display) Quantity(n int64) string {
	return d.printer.Sprint(number.Decimal(n))
}

// BarView is one row of the bar visualisation.
type BarView struct {
	Rank          int              `json:"rank"`
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	TotalQuantity int64            `json:"totalQuantity"`
	TotalAmount   decimal.Decimal  `json:"totalAmount"`
	UnitPrice     *decimal.Decimal `json:"unitPrice,omitempty"`
	DisplayAmount string           `json:"displayAmount"`
	DisplayPrice  string           `json:"displayPrice,omitempty"`
	WidthPercent  float64          `json:"widthPercent"`
}

// TableView is the detail table exactly as it is exported.
type TableView struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// View is the JSON payload of a rendered report.
type View struct {
	Scope     performance.Scope   `json:"scope"`
	DealerID  string              `json:"dealerId"`
	Period    period.Kind         `json:"period"`
	Label     string              `json:"label"`
	Interval  period.Interval     `json:"interval"`
	Sort      performance.SortKey `json:"sort"`
	Empty     bool                `json:"empty"`
	Bars      []BarView           `json:"bars"`
	Table     TableView           `json:"table"`
	FetchedAt time.Time           `json:"fetchedAt"`
}

// Render composes bars, the detail table and the period label for r.
func Render(r *performance.Report, d *Display) View {
	if d == nil {
		d = NewDisplay("", "")
	}
	table := BuildTable(r).Sections[0]
	view := View{
		Empty: r.Empty(),
		Bars:  []BarView{},
		Table: TableView{Columns: table.Columns, Rows: table.Strings()},
	}
	if r == nil {
		return view
	}
	view.Scope = r.Scope
	view.DealerID = r.DealerID
	view.Period = r.Selection.Kind
	view.Label = r.Interval.Label()
	view.Interval = r.Interval
	view.Sort = r.SortKey
	view.FetchedAt = r.FetchedAt

	for i, bar := range ComputeBarWidths(r.Records) {
		bv := BarView{
			Rank:          i + 1,
			ID:            bar.Record.ID,
			Name:          bar.Record.Name,
			TotalQuantity: bar.Record.TotalQuantity,
			TotalAmount:   bar.Record.TotalAmount,
			UnitPrice:     bar.Record.UnitPrice,
			DisplayAmount: d.Amount(bar.Record.TotalAmount),
			WidthPercent:  bar.WidthPercent,
		}
		if bar.Record.UnitPrice != nil {
			bv.DisplayPrice = d.Amount(*bar.Record.UnitPrice)
		}
		view.Bars = append(view.Bars, bv)
	}
	return view
}
