// Package export serialises report tables to spreadsheet and PDF files.
// Both back-ends consume the same Table, so headers, order and values are
// identical across formats.
package export

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// CellKind tells back-ends whether a cell is text or a plain number.
type CellKind int

const (
	TextCell CellKind = iota
	IntCell
	NumberCell
)

// Cell is one table value. Numbers never carry currency glyphs or grouping.
type Cell struct {
	Kind  CellKind
	Text  string
	Int   int64
	Float float64
}

// Text builds a text cell.
func Text(s string) Cell { return Cell{Kind: TextCell, Text: s} }

// Int builds an integer cell.
func Int(n int64) Cell { return Cell{Kind: IntCell, Int: n} }

// Number builds a numeric cell from a decimal amount.
func Number(d decimal.Decimal) Cell {
	return Cell{Kind: NumberCell, Float: d.InexactFloat64()}
}

// String is the plain rendering shared by the PDF back-end and the on-screen table.
func (c Cell) String() string {
	switch c.Kind {
	case IntCell:
		return strconv.FormatInt(c.Int, 10)
	case NumberCell:
		return strconv.FormatFloat(c.Float, 'f', -1, 64)
	default:
		return c.Text
	}
}

// Value is the typed value written to spreadsheet cells.
func (c Cell) Value() any {
	switch c.Kind {
	case IntCell:
		return c.Int
	case NumberCell:
		return c.Float
	default:
		return c.Text
	}
}

// Column maps a row value of type T to one cell under Header.
type Column[T any] struct {
	Header string
	Value  func(index int, row T) Cell
}

// Section is one sheet of a spreadsheet and one block of a PDF.
type Section struct {
	// Name is the sheet name.
	Name string
	// Preamble lines precede the header row.
	Preamble []string
	Columns  []string
	Rows     [][]Cell
}

// Table is a complete export document.
type Table struct {
	// Title heads the PDF document.
	Title    string
	Sections []Section
}

// Build maps rows through columns into a section. The column order is the
// order of the slice.
func Build[T any](name string, columns []Column[T], rows []T) Section {
	section := Section{Name: name, Columns: make([]string, len(columns)), Rows: make([][]Cell, 0, len(rows))}
	for i, col := range columns {
		section.Columns[i] = col.Header
	}
	for i, row := range rows {
		cells := make([]Cell, len(columns))
		for j, col := range columns {
			cells[j] = col.Value(i, row)
		}
		section.Rows = append(section.Rows, cells)
	}
	return section
}

// Strings renders the section rows as plain strings.
func (s Section) Strings() [][]string {
	out := make([][]string, len(s.Rows))
	for i, row := range s.Rows {
		line := make([]string, len(row))
		for j, cell := range row {
			line[j] = cell.String()
		}
		out[i] = line
	}
	return out
}
