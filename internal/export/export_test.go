package export

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type row struct {
	name   string
	qty    int64
	amount string
}

func sampleTable() Table {
	columns := []Column[row]{
		{Header: "Rank", Value: func(i int, _ row) Cell { return Int(int64(i + 1)) }},
		{Header: "Brand", Value: func(_ int, r row) Cell { return Text(r.name) }},
		{Header: "Stock Sold", Value: func(_ int, r row) Cell { return Int(r.qty) }},
		{Header: "Amount", Value: func(_ int, r row) Cell { return Number(decimal.RequireFromString(r.amount)) }},
	}
	rows := []row{
		{"Honda", 500, "1250000.5"},
		{"Hero", 100, "99000"},
		{"Bajaj", 0, "-120.25"},
	}
	return Table{Title: "Top Performing Brands", Sections: []Section{Build("Performance Data", columns, rows)}}
}

var pdfText = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\) ?Tj`)

func pdfStrings(t *testing.T, data []byte) []string {
	t.Helper()
	var out []string
	for _, m := range pdfText.FindAllSubmatch(data, -1) {
		out = append(out, string(m[1]))
	}
	return out
}

func TestSpreadsheetAndPDFMatchTable(t *testing.T) {
	table := sampleTable()
	section := table.Sections[0]
	want := append([][]string{section.Columns}, section.Strings()...)
	require.Equal(t, []string{"1", "Honda", "500", "1250000.5"}, want[1])

	xlsx, err := Bytes(Spreadsheet, table)
	require.NoError(t, err)
	book, err := excelize.OpenReader(bytes.NewReader(xlsx))
	require.NoError(t, err)
	defer book.Close()
	require.Equal(t, []string{"Performance Data"}, book.GetSheetList())
	rows, err := book.GetRows("Performance Data")
	require.NoError(t, err)
	require.Equal(t, want, rows)

	qty, err := book.GetCellType("Performance Data", "C2")
	require.NoError(t, err)
	require.NotEqual(t, excelize.CellTypeSharedString, qty, "quantities are numeric cells")
	require.NotEqual(t, excelize.CellTypeInlineString, qty)

	var buf bytes.Buffer
	require.NoError(t, renderPDF(&buf, table, true))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	texts := pdfStrings(t, buf.Bytes())
	require.Equal(t, "Top Performing Brands", texts[0])
	var flat []string
	for _, line := range want {
		flat = append(flat, line...)
	}
	require.Equal(t, flat, texts[1:])
}

func TestPreambleAndMultipleSections(t *testing.T) {
	columns := []Column[string]{{Header: "S.No", Value: func(i int, _ string) Cell { return Int(int64(i + 1)) }}}
	table := Table{Sections: []Section{
		{Name: "Stock 1", Preamble: []string{"Brand Name: Honda", "Model Name: Shine"}, Columns: []string{"S.No"}, Rows: Build("", columns, []string{"a"}).Rows},
		{Name: "Stock 1", Columns: []string{"S.No"}},
	}}

	xlsx, err := Bytes(Spreadsheet, table)
	require.NoError(t, err)
	book, err := excelize.OpenReader(bytes.NewReader(xlsx))
	require.NoError(t, err)
	defer book.Close()
	require.Equal(t, []string{"Stock 1", "Stock 1 (2)"}, book.GetSheetList())
	rows, err := book.GetRows("Stock 1")
	require.NoError(t, err)
	require.Equal(t, []string{"Brand Name: Honda"}, rows[0])
	require.Equal(t, []string{"Model Name: Shine"}, rows[1])
	require.Equal(t, []string{"S.No"}, rows[3])
	require.Equal(t, []string{"1"}, rows[4])

	var buf bytes.Buffer
	require.NoError(t, renderPDF(&buf, table, true))
	require.Equal(t, []string{"Brand Name: Honda", "Model Name: Shine", "S.No", "1", "S.No"}, pdfStrings(t, buf.Bytes()))
}

func TestSheetNameSanitising(t *testing.T) {
	used := map[string]bool{}
	require.Equal(t, "a-b-c", sheetName("a/b:c", 0, used))
	require.Equal(t, "Sheet 2", sheetName("  ", 1, used))
	long := strings.Repeat("x", 40)
	name := sheetName(long, 2, used)
	require.Len(t, name, maxSheetName)
	require.Len(t, sheetName(long, 3, used), maxSheetName)
	require.NotEqual(t, name, sheetName(long, 4, used))
}

func TestFormatHelpers(t *testing.T) {
	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	require.Equal(t, Spreadsheet, f)
	require.Equal(t, "performance_data.xlsx", Filename("performance_data", f))
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", f.ContentType())

	f, err = ParseFormat("pdf")
	require.NoError(t, err)
	require.Equal(t, "stock_data.pdf", Filename("stock_data", f))
	require.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("csv")
	require.Error(t, err)

	err = Render(&bytes.Buffer{}, Format(42), Table{})
	require.ErrorIs(t, err, ErrExport)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

var errWrite = errors.New("disk full")

func TestRenderWrapsWriterFailure(t *testing.T) {
	err := Render(failingWriter{}, PDF, sampleTable())
	require.ErrorIs(t, err, ErrExport)
}

func TestPDFShortensTextWiderThanItsColumn(t *testing.T) {
	long := strings.Repeat("Royal Enfield Motors ", 6) + "Limited"
	table := sampleTable()
	table.Sections[0].Rows[1][1] = Text(long)

	var buf bytes.Buffer
	require.NoError(t, renderPDF(&buf, table, true))
	texts := pdfStrings(t, buf.Bytes())
	require.NotContains(t, texts, long)
	require.Contains(t, texts, "Honda", "short names are untouched")

	var shortened string
	for _, text := range texts {
		if strings.HasPrefix(text, "Royal Enfield") {
			shortened = text
		}
	}
	require.NotEmpty(t, shortened)
	require.True(t, strings.HasSuffix(shortened, "..."))
	require.Less(t, len(shortened), len(long))
}

func TestFitKeepsEllipsisInsideCell(t *testing.T) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 10)

	require.Equal(t, "Hero", fit(pdf, "Hero", 40))
	out := fit(pdf, strings.Repeat("W", 40), 20)
	require.True(t, strings.HasSuffix(out, "..."))
	require.LessOrEqual(t, pdf.GetStringWidth(out), 20-2*pdf.GetCellMargin())
	require.Empty(t, fit(pdf, "Honda", 1))
}
