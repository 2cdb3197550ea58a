package export

import (
	"io"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageMargin = 14.0
	rowHeight  = 7.0
)

// renderPDF lays every section out as a heading, its preamble lines and a
// bordered table. uncompressed keeps content streams readable for inspection.
func renderPDF(w io.Writer, t Table, uncompressed bool) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(!uncompressed)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	if t.Title != "" {
		pdf.SetTitle(t.Title, true)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if t.Title != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.Cell(0, 10, tr(t.Title))
		pdf.Ln(12)
	}

	pageWidth, _ := pdf.GetPageSize()
	usable := pageWidth - 2*pageMargin
	for i, section := range t.Sections {
		if i > 0 {
			pdf.AddPage()
		}
		pdf.SetFont("Arial", "", 11)
		for _, line := range section.Preamble {
			pdf.Cell(0, 6, tr(line))
			pdf.Ln(7)
		}
		if len(section.Preamble) > 0 {
			pdf.Ln(2)
		}
		if len(section.Columns) == 0 {
			continue
		}
		width := usable / float64(len(section.Columns))

		header := func() {
			pdf.SetFont("Arial", "B", 10)
			pdf.SetFillColor(226, 232, 240)
			for _, col := range section.Columns {
				pdf.CellFormat(width, rowHeight, fit(pdf, tr(col), width), "1", 0, "C", true, 0, "")
			}
			pdf.Ln(-1)
			pdf.SetFont("Arial", "", 10)
		}
		header()
		_, pageHeight := pdf.GetPageSize()
		for _, row := range section.Rows {
			if pdf.GetY()+rowHeight > pageHeight-pageMargin {
				pdf.AddPage()
				header()
			}
			for j, cell := range row {
				if j >= len(section.Columns) {
					break
				}
				align := "L"
				if cell.Kind != TextCell {
					align = "R"
				}
				pdf.CellFormat(width, rowHeight, fit(pdf, tr(cell.String()), width), "1", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

const ellipsis = "..."

// fit shortens already translated text with an ellipsis until it fits inside
// a cell of the given width at the current font. Translated text is single
// byte encoded, so trimming bytes never splits a glyph.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	avail := width - 2*pdf.GetCellMargin()
	if pdf.GetStringWidth(text) <= avail {
		return text
	}
	for n := len(text) - 1; n > 0; n-- {
		if candidate := text[:n] + ellipsis; pdf.GetStringWidth(candidate) <= avail {
			return candidate
		}
	}
	if pdf.GetStringWidth(ellipsis) <= avail {
		return ellipsis
	}
	return ""
}
