package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

func renderSpreadsheet(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}

	sections := t.Sections
	if len(sections) == 0 {
		sections = []Section{{Name: t.Title}}
	}
	used := make(map[string]bool, len(sections))
	for i, section := range sections {
		name := sheetName(section.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := writeSection(f, name, section, headerStyle); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSection(f *excelize.File, sheet string, section Section, headerStyle int) error {
	row := 1
	for _, line := range section.Preamble {
		if err := f.SetCellValue(sheet, cellName(1, row), line); err != nil {
			return err
		}
		row++
	}
	if len(section.Preamble) > 0 {
		row++
	}

	if len(section.Columns) > 0 {
		header := make([]any, len(section.Columns))
		for i, col := range section.Columns {
			header[i] = col
		}
		if err := f.SetSheetRow(sheet, cellName(1, row), &header); err != nil {
			return err
		}
		if err := f.SetRowStyle(sheet, row, row, headerStyle); err != nil {
			return err
		}
		row++
	}

	for _, cells := range section.Rows {
		values := make([]any, len(cells))
		for i, cell := range cells {
			values[i] = cell.Value()
		}
		if err := f.SetSheetRow(sheet, cellName(1, row), &values); err != nil {
			return err
		}
		row++
	}

	for i, col := range section.Columns {
		width := float64(len(col) + 4)
		if width < 12 {
			width = 12
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	return nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// sheetName returns a valid, unique sheet name for the section.
func sheetName(raw string, index int, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(raw))
	name = strings.Trim(name, "'")
	if name == "" {
		name = fmt.Sprintf("Sheet %d", index+1)
	}
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	base := name
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		runes := []rune(base)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		name = string(runes) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}
