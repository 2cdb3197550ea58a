package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrExport wraps every serialisation failure.
var ErrExport = errors.New("export: serialization failed")

// Format selects an export back-end.
type Format int

const (
	Spreadsheet Format = iota + 1
	PDF
)

// ParseFormat accepts the wire tokens for each format.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "xlsx", "spreadsheet", "excel":
		return Spreadsheet, nil
	case "pdf":
		return PDF, nil
	default:
		return 0, fmt.Errorf("export: unknown format %q", raw)
	}
}

func (f Format) String() string {
	switch f {
	case Spreadsheet:
		return "xlsx"
	case PDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// ContentType is the MIME type of the rendered file.
func (f Format) ContentType() string {
	switch f {
	case Spreadsheet:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case PDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Filename returns base with the format's extension, e.g. performance_data.xlsx.
func Filename(base string, f Format) string {
	return base + "." + f.String()
}

// Render writes t to w in format f.
func Render(w io.Writer, f Format, t Table) error {
	var err error
	switch f {
	case Spreadsheet:
		err = renderSpreadsheet(w, t)
	case PDF:
		err = renderPDF(w, t, false)
	default:
		err = fmt.Errorf("unknown format %d", int(f))
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrExport, f, err)
	}
	return nil
}

// Bytes renders t into memory so a failure never leaves a partial response.
func Bytes(f Format, t Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, f, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
