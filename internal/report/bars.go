package report

import "github.com/noah-isme/dealer-insights/internal/performance"

// MinWidth keeps zero and near-zero entries visible as a sliver.
const MinWidth = 5.0

// Bar pairs a record with its width relative to the largest quantity.
type Bar struct {
	Record       performance.Record
	WidthPercent float64
}

// ComputeBarWidths scales each record's quantity against the report maximum.
// Widths always fall within [MinWidth, 100]; when the maximum is not positive
// every bar gets MinWidth.
func ComputeBarWidths(records []performance.Record) []Bar {
	if len(records) == 0 {
		return []Bar{}
	}
	var maxQuantity int64
	for _, r := range records {
		if r.TotalQuantity > maxQuantity {
			maxQuantity = r.TotalQuantity
		}
	}
	bars := make([]Bar, len(records))
	for i, r := range records {
		width := MinWidth
		if maxQuantity > 0 {
			width = float64(r.TotalQuantity) / float64(maxQuantity) * 100
		}
		bars[i] = Bar{Record: r, WidthPercent: clamp(width)}
	}
	return bars
}

func clamp(width float64) float64 {
	switch {
	case width < MinWidth:
		return MinWidth
	case width > 100:
		return 100
	default:
		return width
	}
}
