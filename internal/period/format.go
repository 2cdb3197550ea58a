package period

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const dateOnly = "2006-01-02"

// ParseSelection builds a selection from wire values. Dates may be RFC 3339
// timestamps or plain YYYY-MM-DD dates interpreted in loc; a date-only end
// covers the whole day. Bounds are ignored unless the kind is custom.
func ParseSelection(kind, start, end string, fallback Kind, loc *time.Location) (Selection, error) {
	k, err := ParseKind(kind, fallback)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{Kind: k}
	if k != Custom {
		return sel, nil
	}
	if strings.TrimSpace(start) != "" {
		t, err := ParseDate(start, loc, false)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: startDate: %v", ErrInvalidRange, err)
		}
		sel.Start = &t
	}
	if strings.TrimSpace(end) != "" {
		t, err := ParseDate(end, loc, true)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: endDate: %v", ErrInvalidRange, err)
		}
		sel.End = &t
	}
	return sel, sel.Validate()
}

// ParseDate parses an RFC 3339 timestamp or a YYYY-MM-DD date in loc. With
// endBound set a plain date resolves to 23:59:59 of that day.
func ParseDate(raw string, loc *time.Location, endBound bool) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateOnly, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported date %q", raw)
	}
	if endBound {
		return endOfDay(t), nil
	}
	return t, nil
}

// Encode adds the interval bounds to q as startDate/endDate in RFC 3339 with
// offset. Unbounded intervals add nothing.
func (iv Interval) Encode(q url.Values) {
	if iv.Start != nil {
		q.Set("startDate", iv.Start.Format(time.RFC3339))
	}
	if iv.End != nil {
		q.Set("endDate", iv.End.Format(time.RFC3339))
	}
}

// Key renders the interval at second resolution, the precision bounds are
// parsed and sent with, for use in cache keys.
func (iv Interval) Key() string {
	if iv.Unbounded() {
		return "all"
	}
	const layout = "20060102150405Z0700"
	var start, end string
	if iv.Start != nil {
		start = iv.Start.Format(layout)
	}
	if iv.End != nil {
		end = iv.End.Format(layout)
	}
	return start + "-" + end
}

// Truncate rounds both bounds down to a multiple of d.
func (iv Interval) Truncate(d time.Duration) Interval {
	out := iv
	if iv.Start != nil {
		start := iv.Start.Truncate(d)
		out.Start = &start
	}
	if iv.End != nil {
		end := iv.End.Truncate(d)
		out.End = &end
	}
	return out
}

// Label renders the interval the way the dashboard shows it, e.g.
// "1 June 2024 to 30 June 2024".
func (iv Interval) Label() string {
	if iv.Unbounded() {
		return "Lifetime"
	}
	const layout = "2 January 2006"
	switch {
	case iv.Start == nil:
		return "Until " + iv.End.Format(layout)
	case iv.End == nil:
		return "Since " + iv.Start.Format(layout)
	default:
		return iv.Start.Format(layout) + " to " + iv.End.Format(layout)
	}
}
