package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRange is returned when a custom selection is incomplete or its start is after its end.
var ErrInvalidRange = errors.New("period: invalid range")

// Kind names a reporting window.
type Kind string

const (
	Week     Kind = "week"
	Month    Kind = "month"
	Quarter  Kind = "quarter"
	Year     Kind = "year"
	Lifetime Kind = "lifetime"
	Custom   Kind = "custom"
)

// DefaultKind is the window shown before the user picks one.
const DefaultKind = Quarter

// Kinds lists every supported kind in display order.
func Kinds() []Kind {
	return []Kind{Week, Month, Quarter, Year, Lifetime, Custom}
}

// ParseKind converts a wire token into a Kind. An empty token yields the fallback.
func ParseKind(raw string, fallback Kind) (Kind, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "" {
		return fallback, nil
	}
	for _, k := range Kinds() {
		if string(k) == token {
			return k, nil
		}
	}
	return "", fmt.Errorf("period: unknown kind %q", raw)
}

// Selection is the user's choice of window. Start and End are only meaningful for Custom.
type Selection struct {
	Kind  Kind       `json:"kind"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Named builds a selection for one of the relative kinds.
func Named(kind Kind) Selection {
	return Selection{Kind: kind}
}

// Between builds a custom selection.
func Between(start, end time.Time) Selection {
	return Selection{Kind: Custom, Start: &start, End: &end}
}

// Validate reports ErrInvalidRange for malformed custom selections.
func (s Selection) Validate() error {
	switch s.Kind {
	case Week, Month, Quarter, Year, Lifetime:
		return nil
	case Custom:
		if s.Start == nil || s.End == nil {
			return fmt.Errorf("%w: custom period requires start and end", ErrInvalidRange)
		}
		if s.Start.After(*s.End) {
			return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
		}
		return nil
	default:
		return fmt.Errorf("period: unknown kind %q", s.Kind)
	}
}

// Interval is a resolved window. A nil bound means unbounded.
type Interval struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// Unbounded reports whether the interval applies no date filter.
func (iv Interval) Unbounded() bool {
	return iv.Start == nil && iv.End == nil
}

// Resolve computes the concrete interval for sel relative to now. Calendar
// bounds are computed in now's location.
func Resolve(sel Selection, now time.Time) (Interval, error) {
	if err := sel.Validate(); err != nil {
		return Interval{}, err
	}
	loc := now.Location()
	switch sel.Kind {
	case Week:
		return bounded(now.AddDate(0, 0, -7), now), nil
	case Month:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return bounded(start, endOfDay(start.AddDate(0, 1, -1))), nil
	case Quarter:
		quarter := (int(now.Month())-1)/3 + 1
		start := time.Date(now.Year(), time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, loc)
		return bounded(start, endOfDay(start.AddDate(0, 3, -1))), nil
	case Year:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		end := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, loc)
		return bounded(start, endOfDay(end)), nil
	case Lifetime:
		return Interval{}, nil
	default:
		return bounded(*sel.Start, *sel.End), nil
	}
}

func bounded(start, end time.Time) Interval {
	return Interval{Start: &start, End: &end}
}

func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
}
