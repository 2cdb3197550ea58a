package period_test

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dealer-insights/internal/period"
)

func TestResolveMonthScenario(t *testing.T) {
	now := time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC)
	iv, err := period.Resolve(period.Named(period.Month), now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), *iv.Start)
	require.Equal(t, time.Date(2024, time.June, 30, 23, 59, 59, 0, time.UTC), *iv.End)
	require.Equal(t, "1 June 2024 to 30 June 2024", iv.Label())
}

func TestResolveNamedKindsAreOrdered(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	instants := []time.Time{
		time.Date(2024, time.January, 1, 0, 0, 0, 0, loc),
		time.Date(2024, time.February, 29, 12, 0, 0, 0, loc),
		time.Date(2023, time.December, 31, 23, 59, 59, 0, loc),
		time.Date(2025, time.July, 4, 8, 0, 0, 0, time.UTC),
	}
	for _, now := range instants {
		for _, kind := range []period.Kind{period.Week, period.Month, period.Quarter, period.Year} {
			iv, err := period.Resolve(period.Named(kind), now)
			require.NoError(t, err)
			require.NotNil(t, iv.Start, "%s start", kind)
			require.NotNil(t, iv.End, "%s end", kind)
			require.False(t, iv.Start.After(*iv.End), "%s at %s", kind, now)
			require.False(t, now.Before(*iv.Start), "%s must contain now", kind)
			require.False(t, now.After(*iv.End), "%s must contain now", kind)
		}
	}
}

func TestResolveWeek(t *testing.T) {
	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	iv, err := period.Resolve(period.Named(period.Week), now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC), *iv.Start)
	require.Equal(t, now, *iv.End)
}

func TestResolveQuarter(t *testing.T) {
	cases := []struct {
		now   time.Time
		start time.Time
		end   time.Time
	}{
		{
			now:   time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC),
			start: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			now:   time.Date(2024, time.June, 30, 23, 0, 0, 0, time.UTC),
			start: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, time.June, 30, 23, 59, 59, 0, time.UTC),
		},
		{
			now:   time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC),
			start: time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		iv, err := period.Resolve(period.Named(period.Quarter), tc.now)
		require.NoError(t, err)
		require.Equal(t, tc.start, *iv.Start)
		require.Equal(t, tc.end, *iv.End)
	}
}

func TestResolveYear(t *testing.T) {
	iv, err := period.Resolve(period.Named(period.Year), time.Date(2024, time.May, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), *iv.Start)
	require.Equal(t, time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC), *iv.End)
}

func TestResolveLifetimeIsUnbounded(t *testing.T) {
	iv, err := period.Resolve(period.Named(period.Lifetime), time.Now())
	require.NoError(t, err)
	require.Nil(t, iv.Start)
	require.Nil(t, iv.End)
	require.True(t, iv.Unbounded())
	require.Equal(t, "Lifetime", iv.Label())

	q := url.Values{}
	iv.Encode(q)
	require.Empty(t, q)
}

func TestResolveCustom(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)

	iv, err := period.Resolve(period.Between(start, end), time.Now())
	require.NoError(t, err)
	require.Equal(t, start, *iv.Start)
	require.Equal(t, end, *iv.End)

	_, err = period.Resolve(period.Between(start, start), time.Now())
	require.NoError(t, err, "equal bounds are a valid range")
}

func TestResolveCustomInvalidRange(t *testing.T) {
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, gap := range []time.Duration{time.Nanosecond, time.Second, 24 * time.Hour, 400 * 24 * time.Hour} {
		_, err := period.Resolve(period.Between(base.Add(gap), base), time.Now())
		require.ErrorIs(t, err, period.ErrInvalidRange)
	}

	start := base
	_, err := period.Resolve(period.Selection{Kind: period.Custom, Start: &start}, time.Now())
	require.ErrorIs(t, err, period.ErrInvalidRange)
}

func TestParseSelection(t *testing.T) {
	loc := time.UTC

	sel, err := period.ParseSelection("", "", "", period.DefaultKind, loc)
	require.NoError(t, err)
	require.Equal(t, period.Quarter, sel.Kind)

	sel, err = period.ParseSelection("YEAR", "2024-01-01", "2024-02-01", period.DefaultKind, loc)
	require.NoError(t, err)
	require.Equal(t, period.Year, sel.Kind)
	require.Nil(t, sel.Start, "bounds are ignored for named kinds")

	sel, err = period.ParseSelection("custom", "2024-01-01", "2024-01-31", period.DefaultKind, loc)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.January, 31, 23, 59, 59, 0, loc), *sel.End)

	sel, err = period.ParseSelection("custom", "2024-01-01T00:00:00+05:30", "2024-01-02T00:00:00+05:30", period.DefaultKind, loc)
	require.NoError(t, err)
	require.Equal(t, "2024-01-01T00:00:00+05:30", sel.Start.Format(time.RFC3339))

	_, err = period.ParseSelection("custom", "2024-02-01", "2024-01-01", period.DefaultKind, loc)
	require.ErrorIs(t, err, period.ErrInvalidRange)

	_, err = period.ParseSelection("custom", "yesterday", "2024-01-01", period.DefaultKind, loc)
	require.ErrorIs(t, err, period.ErrInvalidRange)

	_, err = period.ParseSelection("decade", "", "", period.DefaultKind, loc)
	require.Error(t, err)
	require.False(t, errors.Is(err, period.ErrInvalidRange))
}

func TestIntervalEncodeUsesOffsets(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	iv, err := period.Resolve(period.Named(period.Month), time.Date(2024, time.June, 15, 0, 0, 0, 0, loc))
	require.NoError(t, err)

	q := url.Values{}
	iv.Encode(q)
	require.Equal(t, "2024-06-01T00:00:00+05:30", q.Get("startDate"))
	require.Equal(t, "2024-06-30T23:59:59+05:30", q.Get("endDate"))
	require.Equal(t, "20240601000000+0530-20240630235959+0530", iv.Key())
}
