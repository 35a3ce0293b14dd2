package analytics

import (
	"errors"
	"testing"
	"time"

	"famfin/internal/core"
)

func TestPeriodWindow(t *testing.T) {
	// Wednesday.
	now := time.Date(2025, 3, 12, 15, 4, 5, 0, time.UTC)
	cases := []struct {
		period core.Period
		start  time.Time
	}{
		{core.Weekly, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{core.Monthly, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{core.Yearly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			w, err := PeriodWindow(tc.period, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !w.Start.Equal(tc.start) || !w.End.Equal(now) {
				t.Fatalf("expected [%v, %v), got [%v, %v)", tc.start, now, w.Start, w.End)
			}
		})
	}
}

func TestWeeklyWindowEdges(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"monday midnight", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"sunday night", time.Date(2025, 3, 16, 23, 59, 0, 0, time.UTC), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"across month", time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC), time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)},
		{"non-utc input", time.Date(2025, 3, 10, 0, 30, 0, 0, time.FixedZone("CET", 3600)), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (WeeklyWindow{}).Start(tc.now); !got.Equal(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestUnknownPeriodIsValidationError(t *testing.T) {
	if _, err := PeriodWindow("daily", time.Now()); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
