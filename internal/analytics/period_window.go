package analytics

import (
	"fmt"
	"time"

	"famfin/internal/core"
)

// WindowStrategy resolves where a budget period starts relative to now.
// Each budget period has its own strategy.
type WindowStrategy interface {
	// Start returns the first instant of the period containing now, in UTC.
	Start(now time.Time) time.Time
}

// WeeklyWindow starts on Monday 00:00 UTC.
type WeeklyWindow struct{}

func (WeeklyWindow) Start(now time.Time) time.Time {
	day := core.StartOfDay(now)
	sinceMonday := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -sinceMonday)
}

// MonthlyWindow starts on the first day of the current month.
type MonthlyWindow struct{}

func (MonthlyWindow) Start(now time.Time) time.Time {
	return core.StartOfMonth(now)
}

// YearlyWindow starts on January 1st.
type YearlyWindow struct{}

func (YearlyWindow) Start(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

var windowStrategies = map[core.Period]WindowStrategy{
	core.Weekly:  WeeklyWindow{},
	core.Monthly: MonthlyWindow{},
	core.Yearly:  YearlyWindow{},
}

// GetWindowStrategy returns the strategy registered for p.
func GetWindowStrategy(p core.Period) (WindowStrategy, error) {
	s, ok := windowStrategies[p]
	if !ok {
		return nil, core.NewValidationError("period", "unknown budget period %q", p)
	}
	return s, nil
}

// PeriodWindow returns [period start, now) for p.
func PeriodWindow(p core.Period, now time.Time) (core.DateRange, error) {
	s, err := GetWindowStrategy(p)
	if err != nil {
		return core.DateRange{}, err
	}
	now = now.UTC()
	start := s.Start(now)
	if start.After(now) {
		return core.DateRange{}, fmt.Errorf("window strategy for %s started after now", p)
	}
	return core.DateRange{Start: start, End: now}, nil
}
