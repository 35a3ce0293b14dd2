package analytics

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"famfin/internal/core"
	"famfin/internal/ledger"
)

type InsightType string

const (
	InsightWarning InsightType = "warning"
	InsightSuccess InsightType = "success"
	InsightInfo    InsightType = "info"
)

type Insight struct {
	Type    InsightType `json:"type"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Data    any         `json:"data,omitempty"`
}

type WeekdayTotal struct {
	Weekday time.Weekday `json:"weekday"`
	Name    string       `json:"name"`
	Total   core.Money   `json:"total"`
	Count   int64        `json:"count"`
}

type WeekdayPattern struct {
	Window core.DateRange `json:"window"`
	Top    WeekdayTotal   `json:"top"`
	Days   []WeekdayTotal `json:"days"`
}

// TopWeekday picks the weekday with the highest total. Equal totals go to
// the lowest weekday number, Sunday being 0.
func TopWeekday(buckets []ledger.Bucket) (WeekdayTotal, bool) {
	var (
		top   WeekdayTotal
		found bool
	)
	for _, b := range buckets {
		wd := b.Key.Weekday
		if !found || b.Total.Cents > top.Total.Cents ||
			(b.Total.Cents == top.Total.Cents && wd < top.Weekday) {
			top = WeekdayTotal{Weekday: wd, Name: wd.String(), Total: b.Total, Count: b.Count}
			found = true
		}
	}
	return top, found
}

// WeekdayPattern groups expenses over the trailing days by day of week.
// ok is false when there were no expenses in the window.
func (e *Engine) WeekdayPattern(ctx context.Context, owner core.OwnerScope, days int) (WeekdayPattern, bool, error) {
	if err := owner.Validate(); err != nil {
		return WeekdayPattern{}, false, err
	}
	if days < 1 || days > 3660 {
		return WeekdayPattern{}, false, core.NewValidationError("days", "must be between 1 and 3660, got %d", days)
	}
	return e.weekdayPattern(ctx, owner, days, e.clock())
}

func (e *Engine) weekdayPattern(ctx context.Context, owner core.OwnerScope, days int, now time.Time) (WeekdayPattern, bool, error) {
	window := core.DateRange{Start: now.AddDate(0, 0, -days), End: now}
	buckets, err := e.aggregate(ctx, ledger.Query{Owner: owner, Type: core.Expense, Range: window, GroupBy: ledger.GroupWeekday})
	if err != nil {
		return WeekdayPattern{}, false, err
	}
	top, ok := TopWeekday(buckets)
	if !ok {
		return WeekdayPattern{Window: window, Days: []WeekdayTotal{}}, false, nil
	}
	p := WeekdayPattern{Window: window, Top: top, Days: make([]WeekdayTotal, len(buckets))}
	for i, b := range buckets {
		p.Days[i] = WeekdayTotal{Weekday: b.Key.Weekday, Name: b.Key.Weekday.String(), Total: b.Total, Count: b.Count}
	}
	return p, true, nil
}

// BestMonth returns the month with the highest balance among months with
// any activity. Ties keep the earliest month.
func BestMonth(months []MonthTotals) (MonthTotals, bool) {
	var (
		best  MonthTotals
		found bool
	)
	for _, m := range months {
		if m.Count == 0 {
			continue
		}
		if !found || m.Balance.Cents > best.Balance.Cents {
			best, found = m, true
		}
	}
	return best, found
}

// Insights derives up to three observations for owner: the expense category
// growing fastest, the best month by balance, and the weekday with the most
// spending.
func (e *Engine) Insights(ctx context.Context, owner core.OwnerScope) ([]Insight, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	now := e.clock()

	var (
		series  map[string][]MonthPoint
		months  []MonthTotals
		pattern WeekdayPattern
		hasDay  bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		series, err = e.categorySeries(gctx, owner, core.Expense, nil, now, DefaultInsightMonths)
		return err
	})
	g.Go(func() (err error) {
		months, err = e.monthlyTotals(gctx, owner, now, DefaultInsightMonths)
		return err
	})
	g.Go(func() (err error) {
		pattern, hasDay, err = e.weekdayPattern(gctx, owner, DefaultPatternDays, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Insight, 0, 3)
	if growth, ok := DetectGrowth(rankSeries(series)); ok {
		out = append(out, Insight{
			Type:    InsightWarning,
			Title:   "Growing category",
			Message: fmt.Sprintf("Spending on %s grew %.1f%% in recent months", growth.Category, growth.Growth),
			Data:    growth,
		})
	}
	if best, ok := BestMonth(months); ok {
		out = append(out, Insight{
			Type:    InsightSuccess,
			Title:   "Best month",
			Message: fmt.Sprintf("Your best month was %s with a balance of %s", best.Label, best.Balance),
			Data:    best,
		})
	}
	if hasDay {
		out = append(out, Insight{
			Type:  InsightInfo,
			Title: "Spending pattern",
			Message: fmt.Sprintf("You spend the most on %ss: %s across %d transactions in the last %d days",
				pattern.Top.Name, pattern.Top.Total, pattern.Top.Count, DefaultPatternDays),
			Data: pattern,
		})
	}
	return out, nil
}

// rankSeries orders category series by total descending, then by name.
func rankSeries(series map[string][]MonthPoint) []CategorySeries {
	type ranked struct {
		s     CategorySeries
		total int64
	}
	rs := make([]ranked, 0, len(series))
	for cat, points := range series {
		values := seriesValues(points)
		var total int64
		for _, v := range values {
			total += v.Cents
		}
		rs = append(rs, ranked{s: CategorySeries{Category: cat, Values: values}, total: total})
	}
	slices.SortFunc(rs, func(a, b ranked) int {
		return cmp.Or(cmp.Compare(b.total, a.total), cmp.Compare(a.s.Category, b.s.Category))
	})
	out := make([]CategorySeries, len(rs))
	for i, r := range rs {
		out[i] = r.s
	}
	return out
}
