package analytics

import (
	"context"
	"fmt"
	"time"

	"famfin/internal/core"
	"famfin/internal/ledger"
)

// Aggregate returns grouped sums for the request window. No matching records
// yields an empty, non-nil slice.
func (e *Engine) Aggregate(ctx context.Context, req AggregateRequest) ([]ledger.Bucket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return e.aggregate(ctx, req.query())
}

func (e *Engine) aggregate(ctx context.Context, q ledger.Query) ([]ledger.Bucket, error) {
	buckets, err := e.records.Aggregate(ctx, q)
	if err != nil {
		return nil, core.WrapStoreError("aggregate", err)
	}
	if buckets == nil {
		buckets = []ledger.Bucket{}
	}
	return buckets, nil
}

// Totals returns per-type sums over rng. Missing types are zero.
func (e *Engine) Totals(ctx context.Context, owner core.OwnerScope, rng core.DateRange) (core.Totals, error) {
	if err := (RangeRequest{Owner: owner, Range: rng}).Validate(); err != nil {
		return core.Totals{}, err
	}
	return e.totals(ctx, owner, rng)
}

func (e *Engine) totals(ctx context.Context, owner core.OwnerScope, rng core.DateRange) (core.Totals, error) {
	buckets, err := e.aggregate(ctx, ledger.Query{Owner: owner, Range: rng, GroupBy: ledger.GroupType})
	if err != nil {
		return core.Totals{}, err
	}
	var t core.Totals
	for _, b := range buckets {
		t.Add(b.Key.Type, b.Total, b.Count)
	}
	return t, nil
}

// MonthPoint is one zero-filled calendar month of a series.
type MonthPoint struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Label string     `json:"label"`
	Total core.Money `json:"total"`
	Count int64      `json:"count"`
}

// MonthTotals is one zero-filled calendar month split by movement type.
type MonthTotals struct {
	Year    int        `json:"year"`
	Month   time.Month `json:"month"`
	Label   string     `json:"label"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Balance core.Money `json:"balance"`
	Count   int64      `json:"transaction_count"`
}

// MonthLabel formats a month as YYYY-MM.
func MonthLabel(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// monthStarts returns the first instant of n consecutive months ending with
// the month containing last, oldest first.
func monthStarts(last time.Time, n int) []time.Time {
	end := core.StartOfMonth(last)
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = end.AddDate(0, i-n+1, 0)
	}
	return out
}

// monthsWindow spans the n calendar months ending with the month containing last.
func monthsWindow(last time.Time, n int) core.DateRange {
	starts := monthStarts(last, n)
	return core.DateRange{Start: starts[0], End: starts[n-1].AddDate(0, 1, 0)}
}

type monthKey struct {
	year  int
	month time.Month
}

// MonthlySeries returns n zero-filled months of typ totals ending with the
// month containing last. An empty category list means all categories.
func (e *Engine) MonthlySeries(ctx context.Context, owner core.OwnerScope, typ core.MovementType, categories []string, last time.Time, n int) ([]MonthPoint, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if typ != "" && !typ.IsValid() {
		return nil, core.NewValidationError("type", "must be income or expense, got %q", typ)
	}
	if n < 1 || n > 10*historyMonths {
		return nil, core.NewValidationError("months", "must be between 1 and %d, got %d", 10*historyMonths, n)
	}
	if err := validateCategories(categories); err != nil {
		return nil, err
	}
	series, err := e.categorySeries(ctx, owner, typ, categories, last, n)
	if err != nil {
		return nil, err
	}
	merged := make([]MonthPoint, n)
	for i, start := range monthStarts(last, n) {
		merged[i] = MonthPoint{Year: start.Year(), Month: start.Month(), Label: MonthLabel(start.Year(), start.Month())}
		for _, s := range series {
			merged[i].Total = merged[i].Total.Add(s[i].Total)
			merged[i].Count += s[i].Count
		}
	}
	return merged, nil
}

// categorySeries returns one zero-filled n-month series per category found
// in the window, keyed by category label.
func (e *Engine) categorySeries(ctx context.Context, owner core.OwnerScope, typ core.MovementType, categories []string, last time.Time, n int) (map[string][]MonthPoint, error) {
	buckets, err := e.aggregate(ctx, ledger.Query{
		Owner:      owner,
		Type:       typ,
		Categories: categories,
		Range:      monthsWindow(last, n),
		GroupBy:    ledger.GroupYearMonthCategory,
	})
	if err != nil {
		return nil, err
	}

	starts := monthStarts(last, n)
	index := make(map[monthKey]int, n)
	for i, s := range starts {
		index[monthKey{s.Year(), s.Month()}] = i
	}

	out := make(map[string][]MonthPoint)
	for _, b := range buckets {
		series, ok := out[b.Key.Category]
		if !ok {
			series = make([]MonthPoint, n)
			for i, s := range starts {
				series[i] = MonthPoint{Year: s.Year(), Month: s.Month(), Label: MonthLabel(s.Year(), s.Month())}
			}
			out[b.Key.Category] = series
		}
		if i, ok := index[monthKey{b.Key.Year, b.Key.Month}]; ok {
			series[i].Total = series[i].Total.Add(b.Total)
			series[i].Count += b.Count
		}
	}
	return out, nil
}

// monthlyTotals returns n zero-filled months of income and expense ending
// with the month containing last.
func (e *Engine) monthlyTotals(ctx context.Context, owner core.OwnerScope, last time.Time, n int) ([]MonthTotals, error) {
	buckets, err := e.aggregate(ctx, ledger.Query{
		Owner:   owner,
		Range:   monthsWindow(last, n),
		GroupBy: ledger.GroupYearMonthType,
	})
	if err != nil {
		return nil, err
	}

	starts := monthStarts(last, n)
	out := make([]MonthTotals, n)
	index := make(map[monthKey]int, n)
	for i, s := range starts {
		out[i] = MonthTotals{Year: s.Year(), Month: s.Month(), Label: MonthLabel(s.Year(), s.Month())}
		index[monthKey{s.Year(), s.Month()}] = i
	}
	for _, b := range buckets {
		i, ok := index[monthKey{b.Key.Year, b.Key.Month}]
		if !ok {
			continue
		}
		switch b.Key.Type {
		case core.Income:
			out[i].Income = out[i].Income.Add(b.Total)
		case core.Expense:
			out[i].Expense = out[i].Expense.Add(b.Total)
		}
		out[i].Count += b.Count
	}
	for i := range out {
		out[i].Balance = out[i].Income.Sub(out[i].Expense)
	}
	return out, nil
}
