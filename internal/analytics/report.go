package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"famfin/internal/core"
	"famfin/internal/ledger"
)

type SummaryReport struct {
	Owner            core.OwnerScope       `json:"owner"`
	Range            core.DateRange        `json:"range"`
	Days             int                   `json:"days"`
	Income           core.Money            `json:"income"`
	Expense          core.Money            `json:"expense"`
	Balance          core.Money            `json:"balance"`
	TransactionCount int64                 `json:"transaction_count"`
	IncomeCount      int64                 `json:"income_count"`
	ExpenseCount     int64                 `json:"expense_count"`
	Categories       []core.CategoryAmount `json:"categories"`
}

type Variance struct {
	Income           float64 `json:"income"`
	Expense          float64 `json:"expense"`
	Balance          float64 `json:"balance"`
	TransactionCount float64 `json:"transaction_count"`
}

type ComparisonReport struct {
	Current  SummaryReport `json:"current"`
	Previous SummaryReport `json:"previous"`
	Variance Variance      `json:"variance"`
}

type DailyStat struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Count   int64      `json:"count"`
}

type DetailedReport struct {
	Owner             core.OwnerScope      `json:"owner"`
	Range             core.DateRange       `json:"range"`
	Categories        []string             `json:"categories,omitempty"`
	Transactions      []core.LedgerRecord  `json:"transactions"`
	TotalTransactions int64                `json:"total_transactions"`
	DailyStats        map[string]DailyStat `json:"daily_stats"`
	Limit             int                  `json:"limit,omitempty"`
	Offset            int                  `json:"offset,omitempty"`
}

type MonthlySummary struct {
	MonthTotals
	ExpensesByCategory []core.CategoryAmount `json:"expenses_by_category"`
	Transactions       []core.LedgerRecord   `json:"transactions"`
}

type AnnualSummary struct {
	Income           core.Money `json:"income"`
	Expense          core.Money `json:"expense"`
	Balance          core.Money `json:"balance"`
	TransactionCount int64      `json:"transaction_count"`
}

type YearlyReport struct {
	Owner  core.OwnerScope `json:"owner"`
	Year   int             `json:"year"`
	Months []MonthTotals   `json:"monthly_summaries"`
	Annual AnnualSummary   `json:"annual_summary"`
}

// VariancePercent returns (current-previous)/previous*100. A zero previous
// yields 100 when current is positive and 0 otherwise.
func VariancePercent(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsPositive() {
			return 100
		}
		return 0
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// SummaryReport totals a window and breaks expenses down by category,
// largest first.
func (e *Engine) SummaryReport(ctx context.Context, req RangeRequest) (SummaryReport, error) {
	if err := req.Validate(); err != nil {
		return SummaryReport{}, err
	}
	return e.summary(ctx, req.Owner, req.Range)
}

func (e *Engine) summary(ctx context.Context, owner core.OwnerScope, rng core.DateRange) (SummaryReport, error) {
	var (
		totals core.Totals
		cats   []ledger.Bucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = e.totals(gctx, owner, rng)
		return err
	})
	g.Go(func() (err error) {
		cats, err = e.aggregate(gctx, ledger.Query{Owner: owner, Type: core.Expense, Range: rng, GroupBy: ledger.GroupCategory})
		return err
	})
	if err := g.Wait(); err != nil {
		return SummaryReport{}, err
	}

	return SummaryReport{
		Owner:            owner,
		Range:            rng,
		Days:             rng.Days(),
		Income:           totals.Income,
		Expense:          totals.Expense,
		Balance:          totals.Balance(),
		TransactionCount: totals.Count(),
		IncomeCount:      totals.IncomeCount,
		ExpenseCount:     totals.ExpenseCount,
		Categories:       categoryAmounts(cats),
	}, nil
}

func categoryAmounts(buckets []ledger.Bucket) []core.CategoryAmount {
	out := make([]core.CategoryAmount, len(buckets))
	for i, b := range buckets {
		out[i] = core.CategoryAmount{Name: b.Key.Category, Amount: b.Total, Count: b.Count}
	}
	return out
}

// ComparisonReport summarizes the window and the equal-length window right
// before it, then computes the variance of each metric.
func (e *Engine) ComparisonReport(ctx context.Context, req RangeRequest) (ComparisonReport, error) {
	if err := req.Validate(); err != nil {
		return ComparisonReport{}, err
	}
	var cur, prev SummaryReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cur, err = e.summary(gctx, req.Owner, req.Range)
		return err
	})
	g.Go(func() (err error) {
		prev, err = e.summary(gctx, req.Owner, req.Range.Previous())
		return err
	})
	if err := g.Wait(); err != nil {
		return ComparisonReport{}, err
	}

	return ComparisonReport{
		Current:  cur,
		Previous: prev,
		Variance: Variance{
			Income:           VariancePercent(cur.Income.Decimal(), prev.Income.Decimal()),
			Expense:          VariancePercent(cur.Expense.Decimal(), prev.Expense.Decimal()),
			Balance:          VariancePercent(cur.Balance.Decimal(), prev.Balance.Decimal()),
			TransactionCount: VariancePercent(decimal.NewFromInt(cur.TransactionCount), decimal.NewFromInt(prev.TransactionCount)),
		},
	}, nil
}

// DetailedReport lists transactions newest first together with a per-day
// rollup of the whole filtered window, independent of pagination.
func (e *Engine) DetailedReport(ctx context.Context, req DetailedRequest) (DetailedReport, error) {
	if err := req.Validate(); err != nil {
		return DetailedReport{}, err
	}
	base := ledger.Query{Owner: req.Owner, Categories: req.Categories, Range: req.Range}

	var (
		records         []core.LedgerRecord
		income, expense []ledger.Bucket
		count           []ledger.Bucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := base
		q.Sort, q.Limit, q.Offset = ledger.SortNewest, req.Limit, req.Offset
		rs, err := e.records.Records(gctx, q)
		if err != nil {
			return core.WrapStoreError("records", err)
		}
		records = rs
		return nil
	})
	g.Go(func() (err error) {
		q := base
		q.Type, q.GroupBy = core.Income, ledger.GroupDay
		income, err = e.aggregate(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		q := base
		q.Type, q.GroupBy = core.Expense, ledger.GroupDay
		expense, err = e.aggregate(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		count, err = e.aggregate(gctx, base)
		return err
	})
	if err := g.Wait(); err != nil {
		return DetailedReport{}, err
	}

	if records == nil {
		records = []core.LedgerRecord{}
	}
	out := DetailedReport{
		Owner:        req.Owner,
		Range:        req.Range,
		Categories:   req.Categories,
		Transactions: records,
		DailyStats:   make(map[string]DailyStat),
		Limit:        req.Limit,
		Offset:       req.Offset,
	}
	for _, b := range count {
		out.TotalTransactions += b.Count
	}
	for _, b := range income {
		k := dayKey(b.Key)
		s := out.DailyStats[k]
		s.Income = s.Income.Add(b.Total)
		s.Count += b.Count
		out.DailyStats[k] = s
	}
	for _, b := range expense {
		k := dayKey(b.Key)
		s := out.DailyStats[k]
		s.Expense = s.Expense.Add(b.Total)
		s.Count += b.Count
		out.DailyStats[k] = s
	}
	return out, nil
}

func dayKey(k ledger.BucketKey) string {
	return time.Date(k.Year, k.Month, k.Day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}

// MonthlySummary reports one calendar month.
func (e *Engine) MonthlySummary(ctx context.Context, req MonthRequest) (MonthlySummary, error) {
	if err := req.Validate(); err != nil {
		return MonthlySummary{}, err
	}
	rng := core.MonthRange(req.Year, req.Month)

	var (
		sum     SummaryReport
		records []core.LedgerRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sum, err = e.summary(gctx, req.Owner, rng)
		return err
	})
	g.Go(func() error {
		rs, err := e.records.Records(gctx, ledger.Query{Owner: req.Owner, Range: rng, Limit: maxDetailedLimit})
		if err != nil {
			return core.WrapStoreError("records", err)
		}
		records = rs
		return nil
	})
	if err := g.Wait(); err != nil {
		return MonthlySummary{}, err
	}
	if records == nil {
		records = []core.LedgerRecord{}
	}

	return MonthlySummary{
		MonthTotals: MonthTotals{
			Year:    req.Year,
			Month:   req.Month,
			Label:   MonthLabel(req.Year, req.Month),
			Income:  sum.Income,
			Expense: sum.Expense,
			Balance: sum.Balance,
			Count:   sum.TransactionCount,
		},
		ExpensesByCategory: sum.Categories,
		Transactions:       records,
	}, nil
}

// YearlyReport returns twelve zero-filled monthly summaries and the annual totals.
func (e *Engine) YearlyReport(ctx context.Context, req YearRequest) (YearlyReport, error) {
	if err := req.Validate(); err != nil {
		return YearlyReport{}, err
	}
	months, err := e.monthlyTotals(ctx, req.Owner, time.Date(req.Year, time.December, 1, 0, 0, 0, 0, time.UTC), 12)
	if err != nil {
		return YearlyReport{}, err
	}
	out := YearlyReport{Owner: req.Owner, Year: req.Year, Months: months}
	for _, m := range months {
		out.Annual.Income = out.Annual.Income.Add(m.Income)
		out.Annual.Expense = out.Annual.Expense.Add(m.Expense)
		out.Annual.TransactionCount += m.Count
	}
	out.Annual.Balance = out.Annual.Income.Sub(out.Annual.Expense)
	return out, nil
}
