package main

import (
	"context"

	"famfin/internal/analytics"
	"famfin/internal/core"
)

// runReport dispatches opts.report to the engine. Validation is left to
// the engine so the CLI and the API reject the same inputs.
func runReport(ctx context.Context, e *analytics.Engine, opts options) (any, error) {
	switch opts.report {
	case "summary", "comparison", "detailed":
		if !opts.hasRange {
			return nil, core.NewValidationError("range", "-start and -end are required for %s", opts.report)
		}
	}

	switch opts.report {
	case "summary":
		return e.SummaryReport(ctx, analytics.RangeRequest{Owner: opts.owner, Range: opts.rng})
	case "comparison":
		return e.ComparisonReport(ctx, analytics.RangeRequest{Owner: opts.owner, Range: opts.rng})
	case "detailed":
		return e.DetailedReport(ctx, analytics.DetailedRequest{
			Owner: opts.owner, Range: opts.rng, Categories: opts.category, Limit: opts.limit, Offset: opts.offset,
		})
	case "monthly":
		return e.MonthlySummary(ctx, analytics.MonthRequest{Owner: opts.owner, Year: opts.year, Month: opts.month})
	case "yearly":
		return e.YearlyReport(ctx, analytics.YearRequest{Owner: opts.owner, Year: opts.year})
	case "budgets":
		if opts.budgetID != "" {
			return e.EvaluateBudgetByID(ctx, opts.budgetID)
		}
		return e.EvaluateBudgets(ctx, opts.owner)
	case "alerts":
		return e.BudgetAlerts(ctx, opts.owner)
	case "performance":
		return e.BudgetPerformance(ctx, opts.owner)
	case "trends":
		return e.AnalyzeTrends(ctx, analytics.TrendRequest{Owner: opts.owner, Months: opts.months})
	case "forecast":
		horizon := opts.months
		if horizon == 0 {
			horizon = 3
		}
		return e.Forecast(ctx, analytics.ForecastRequest{Owner: opts.owner, Horizon: horizon})
	case "insights":
		return e.Insights(ctx, opts.owner)
	case "weekday":
		pattern, _, err := e.WeekdayPattern(ctx, opts.owner, opts.days)
		if err != nil {
			return nil, err
		}
		return pattern, nil
	default:
		return nil, core.NewValidationError("report", "unknown report %q", opts.report)
	}
}
