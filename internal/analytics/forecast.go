package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"famfin/internal/core"
	"famfin/internal/log"
)

// forecastDamping is the share of the measured trend applied per projected month.
var forecastDamping = decimal.RequireFromString("0.1")

// forecastScale bounds the precision carried between projection steps.
const forecastScale = 12

type ForecastPoint struct {
	MonthLabel       string     `json:"month"`
	PredictedIncome  core.Money `json:"predicted_income"`
	PredictedExpense core.Money `json:"predicted_expense"`
	PredictedBalance core.Money `json:"predicted_balance"`
}

type HistoricalAverage struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Balance core.Money `json:"balance"`
}

// ForecastTrends are percentages rounded to two decimals.
type ForecastTrends struct {
	IncomeTrend  float64 `json:"income_trend"`
	ExpenseTrend float64 `json:"expense_trend"`
}

type Forecast struct {
	Owner             core.OwnerScope   `json:"owner"`
	Horizon           int               `json:"horizon"`
	HistoricalAverage HistoricalAverage `json:"historical_average"`
	Trends            ForecastTrends    `json:"trends"`
	Forecast          []ForecastPoint   `json:"forecast"`
	History           []MonthTotals     `json:"history"`
}

// Forecast projects income and expense over req.Horizon months from the
// twelve calendar months ending with the current one.
func (e *Engine) Forecast(ctx context.Context, req ForecastRequest) (Forecast, error) {
	if err := req.validate(e.maxHorizon); err != nil {
		return Forecast{}, err
	}
	now := e.clock()
	history, err := e.monthlyTotals(ctx, req.Owner, now, historyMonths)
	if err != nil {
		return Forecast{}, err
	}
	f := Project(history, req.Horizon, now)
	f.Owner = req.Owner

	e.logger.DebugContext(ctx, "Forecast generated",
		log.FieldOwnerKind, req.Owner.Kind,
		log.FieldOwnerID, req.Owner.ID,
		log.FieldHorizon, req.Horizon)
	return f, nil
}

// Project is the pure forecasting step. history must be zero-filled and
// ordered oldest first; the first projected month is the one after the
// month containing last.
func Project(history []MonthTotals, horizon int, last time.Time) Forecast {
	incomes := make([]decimal.Decimal, len(history))
	expenses := make([]decimal.Decimal, len(history))
	for i, m := range history {
		incomes[i] = m.Income.Decimal()
		expenses[i] = m.Expense.Decimal()
	}

	avgIncome, avgExpense := mean(incomes), mean(expenses)
	recentIncome, recentExpense := avgIncome, avgExpense
	if len(history) >= recentMonths {
		recentIncome = mean(incomes[len(incomes)-recentMonths:])
		recentExpense = mean(expenses[len(expenses)-recentMonths:])
	}
	incomeTrend := trendFactor(recentIncome, avgIncome)
	expenseTrend := trendFactor(recentExpense, avgExpense)

	out := Forecast{
		Horizon: horizon,
		HistoricalAverage: HistoricalAverage{
			Income:  decimalToMoney(avgIncome),
			Expense: decimalToMoney(avgExpense),
			Balance: decimalToMoney(avgIncome.Sub(avgExpense)),
		},
		Trends: ForecastTrends{
			IncomeTrend:  incomeTrend.Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64(),
			ExpenseTrend: expenseTrend.Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64(),
		},
		Forecast: make([]ForecastPoint, 0, horizon),
		History:  history,
	}

	incomeStep := decimal.NewFromInt(1).Add(incomeTrend.Mul(forecastDamping))
	expenseStep := decimal.NewFromInt(1).Add(expenseTrend.Mul(forecastDamping))
	income, expense := recentIncome, recentExpense
	first := core.StartOfMonth(last)
	for i := 1; i <= horizon; i++ {
		income = income.Mul(incomeStep).Round(forecastScale)
		expense = expense.Mul(expenseStep).Round(forecastScale)
		month := first.AddDate(0, i, 0)
		inc, exp := decimalToMoney(income), decimalToMoney(expense)
		out.Forecast = append(out.Forecast, ForecastPoint{
			MonthLabel:       MonthLabel(month.Year(), month.Month()),
			PredictedIncome:  inc,
			PredictedExpense: exp,
			PredictedBalance: inc.Sub(exp),
		})
	}
	return out
}

func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values))))
}

// trendFactor is (recent-overall)/overall, or zero when overall is not positive.
func trendFactor(recent, overall decimal.Decimal) decimal.Decimal {
	if !overall.IsPositive() {
		return decimal.Zero
	}
	return recent.Sub(overall).Div(overall)
}
