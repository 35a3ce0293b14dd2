package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"famfin/internal/core"
	"famfin/internal/ledger"
)

type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionFlat    Direction = "flat"
	// DirectionNone means the series is too short to carry a signal.
	DirectionNone Direction = "none"
)

// growthThreshold is the minimum growth percentage that raises an alert.
var growthThreshold = decimal.NewFromInt(10)

type TrendRecord struct {
	Category string `json:"category"`
	// Slope is in currency units per month; nil when there is no signal.
	Slope         *float64     `json:"slope"`
	Direction     Direction    `json:"direction"`
	MonthlySeries []MonthPoint `json:"monthly_series"`
	Total         core.Money   `json:"total"`
	Average       core.Money   `json:"average"`
}

type GrowthAlert struct {
	Category   string     `json:"category"`
	Growth     float64    `json:"growth"`
	RecentMean core.Money `json:"recent_mean"`
	PriorMean  core.Money `json:"prior_mean"`
}

type TrendAnalysis struct {
	Owner         core.OwnerScope `json:"owner"`
	Months        int             `json:"months"`
	RankingWindow core.DateRange  `json:"ranking_window"`
	Categories    []TrendRecord   `json:"categories"`
	GrowthAlert   *GrowthAlert    `json:"growth_alert,omitempty"`
}

// CategorySeries is an ordered monthly series for one category.
type CategorySeries struct {
	Category string
	Values   []core.Money
}

// Slope returns the least-squares slope of values over x = 0..n-1, in
// currency units. ok is false when fewer than two points are given.
func Slope(values []core.Money) (slope decimal.Decimal, ok bool) {
	n := int64(len(values))
	if n < 2 {
		return decimal.Zero, false
	}
	var sumX, sumX2 int64
	sumY, sumXY := decimal.Zero, decimal.Zero
	for i, v := range values {
		x := int64(i)
		y := v.Decimal()
		sumX += x
		sumX2 += x * x
		sumY = sumY.Add(y)
		sumXY = sumXY.Add(y.Mul(decimal.NewFromInt(x)))
	}
	num := decimal.NewFromInt(n).Mul(sumXY).Sub(decimal.NewFromInt(sumX).Mul(sumY))
	den := decimal.NewFromInt(n*sumX2 - sumX*sumX)
	return num.Div(den), true
}

// DirectionOf classifies a slope.
func DirectionOf(slope decimal.Decimal, ok bool) Direction {
	switch {
	case !ok:
		return DirectionNone
	case slope.IsPositive():
		return DirectionRising
	case slope.IsNegative():
		return DirectionFalling
	default:
		return DirectionFlat
	}
}

// DetectGrowth compares, per category, the mean of the last two points with
// the mean of every earlier point. Categories need at least three points and
// a non-zero earlier mean. The largest growth above the threshold wins; ties
// keep the category seen first.
func DetectGrowth(series []CategorySeries) (GrowthAlert, bool) {
	var (
		best  GrowthAlert
		bestG decimal.Decimal
		found bool
	)
	two := decimal.NewFromInt(2)
	for _, s := range series {
		n := len(s.Values)
		if n < 3 {
			continue
		}
		recent := s.Values[n-2].Decimal().Add(s.Values[n-1].Decimal()).Div(two)
		prior := decimal.Zero
		for _, v := range s.Values[:n-2] {
			prior = prior.Add(v.Decimal())
		}
		prior = prior.Div(decimal.NewFromInt(int64(n - 2)))
		if prior.IsZero() {
			continue
		}
		growth := recent.Sub(prior).Div(prior).Mul(decimal.NewFromInt(100))
		if !growth.GreaterThan(growthThreshold) {
			continue
		}
		if !found || growth.GreaterThan(bestG) {
			found = true
			bestG = growth
			best = GrowthAlert{
				Category:   s.Category,
				Growth:     growth.Round(2).InexactFloat64(),
				RecentMean: decimalToMoney(recent),
				PriorMean:  decimalToMoney(prior),
			}
		}
	}
	return best, found
}

// AnalyzeTrends ranks the top expense categories over the trailing ranking
// window and fits a slope to each one's zero-filled monthly series.
func (e *Engine) AnalyzeTrends(ctx context.Context, req TrendRequest) (TrendAnalysis, error) {
	if err := req.Validate(); err != nil {
		return TrendAnalysis{}, err
	}
	req = req.withDefaults()
	now := e.clock()

	ranking := core.DateRange{Start: now.AddDate(0, 0, -req.RankingDays), End: now}
	ranked, err := e.aggregate(ctx, ledger.Query{
		Owner:   req.Owner,
		Type:    core.Expense,
		Range:   ranking,
		GroupBy: ledger.GroupCategory,
	})
	if err != nil {
		return TrendAnalysis{}, err
	}

	out := TrendAnalysis{Owner: req.Owner, Months: req.Months, RankingWindow: ranking, Categories: []TrendRecord{}}
	if len(ranked) > req.TopK {
		ranked = ranked[:req.TopK]
	}
	if len(ranked) == 0 {
		return out, nil
	}
	top := make([]string, len(ranked))
	for i, b := range ranked {
		top[i] = b.Key.Category
	}

	bySeries, err := e.categorySeries(ctx, req.Owner, core.Expense, top, now, req.Months)
	if err != nil {
		return TrendAnalysis{}, err
	}

	growthInput := make([]CategorySeries, 0, len(top))
	for _, cat := range top {
		points, ok := bySeries[cat]
		if !ok {
			points = emptySeries(now, req.Months)
		}
		rec := trendRecord(cat, points)
		out.Categories = append(out.Categories, rec)
		growthInput = append(growthInput, CategorySeries{Category: cat, Values: seriesValues(points)})
	}
	if g, ok := DetectGrowth(growthInput); ok {
		out.GrowthAlert = &g
	}
	return out, nil
}

func trendRecord(category string, points []MonthPoint) TrendRecord {
	values := seriesValues(points)
	var total core.Money
	for _, v := range values {
		total = total.Add(v)
	}
	slope, ok := Slope(values)
	slope = slope.Round(2)
	rec := TrendRecord{
		Category:      category,
		Direction:     DirectionOf(slope, ok),
		MonthlySeries: points,
		Total:         total,
		Average:       meanMoney(values),
	}
	if ok {
		f := slope.InexactFloat64()
		rec.Slope = &f
	}
	return rec
}

func seriesValues(points []MonthPoint) []core.Money {
	out := make([]core.Money, len(points))
	for i, p := range points {
		out[i] = p.Total
	}
	return out
}

func emptySeries(last time.Time, n int) []MonthPoint {
	starts := monthStarts(last, n)
	out := make([]MonthPoint, n)
	for i, s := range starts {
		out[i] = MonthPoint{Year: s.Year(), Month: s.Month(), Label: MonthLabel(s.Year(), s.Month())}
	}
	return out
}

// meanMoney averages values, rounding half away from zero to the cent.
func meanMoney(values []core.Money) core.Money {
	if len(values) == 0 {
		return core.Money{}
	}
	var sum int64
	for _, v := range values {
		sum += v.Cents
	}
	return core.Money{Cents: decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(values)))).Round(0).IntPart()}
}

// decimalToMoney converts an amount in currency units to cents.
func decimalToMoney(d decimal.Decimal) core.Money {
	return core.Money{Cents: d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()}
}
