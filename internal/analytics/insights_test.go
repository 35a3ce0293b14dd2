package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famfin/internal/core"
	"famfin/internal/ledger"
)

func weekdayBucket(wd time.Weekday, cents int64) ledger.Bucket {
	return ledger.Bucket{Key: ledger.BucketKey{Weekday: wd}, Total: core.Money{Cents: cents}, Count: 1}
}

func TestTopWeekday(t *testing.T) {
	top, ok := TopWeekday([]ledger.Bucket{
		weekdayBucket(time.Tuesday, 100),
		weekdayBucket(time.Monday, 100),
		weekdayBucket(time.Sunday, 50),
	})
	require.True(t, ok)
	assert.Equal(t, time.Monday, top.Weekday)
	assert.Equal(t, "Monday", top.Name)

	top, _ = TopWeekday([]ledger.Bucket{weekdayBucket(time.Saturday, 10), weekdayBucket(time.Sunday, 10)})
	assert.Equal(t, time.Sunday, top.Weekday)

	_, ok = TopWeekday(nil)
	assert.False(t, ok)
}

func TestBestMonth(t *testing.T) {
	months := []MonthTotals{
		{Label: "2025-01", Balance: core.Money{Cents: 0}, Count: 0},
		{Label: "2025-02", Balance: core.Money{Cents: -500}, Count: 2},
		{Label: "2025-03", Balance: core.Money{Cents: 300}, Count: 1},
		{Label: "2025-04", Balance: core.Money{Cents: 300}, Count: 4},
	}
	best, ok := BestMonth(months)
	require.True(t, ok)
	assert.Equal(t, "2025-03", best.Label)

	// An idle month with zero balance never beats a month with activity.
	best, ok = BestMonth(months[:2])
	require.True(t, ok)
	assert.Equal(t, "2025-02", best.Label)

	_, ok = BestMonth(months[:1])
	assert.False(t, ok)
}

func TestInsights(t *testing.T) {
	e, s := newTestEngine(t)
	mondays := []time.Time{
		time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 4, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC),
	}
	for i, at := range mondays {
		amount := "100"
		if i >= 4 {
			amount = "300"
		}
		addRecord(t, s, family, core.Expense, amount, "Food", at)
	}
	addRecord(t, s, family, core.Income, "2000", "Salary", time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))

	insights, err := e.Insights(context.Background(), family)
	require.NoError(t, err)
	require.Len(t, insights, 3)

	assert.Equal(t, InsightWarning, insights[0].Type)
	assert.Equal(t, "Spending on Food grew 200.0% in recent months", insights[0].Message)
	growth, ok := insights[0].Data.(GrowthAlert)
	require.True(t, ok)
	assert.Equal(t, 200.0, growth.Growth)

	assert.Equal(t, InsightSuccess, insights[1].Type)
	assert.Equal(t, "Your best month was 2025-01 with a balance of 1900.00", insights[1].Message)

	assert.Equal(t, InsightInfo, insights[2].Type)
	assert.Equal(t, "You spend the most on Mondays: 700.00 across 3 transactions in the last 90 days", insights[2].Message)
	pattern, ok := insights[2].Data.(WeekdayPattern)
	require.True(t, ok)
	assert.Len(t, pattern.Days, 1)
}

func TestInsightsWithoutActivity(t *testing.T) {
	e, _ := newTestEngine(t)
	insights, err := e.Insights(context.Background(), alice)
	require.NoError(t, err)
	assert.NotNil(t, insights)
	assert.Empty(t, insights)
}

func TestWeekdayPatternValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	_, _, err := e.WeekdayPattern(context.Background(), alice, 0)
	assert.ErrorIs(t, err, core.ErrValidation)

	p, ok, err := e.WeekdayPattern(context.Background(), alice, 30)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotNil(t, p.Days)
}
