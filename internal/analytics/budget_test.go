package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famfin/internal/cache"
	"famfin/internal/core"
	"famfin/internal/ledger/memory"
	"famfin/internal/log"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		spent int64
		limit int64
		want  BudgetState
	}{
		{"zero spend", 0, 10000, StateOnTrack},
		{"just below 80%", 7999, 10000, StateOnTrack},
		{"exactly 80%", 8000, 10000, StateNearLimit},
		{"100 of 80 cents style", 80, 100, StateNearLimit},
		{"just below 100%", 9999, 10000, StateNearLimit},
		{"exactly 100%", 10000, 10000, StateExceeded},
		{"over", 10500, 10000, StateExceeded},
		{"huge values do not overflow", 1 << 60, 1 << 61, StateOnTrack},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(core.Money{Cents: tc.spent}, core.Money{Cents: tc.limit})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := Classify(core.Money{Cents: 1}, core.Money{})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestEvaluateBudgetPercentage(t *testing.T) {
	e, s := newTestEngine(t)
	addRecord(t, s, alice, core.Expense, "80", "Fun", testNow.AddDate(0, 0, -1))

	ev, err := e.EvaluateBudget(context.Background(), core.Budget{
		ID: "b1", Owner: alice, Category: "Fun", Limit: money(t, "100"), Period: core.Monthly,
	})
	require.NoError(t, err)
	assert.Equal(t, StateNearLimit, ev.State)
	assert.Equal(t, 80.0, ev.Percentage)
	assert.Equal(t, int64(2000), ev.Remaining.Cents)
}

func TestEndToEndFoodBudget(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	b, err := e.CreateBudget(ctx, CreateBudgetRequest{Owner: family, Category: "Food", Limit: money(t, "1000"), Period: core.Monthly})
	require.NoError(t, err)
	assert.True(t, b.AlertsEnabled)

	addRecord(t, s, family, core.Expense, "500", "Food", time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC))
	addRecord(t, s, family, core.Expense, "350", "Food", time.Date(2025, 3, 18, 19, 30, 0, 0, time.UTC))
	// Outside the window or scope: previous month, other category, income, other owner.
	addRecord(t, s, family, core.Expense, "400", "Food", time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC))
	addRecord(t, s, family, core.Expense, "75", "Transport", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	addRecord(t, s, family, core.Income, "3000", "Food", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	addRecord(t, s, alice, core.Expense, "90", "Food", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))

	evals, err := e.EvaluateBudgets(ctx, family)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, int64(85000), evals[0].Spent.Cents)
	assert.Equal(t, 85.0, evals[0].Percentage)
	assert.Equal(t, StateNearLimit, evals[0].State)
	assert.True(t, evals[0].WindowStart.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))

	alerts, err := e.BudgetAlerts(ctx, family)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertWarning, alerts[0].Level)
	assert.Equal(t, 85.0, alerts[0].Percentage)
	assert.Contains(t, alerts[0].Message, "Family budget for Food")

	addRecord(t, s, family, core.Expense, "200", "Food", time.Date(2025, 3, 19, 8, 0, 0, 0, time.UTC))

	evals, err = e.EvaluateBudgets(ctx, family)
	require.NoError(t, err)
	assert.Equal(t, int64(105000), evals[0].Spent.Cents)
	assert.Equal(t, 105.0, evals[0].Percentage)
	assert.Equal(t, StateExceeded, evals[0].State)
	assert.Equal(t, int64(-5000), evals[0].Remaining.Cents)

	alerts, err = e.BudgetAlerts(ctx, family)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDanger, alerts[0].Level)
	assert.Equal(t, StateExceeded, alerts[0].State)
}

func TestAlertsRespectAlertsEnabled(t *testing.T) {
	ev := BudgetEvaluation{BudgetID: "b", Owner: alice, Category: "Food", State: StateExceeded, AlertsEnabled: false}
	_, ok := AlertFor(ev, testNow)
	assert.False(t, ok)

	ev.AlertsEnabled = true
	ev.State = StateOnTrack
	_, ok = AlertFor(ev, testNow)
	assert.False(t, ok)

	alerts := Alerts([]BudgetEvaluation{
		{BudgetID: "a", Owner: alice, Category: "x", State: StateNearLimit, AlertsEnabled: true},
		{BudgetID: "b", Owner: alice, Category: "y", State: StateExceeded, AlertsEnabled: false},
		{BudgetID: "c", Owner: alice, Category: "z", State: StateOnTrack, AlertsEnabled: true},
	}, testNow)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a", alerts[0].BudgetID)
	assert.Equal(t, "Budget for x nearly used up: 0.0% used, 0.00 remaining", alerts[0].Message)
}

func TestBudgetWindowsPerPeriod(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	// testNow is Thursday 2025-03-20; the week started Monday 2025-03-17.
	addRecord(t, s, alice, core.Expense, "10", "Coffee", time.Date(2025, 3, 16, 23, 0, 0, 0, time.UTC))
	addRecord(t, s, alice, core.Expense, "20", "Coffee", time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC))
	addRecord(t, s, alice, core.Expense, "40", "Coffee", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	addRecord(t, s, alice, core.Expense, "80", "Coffee", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	// Future-dated records are outside [start, now).
	addRecord(t, s, alice, core.Expense, "160", "Coffee", testNow.Add(time.Hour))

	cases := map[core.Period]int64{core.Weekly: 2000, core.Monthly: 3000, core.Yearly: 7000}
	for period, want := range cases {
		ev, err := e.EvaluateBudget(ctx, core.Budget{Owner: alice, Category: "Coffee", Limit: money(t, "1000"), Period: period})
		require.NoError(t, err)
		assert.Equal(t, want, ev.Spent.Cents, "period %s", period)
	}
}

func TestEvaluateRejectsInvalidBudgetBeforeQuery(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	e := NewEngine(store, store, WithClock(func() time.Time { return testNow }), WithLogger(log.Discard()))

	_, err := e.EvaluateBudget(context.Background(), core.Budget{Owner: alice, Category: "Food", Limit: core.Money{}, Period: core.Monthly})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = e.EvaluateBudget(context.Background(), core.Budget{Owner: alice, Category: "Food", Limit: core.Money{Cents: 1}, Period: "daily"})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Zero(t, store.queries.Load())
}

func TestStoreOutageNeverLooksOnTrack(t *testing.T) {
	mem := memory.New()
	_, err := mem.CreateBudget(context.Background(), core.Budget{Owner: family, Category: "Food", Limit: core.Money{Cents: 100000}, Period: core.Monthly, AlertsEnabled: true})
	require.NoError(t, err)
	e := NewEngine(failingStore{}, mem, WithClock(func() time.Time { return testNow }), WithLogger(log.Discard()))

	evals, err := e.EvaluateBudgets(context.Background(), family)
	assert.Nil(t, evals)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)

	perf, err := e.BudgetPerformance(context.Background(), family)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Zero(t, perf.TotalBudgets)

	alerts, err := e.BudgetAlerts(context.Background(), family)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Nil(t, alerts)
}

func TestBudgetPerformance(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	for _, req := range []CreateBudgetRequest{
		{Owner: family, Category: "Food", Limit: money(t, "1000"), Period: core.Monthly},
		{Owner: family, Category: "Home", Limit: money(t, "500"), Period: core.Monthly},
		{Owner: family, Category: "Fun", Limit: money(t, "500"), Period: core.Monthly},
	} {
		_, err := e.CreateBudget(ctx, req)
		require.NoError(t, err)
	}
	addRecord(t, s, family, core.Expense, "100", "Food", testNow.AddDate(0, 0, -2))
	addRecord(t, s, family, core.Expense, "450", "Home", testNow.AddDate(0, 0, -2))
	addRecord(t, s, family, core.Expense, "650", "Fun", testNow.AddDate(0, 0, -2))

	p, err := e.BudgetPerformance(ctx, family)
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalBudgets)
	assert.Equal(t, int64(200000), p.TotalLimit.Cents)
	assert.Equal(t, int64(120000), p.TotalSpent.Cents)
	assert.Equal(t, 1, p.OnTrack)
	assert.Equal(t, 1, p.NearLimit)
	assert.Equal(t, 1, p.Exceeded)
	assert.Equal(t, 60.0, p.AverageUsage)
	assert.Len(t, p.Budgets, 3)

	empty := Performance(alice, nil)
	assert.Zero(t, empty.AverageUsage)
	assert.NotNil(t, empty.Budgets)
}

func TestCreateBudgetValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	off := false

	_, err := e.CreateBudget(ctx, CreateBudgetRequest{Owner: family, Category: "Food", Limit: money(t, "10"), Period: core.Weekly, AlertsEnabled: &off})
	require.NoError(t, err)

	cases := []CreateBudgetRequest{
		{Owner: family, Category: "   ", Limit: money(t, "10"), Period: core.Weekly},
		{Owner: family, Category: "Food", Limit: core.Money{Cents: -100}, Period: core.Weekly},
		{Owner: family, Category: "Food", Limit: money(t, "10"), Period: "fortnightly"},
		{Owner: family, Category: "food", Limit: money(t, "99"), Period: core.Weekly},
	}
	for _, req := range cases {
		_, err := e.CreateBudget(ctx, req)
		assert.ErrorIs(t, err, core.ErrValidation, "request %+v", req)
	}

	budgets, err := e.ListBudgets(ctx, family)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.False(t, budgets[0].AlertsEnabled)
	assert.True(t, budgets[0].CreatedAt.Equal(testNow))
}

func TestEvaluateBudgetByIDNotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.EvaluateBudgetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestWriteBackSkipsUnchangedValues(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	tracker := cache.NewSpentTracker(16, time.Hour)
	e := NewEngine(store, store, WithClock(func() time.Time { return testNow }), WithLogger(log.Discard()), WithWriteBack(tracker))
	ctx := context.Background()

	b, err := e.CreateBudget(ctx, CreateBudgetRequest{Owner: family, Category: "Food", Limit: money(t, "1000"), Period: core.Monthly})
	require.NoError(t, err)
	addRecord(t, store.Store, family, core.Expense, "850", "Food", testNow.AddDate(0, 0, -1))

	for i := 0; i < 3; i++ {
		_, err := e.EvaluateBudgets(ctx, family)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), store.updates.Load())

	stored, err := store.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(85000), stored.CurrentSpent.Cents)

	addRecord(t, store.Store, family, core.Expense, "1", "Food", testNow.AddDate(0, 0, -1))
	_, err = e.EvaluateBudgets(ctx, family)
	require.NoError(t, err)
	assert.Equal(t, int64(2), store.updates.Load())
}

func TestWriteBackFailureDoesNotFailEvaluation(t *testing.T) {
	store := &countingStore{Store: memory.New(), failUpdates: true}
	e := NewEngine(store, store, WithClock(func() time.Time { return testNow }), WithLogger(log.Discard()), WithWriteBack(nil))
	ctx := context.Background()

	_, err := e.CreateBudget(ctx, CreateBudgetRequest{Owner: family, Category: "Food", Limit: money(t, "1000"), Period: core.Monthly})
	require.NoError(t, err)
	addRecord(t, store.Store, family, core.Expense, "900", "Food", testNow.AddDate(0, 0, -1))

	evals, err := e.EvaluateBudgets(ctx, family)
	require.NoError(t, err)
	assert.Equal(t, StateNearLimit, evals[0].State)
	assert.Equal(t, int64(1), store.updates.Load())
}
