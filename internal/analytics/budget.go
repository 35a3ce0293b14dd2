package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"famfin/internal/core"
	"famfin/internal/ledger"
	"famfin/internal/log"
)

type BudgetState string

const (
	StateOnTrack   BudgetState = "on_track"
	StateNearLimit BudgetState = "near_limit"
	StateExceeded  BudgetState = "exceeded"
)

const (
	nearLimitPercent = 80
	evalConcurrency  = 4
)

type AlertLevel string

const (
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

type BudgetEvaluation struct {
	BudgetID      string          `json:"budget_id"`
	Owner         core.OwnerScope `json:"owner"`
	Category      string          `json:"category"`
	Period        core.Period     `json:"period"`
	Limit         core.Money      `json:"limit"`
	Spent         core.Money      `json:"spent"`
	Percentage    float64         `json:"percentage"`
	Remaining     core.Money      `json:"remaining"`
	State         BudgetState     `json:"state"`
	AlertsEnabled bool            `json:"alerts_enabled"`
	WindowStart   time.Time       `json:"window_start"`
	WindowEnd     time.Time       `json:"window_end"`
}

type BudgetAlert struct {
	BudgetID    string          `json:"budget_id"`
	Owner       core.OwnerScope `json:"owner"`
	Category    string          `json:"category"`
	Period      core.Period     `json:"period"`
	Level       AlertLevel      `json:"level"`
	State       BudgetState     `json:"state"`
	Message     string          `json:"message"`
	Percentage  float64         `json:"percentage"`
	Spent       core.Money      `json:"spent"`
	Limit       core.Money      `json:"limit"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

type BudgetPerformance struct {
	Owner        core.OwnerScope    `json:"owner"`
	TotalBudgets int                `json:"total_budgets"`
	TotalLimit   core.Money         `json:"total_limit"`
	TotalSpent   core.Money         `json:"total_spent"`
	OnTrack      int                `json:"on_track"`
	NearLimit    int                `json:"near_limit"`
	Exceeded     int                `json:"exceeded"`
	AverageUsage float64            `json:"average_usage"`
	Budgets      []BudgetEvaluation `json:"budgets"`
}

// Classify maps spent against limit onto a budget state using exact integer
// comparisons. A non-positive limit is a validation error.
func Classify(spent, limit core.Money) (BudgetState, error) {
	if limit.Cents <= 0 {
		return "", core.NewValidationError("limit", "must be greater than zero")
	}
	if spent.Cents >= limit.Cents {
		return StateExceeded, nil
	}
	// spent*100 >= limit*80 without overflowing int64.
	lhs := decimal.NewFromInt(spent.Cents).Mul(decimal.NewFromInt(100))
	rhs := decimal.NewFromInt(limit.Cents).Mul(decimal.NewFromInt(nearLimitPercent))
	if lhs.GreaterThanOrEqual(rhs) {
		return StateNearLimit, nil
	}
	return StateOnTrack, nil
}

// EvaluateBudget recomputes spend for b over its current period window.
// The stored CurrentSpent is never read.
func (e *Engine) EvaluateBudget(ctx context.Context, b core.Budget) (BudgetEvaluation, error) {
	if err := b.Validate(); err != nil {
		return BudgetEvaluation{}, err
	}
	return e.evaluate(ctx, b, e.clock())
}

// EvaluateBudgetByID loads a budget and evaluates it.
func (e *Engine) EvaluateBudgetByID(ctx context.Context, id string) (BudgetEvaluation, error) {
	if strings.TrimSpace(id) == "" {
		return BudgetEvaluation{}, core.NewValidationError("budget_id", "cannot be empty")
	}
	b, err := e.budgets.GetBudget(ctx, id)
	if err != nil {
		return BudgetEvaluation{}, core.WrapStoreError("get budget", err)
	}
	return e.EvaluateBudget(ctx, b)
}

func (e *Engine) evaluate(ctx context.Context, b core.Budget, now time.Time) (BudgetEvaluation, error) {
	window, err := PeriodWindow(b.Period, now)
	if err != nil {
		return BudgetEvaluation{}, err
	}
	buckets, err := e.aggregate(ctx, ledger.Query{
		Owner:      b.Owner,
		Type:       core.Expense,
		Categories: []string{b.Category},
		Range:      window,
	})
	if err != nil {
		return BudgetEvaluation{}, fmt.Errorf("evaluate budget %s: %w", b.ID, err)
	}
	var spent core.Money
	for _, bk := range buckets {
		spent = spent.Add(bk.Total)
	}

	state, err := Classify(spent, b.Limit)
	if err != nil {
		return BudgetEvaluation{}, err
	}
	ev := BudgetEvaluation{
		BudgetID:      b.ID,
		Owner:         b.Owner,
		Category:      b.Category,
		Period:        b.Period,
		Limit:         b.Limit,
		Spent:         spent,
		Percentage:    core.Percent(spent, b.Limit).InexactFloat64(),
		Remaining:     b.Limit.Sub(spent),
		State:         state,
		AlertsEnabled: b.AlertsEnabled,
		WindowStart:   window.Start,
		WindowEnd:     window.End,
	}
	e.writeBackSpent(ctx, b, spent)
	return ev, nil
}

// writeBackSpent persists the recomputed value. Failures are logged only;
// the stored field is advisory.
func (e *Engine) writeBackSpent(ctx context.Context, b core.Budget, spent core.Money) {
	if !e.writeBack || b.ID == "" {
		return
	}
	if b.CurrentSpent == spent {
		if e.spent != nil {
			e.spent.Remember(b.ID, spent)
		}
		return
	}
	if e.spent != nil && e.spent.Unchanged(b.ID, spent) {
		return
	}
	if err := e.budgets.UpdateSpent(ctx, b.ID, spent); err != nil {
		if e.spent != nil {
			e.spent.Forget(b.ID)
		}
		e.logger.WarnContext(ctx, "Failed to write back budget spent",
			log.FieldBudgetID, b.ID,
			log.FieldAmountCents, spent.Cents,
			log.FieldOperation, log.OpWriteBack,
			log.FieldError, err)
		return
	}
	if e.spent != nil {
		e.spent.Remember(b.ID, spent)
	}
}

// EvaluateBudgets evaluates every budget of owner against one shared clock
// reading. Results keep the store's budget order.
func (e *Engine) EvaluateBudgets(ctx context.Context, owner core.OwnerScope) ([]BudgetEvaluation, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	budgets, err := e.budgets.ListBudgets(ctx, owner)
	if err != nil {
		return nil, core.WrapStoreError("list budgets", err)
	}

	now := e.clock()
	out := make([]BudgetEvaluation, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(evalConcurrency)
	for i, b := range budgets {
		g.Go(func() error {
			ev, err := e.evaluate(gctx, b, now)
			if err != nil {
				return err
			}
			out[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "Budgets evaluated",
		log.FieldOwnerKind, owner.Kind,
		log.FieldOwnerID, owner.ID,
		"count", len(out))
	return out, nil
}

// AlertFor returns the alert an evaluation raises, if any.
func AlertFor(ev BudgetEvaluation, at time.Time) (BudgetAlert, bool) {
	if !ev.AlertsEnabled {
		return BudgetAlert{}, false
	}
	subject := "Budget for " + ev.Category
	if ev.Owner.Kind == core.Family {
		subject = "Family budget for " + ev.Category
	}

	alert := BudgetAlert{
		BudgetID:    ev.BudgetID,
		Owner:       ev.Owner,
		Category:    ev.Category,
		Period:      ev.Period,
		State:       ev.State,
		Percentage:  ev.Percentage,
		Spent:       ev.Spent,
		Limit:       ev.Limit,
		EvaluatedAt: at,
	}
	switch ev.State {
	case StateExceeded:
		alert.Level = AlertDanger
		alert.Message = fmt.Sprintf("%s exceeded: %.1f%% used, %s over the limit",
			subject, ev.Percentage, ev.Spent.Sub(ev.Limit))
	case StateNearLimit:
		alert.Level = AlertWarning
		alert.Message = fmt.Sprintf("%s nearly used up: %.1f%% used, %s remaining",
			subject, ev.Percentage, ev.Remaining)
	default:
		return BudgetAlert{}, false
	}
	return alert, true
}

// BudgetAlerts evaluates owner's budgets and returns one alert per budget
// that is near its limit or exceeded and has alerts enabled.
func (e *Engine) BudgetAlerts(ctx context.Context, owner core.OwnerScope) ([]BudgetAlert, error) {
	evals, err := e.EvaluateBudgets(ctx, owner)
	if err != nil {
		return nil, err
	}
	return Alerts(evals, e.clock()), nil
}

// Alerts filters evaluations down to the alerts they raise.
func Alerts(evals []BudgetEvaluation, at time.Time) []BudgetAlert {
	out := make([]BudgetAlert, 0)
	for _, ev := range evals {
		if a, ok := AlertFor(ev, at); ok {
			out = append(out, a)
		}
	}
	return out
}

// BudgetPerformance summarizes every budget of owner.
func (e *Engine) BudgetPerformance(ctx context.Context, owner core.OwnerScope) (BudgetPerformance, error) {
	evals, err := e.EvaluateBudgets(ctx, owner)
	if err != nil {
		return BudgetPerformance{}, err
	}
	return Performance(owner, evals), nil
}

// Performance folds evaluations into totals and per-state counts.
func Performance(owner core.OwnerScope, evals []BudgetEvaluation) BudgetPerformance {
	p := BudgetPerformance{Owner: owner, TotalBudgets: len(evals), Budgets: evals}
	if p.Budgets == nil {
		p.Budgets = []BudgetEvaluation{}
	}
	for _, ev := range evals {
		p.TotalLimit = p.TotalLimit.Add(ev.Limit)
		p.TotalSpent = p.TotalSpent.Add(ev.Spent)
		switch ev.State {
		case StateOnTrack:
			p.OnTrack++
		case StateNearLimit:
			p.NearLimit++
		case StateExceeded:
			p.Exceeded++
		}
	}
	p.AverageUsage = core.Percent(p.TotalSpent, p.TotalLimit).InexactFloat64()
	return p
}

// CreateBudget validates and stores a new budget. An owner may hold at most
// one budget per category and period.
func (e *Engine) CreateBudget(ctx context.Context, req CreateBudgetRequest) (core.Budget, error) {
	if err := req.Validate(); err != nil {
		return core.Budget{}, err
	}
	b := req.budget()

	existing, err := e.budgets.ListBudgets(ctx, b.Owner)
	if err != nil {
		return core.Budget{}, core.WrapStoreError("list budgets", err)
	}
	for _, x := range existing {
		if x.Period == b.Period && strings.EqualFold(x.Category, b.Category) {
			return core.Budget{}, core.NewValidationError("category",
				"a %s budget for %q already exists", b.Period, b.Category)
		}
	}

	b.CreatedAt = e.clock()
	created, err := e.budgets.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, core.WrapStoreError("create budget", err)
	}
	e.logger.InfoContext(ctx, "Budget created",
		log.FieldBudgetID, created.ID,
		log.FieldOwnerKind, created.Owner.Kind,
		log.FieldOwnerID, created.Owner.ID,
		log.FieldCategory, created.Category,
		log.FieldPeriod, created.Period)
	return created, nil
}

// ListBudgets returns owner's budget definitions as stored.
func (e *Engine) ListBudgets(ctx context.Context, owner core.OwnerScope) ([]core.Budget, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	budgets, err := e.budgets.ListBudgets(ctx, owner)
	if err != nil {
		return nil, core.WrapStoreError("list budgets", err)
	}
	return budgets, nil
}
