package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"famfin/internal/analytics"
	"famfin/internal/cache"
	"famfin/internal/core"
	"famfin/internal/log"
)

// BudgetEvaluator is the part of the analytics engine the service needs.
type BudgetEvaluator interface {
	EvaluateBudgets(ctx context.Context, owner core.OwnerScope) ([]analytics.BudgetEvaluation, error)
	EvaluateBudgetByID(ctx context.Context, id string) (analytics.BudgetEvaluation, error)
}

// AlertPublisher delivers alerts to notifiers.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert analytics.BudgetAlert) error
}

const (
	notificationCacheSize = 10000
	notificationTTL       = 400 * 24 * time.Hour
)

// Outcome counts what one evaluation pass did.
type Outcome struct {
	Evaluated  int `json:"evaluated"`
	Alerts     int `json:"alerts"`
	Published  int `json:"published"`
	Suppressed int `json:"suppressed"`
}

func (o *Outcome) add(other Outcome) {
	o.Evaluated += other.Evaluated
	o.Alerts += other.Alerts
	o.Published += other.Published
	o.Suppressed += other.Suppressed
}

// AlertService evaluates budgets and publishes the alerts they raise.
type AlertService struct {
	evaluator BudgetEvaluator
	publisher AlertPublisher
	checker   NotifyChecker
	now       func() time.Time
	logger    *log.Logger
	sent      *cache.LRU[string, Notification]
}

type AlertOption func(*AlertService)

func WithNotifyChecker(c NotifyChecker) AlertOption {
	return func(s *AlertService) {
		if c != nil {
			s.checker = c
		}
	}
}

func WithAlertClock(now func() time.Time) AlertOption {
	return func(s *AlertService) { s.now = now }
}

func WithAlertLogger(l *log.Logger) AlertOption {
	return func(s *AlertService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentBudget)
		}
	}
}

// NewAlertService wires an evaluator to a publisher. publisher may be nil,
// in which case alerts are computed and logged but never sent.
func NewAlertService(evaluator BudgetEvaluator, publisher AlertPublisher, opts ...AlertOption) *AlertService {
	s := &AlertService{
		evaluator: evaluator,
		publisher: publisher,
		checker:   PeriodChecker{},
		now:       time.Now,
		logger:    log.Default(log.ComponentBudget),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sent = cache.NewLRU[string, Notification](notificationCacheSize, notificationTTL, cache.WithClock(s.now))
	return s
}

// Notifications exposes the sent-alert cache for periodic sweeping.
func (s *AlertService) Notifications() cache.Cleaner {
	return s.sent
}

// EvaluateOwner evaluates every budget of owner and publishes due alerts.
func (s *AlertService) EvaluateOwner(ctx context.Context, owner core.OwnerScope) (Outcome, error) {
	evals, err := s.evaluator.EvaluateBudgets(ctx, owner)
	if err != nil {
		return Outcome{}, fmt.Errorf("evaluate owner %s: %w", owner, err)
	}
	out, err := s.dispatch(ctx, evals)
	s.logger.InfoContext(ctx, "Owner budgets evaluated",
		log.FieldOwnerKind, owner.Kind,
		log.FieldOwnerID, owner.ID,
		"evaluated", out.Evaluated,
		"alerts", out.Alerts,
		"published", out.Published,
		"suppressed", out.Suppressed)
	return out, err
}

// EvaluateBudget evaluates a single budget and publishes its alert if due.
func (s *AlertService) EvaluateBudget(ctx context.Context, id string) (Outcome, error) {
	ev, err := s.evaluator.EvaluateBudgetByID(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("evaluate budget %s: %w", id, err)
	}
	return s.dispatch(ctx, []analytics.BudgetEvaluation{ev})
}

// EvaluateOwners runs EvaluateOwner for each owner in turn and keeps going
// past failures. The returned error joins every failure.
func (s *AlertService) EvaluateOwners(ctx context.Context, owners []core.OwnerScope) (Outcome, error) {
	var (
		total Outcome
		errs  []error
	)
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		out, err := s.EvaluateOwner(ctx, owner)
		total.add(out)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

func (s *AlertService) dispatch(ctx context.Context, evals []analytics.BudgetEvaluation) (Outcome, error) {
	now := s.now().UTC()
	alerts := analytics.Alerts(evals, now)
	out := Outcome{Evaluated: len(evals), Alerts: len(alerts)}

	if len(alerts) > 0 && s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping alert publication", "alerts", len(alerts))
	}

	var errs []error
	for _, alert := range alerts {
		last, _ := s.sent.Get(alert.BudgetID)
		if !s.checker.IsDue(last, alert, now) {
			out.Suppressed++
			continue
		}
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.PublishAlert(ctx, alert); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish budget alert",
				log.FieldBudgetID, alert.BudgetID,
				log.FieldCategory, alert.Category,
				log.FieldError, err)
			errs = append(errs, fmt.Errorf("publish alert for budget %s: %w", alert.BudgetID, err))
			continue
		}
		s.sent.Set(alert.BudgetID, Notification{State: alert.State, At: now})
		out.Published++
	}
	return out, errors.Join(errs...)
}
