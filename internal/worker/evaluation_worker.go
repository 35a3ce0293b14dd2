// Package worker runs the budget alert loop: periodic sweeps over every
// owner with budgets plus on-demand evaluation requests.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"famfin/internal/amqp"
	"famfin/internal/core"
	"famfin/internal/log"
	"famfin/internal/services"
)

// OwnerLister lists the owners a sweep visits.
type OwnerLister interface {
	ListBudgetOwners(ctx context.Context) ([]core.OwnerScope, error)
}

// AlertEvaluator evaluates budgets and publishes their alerts.
type AlertEvaluator interface {
	EvaluateOwner(ctx context.Context, owner core.OwnerScope) (services.Outcome, error)
	EvaluateBudget(ctx context.Context, id string) (services.Outcome, error)
}

const DefaultConcurrency = 4

// EvaluationWorker drives the alert service.
type EvaluationWorker struct {
	owners      OwnerLister
	alerts      AlertEvaluator
	concurrency int
	logger      *log.Logger
}

func NewEvaluationWorker(owners OwnerLister, alerts AlertEvaluator, concurrency int, logger *log.Logger) *EvaluationWorker {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &EvaluationWorker{
		owners:      owners,
		alerts:      alerts,
		concurrency: concurrency,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// SweepResult summarizes one pass over every owner.
type SweepResult struct {
	Owners  int
	Failed  int
	Outcome services.Outcome
}

// Sweep evaluates every owner with at least one budget, at most
// w.concurrency at a time. A failing owner does not stop the others; the
// returned error joins every failure.
func (w *EvaluationWorker) Sweep(ctx context.Context) (SweepResult, error) {
	owners, err := w.owners.ListBudgetOwners(ctx)
	if err != nil {
		return SweepResult{}, core.WrapStoreError("list budget owners", err)
	}

	var (
		mu   sync.Mutex
		res  = SweepResult{Owners: len(owners)}
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, owner := range owners {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := w.alerts.EvaluateOwner(ctx, owner)
			mu.Lock()
			defer mu.Unlock()
			res.Outcome.Evaluated += out.Evaluated
			res.Outcome.Alerts += out.Alerts
			res.Outcome.Published += out.Published
			res.Outcome.Suppressed += out.Suppressed
			if err != nil {
				res.Failed++
				errs = append(errs, err)
				w.logger.ErrorContext(ctx, "Owner evaluation failed",
					log.FieldOwnerKind, owner.Kind,
					log.FieldOwnerID, owner.ID,
					log.FieldError, err)
			}
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	w.logger.InfoContext(ctx, "Budget sweep completed",
		"owners", res.Owners,
		"failed", res.Failed,
		"evaluated", res.Outcome.Evaluated,
		"alerts", res.Outcome.Alerts,
		"published", res.Outcome.Published,
		"suppressed", res.Outcome.Suppressed)
	return res, errors.Join(errs...)
}

// HandleRequest processes one evaluation request from the queue.
func (w *EvaluationWorker) HandleRequest(ctx context.Context, req *amqp.EvaluationRequest) error {
	w.logger.InfoContext(ctx, "Processing evaluation request",
		"message_id", req.MessageID,
		log.FieldOwnerKind, req.Owner.Kind,
		log.FieldOwnerID, req.Owner.ID,
		log.FieldBudgetID, req.BudgetID)

	if req.BudgetID != "" {
		_, err := w.alerts.EvaluateBudget(ctx, req.BudgetID)
		return err
	}
	_, err := w.alerts.EvaluateOwner(ctx, req.Owner)
	return err
}

// Run sweeps once at startup and then every interval until ctx is done.
func (w *EvaluationWorker) Run(ctx context.Context, interval time.Duration) {
	w.logger.InfoContext(ctx, "Performing startup budget sweep...")
	if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Startup sweep failed", log.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic sweep failed", log.FieldError, err)
			}
		}
	}
}
