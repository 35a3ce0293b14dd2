// Package analytics turns ledger records into summaries, budget states,
// category trends, growth alerts and forecasts.
//
// The engine holds no state between calls. Every operation re-queries the
// record store, validates its request before issuing any query, and surfaces
// store failures as *core.StoreUnavailableError rather than as empty data.
package analytics

import (
	"time"

	"famfin/internal/cache"
	"famfin/internal/ledger"
	"famfin/internal/log"
)

const (
	DefaultMaxHorizon    = 24
	DefaultTopCategories = 5
	DefaultRankingDays   = 90
	DefaultTrendMonths   = 6
	MaxTrendMonths       = 24
	DefaultPatternDays   = 90
	DefaultInsightMonths = 6

	historyMonths = 12
	recentMonths  = 3
)

type Engine struct {
	records ledger.RecordStore
	budgets ledger.BudgetStore
	now     func() time.Time
	logger  *log.Logger

	writeBack  bool
	spent      *cache.SpentTracker
	maxHorizon int
}

type Option func(*Engine)

// WithClock sets the time source every period window is anchored to.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.WithComponent(log.ComponentAnalytics)
		}
	}
}

// WithWriteBack enables persisting the recomputed CurrentSpent after each
// budget evaluation. tracker may be nil, in which case every evaluation
// writes unless the stored value already matches.
func WithWriteBack(tracker *cache.SpentTracker) Option {
	return func(e *Engine) {
		e.writeBack = true
		e.spent = tracker
	}
}

// WithMaxHorizon bounds the forecast horizon. Values below 1 are ignored.
func WithMaxHorizon(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxHorizon = n
		}
	}
}

// NewEngine wires the engine to its stores.
func NewEngine(records ledger.RecordStore, budgets ledger.BudgetStore, opts ...Option) *Engine {
	e := &Engine{
		records:    records,
		budgets:    budgets,
		now:        time.Now,
		logger:     log.Default(log.ComponentAnalytics),
		maxHorizon: DefaultMaxHorizon,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxHorizon returns the largest forecast horizon the engine accepts.
func (e *Engine) MaxHorizon() int { return e.maxHorizon }

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}
