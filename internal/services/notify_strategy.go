// Package services orchestrates budget evaluation and alert publication.
//
// This file holds the notification strategies: each decides whether an alert
// that was already published must be published again.
package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"famfin/internal/analytics"
)

// Notification records the last alert published for a budget.
type Notification struct {
	State analytics.BudgetState
	At    time.Time
}

// NotifyChecker is the strategy interface for alert re-publication.
type NotifyChecker interface {
	// IsDue reports whether alert should be published given the last
	// notification for the same budget. A zero last means never notified.
	IsDue(last Notification, alert analytics.BudgetAlert, now time.Time) bool
}

// PeriodChecker publishes once per budget window. Crossing from near_limit
// to exceeded within the window publishes again.
type PeriodChecker struct{}

func (PeriodChecker) IsDue(last Notification, alert analytics.BudgetAlert, now time.Time) bool {
	if last.At.IsZero() {
		return true
	}
	if alert.State == analytics.StateExceeded && last.State != analytics.StateExceeded {
		return true
	}
	window, err := analytics.PeriodWindow(alert.Period, now)
	if err != nil {
		return true
	}
	return last.At.Before(window.Start)
}

// DailyChecker publishes at most once per UTC day, plus escalations.
type DailyChecker struct{}

func (DailyChecker) IsDue(last Notification, alert analytics.BudgetAlert, now time.Time) bool {
	if last.At.IsZero() {
		return true
	}
	if alert.State == analytics.StateExceeded && last.State != analytics.StateExceeded {
		return true
	}
	return last.At.UTC().Format(time.DateOnly) != now.UTC().Format(time.DateOnly)
}

// AlwaysChecker publishes on every evaluation.
type AlwaysChecker struct{}

func (AlwaysChecker) IsDue(Notification, analytics.BudgetAlert, time.Time) bool { return true }

const DefaultNotifyPolicy = "period"

var (
	notifyMu       sync.RWMutex
	notifyCheckers = map[string]NotifyChecker{
		"period": PeriodChecker{},
		"daily":  DailyChecker{},
		"always": AlwaysChecker{},
	}
)

// GetNotifyChecker returns the checker registered under name.
func GetNotifyChecker(name string) (NotifyChecker, error) {
	notifyMu.RLock()
	defer notifyMu.RUnlock()
	checker, ok := notifyCheckers[name]
	if !ok {
		return nil, fmt.Errorf("unknown alert policy: %s", name)
	}
	return checker, nil
}

// RegisterNotifyChecker adds or replaces a policy.
func RegisterNotifyChecker(name string, checker NotifyChecker) {
	notifyMu.Lock()
	defer notifyMu.Unlock()
	notifyCheckers[name] = checker
}

// NotifyPolicies lists the registered policy names, sorted.
func NotifyPolicies() []string {
	notifyMu.RLock()
	defer notifyMu.RUnlock()
	names := make([]string, 0, len(notifyCheckers))
	for name := range notifyCheckers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
