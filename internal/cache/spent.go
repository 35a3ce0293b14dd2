package cache

import (
	"time"

	"famfin/internal/core"
)

// SpentTracker remembers the last CurrentSpent value written per budget so
// unchanged values are not written again.
type SpentTracker struct {
	lru *LRU[string, int64]
}

func NewSpentTracker(maxSize int, ttl time.Duration, opts ...Option) *SpentTracker {
	return &SpentTracker{lru: NewLRU[string, int64](maxSize, ttl, opts...)}
}

// Unchanged reports whether spent equals the last value recorded for budgetID.
func (t *SpentTracker) Unchanged(budgetID string, spent core.Money) bool {
	last, ok := t.lru.Get(budgetID)
	return ok && last == spent.Cents
}

// Remember records a successful write.
func (t *SpentTracker) Remember(budgetID string, spent core.Money) {
	t.lru.Set(budgetID, spent.Cents)
}

// Forget drops budgetID, forcing the next write through.
func (t *SpentTracker) Forget(budgetID string) {
	t.lru.Delete(budgetID)
}

func (t *SpentTracker) CleanExpired() int {
	return t.lru.CleanExpired()
}
