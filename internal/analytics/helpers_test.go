package analytics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"famfin/internal/core"
	"famfin/internal/ledger"
	"famfin/internal/ledger/memory"
	"famfin/internal/log"
)

// Thursday, 20 March 2025.
var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

var (
	family = core.OwnerScope{Kind: core.Family, ID: "fam-1"}
	alice  = core.OwnerScope{Kind: core.Individual, ID: "alice"}
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithLogger(log.Discard())}, opts...)
	return NewEngine(store, store, opts...), store
}

func addRecord(t *testing.T, s *memory.Store, owner core.OwnerScope, typ core.MovementType, amount string, category string, at time.Time) {
	t.Helper()
	m, err := core.ParseMoney(amount)
	require.NoError(t, err)
	_, err = s.AppendRecord(context.Background(), core.LedgerRecord{
		Owner: owner, Type: typ, Amount: m, Category: category, OccurredAt: at,
	})
	require.NoError(t, err)
}

func money(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseMoney(s)
	require.NoError(t, err)
	return m
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

// failingStore fails every call, as a store behind a dead connection would.
type failingStore struct{}

func (failingStore) Aggregate(context.Context, ledger.Query) ([]ledger.Bucket, error) {
	return nil, errConnRefused
}

func (failingStore) Records(context.Context, ledger.Query) ([]core.LedgerRecord, error) {
	return nil, errConnRefused
}

// countingStore wraps a store and counts queries and spent write-backs.
type countingStore struct {
	*memory.Store
	queries     atomic.Int64
	updates     atomic.Int64
	failUpdates bool
}

func (c *countingStore) Aggregate(ctx context.Context, q ledger.Query) ([]ledger.Bucket, error) {
	c.queries.Add(1)
	return c.Store.Aggregate(ctx, q)
}

func (c *countingStore) Records(ctx context.Context, q ledger.Query) ([]core.LedgerRecord, error) {
	c.queries.Add(1)
	return c.Store.Records(ctx, q)
}

func (c *countingStore) UpdateSpent(ctx context.Context, id string, spent core.Money) error {
	c.updates.Add(1)
	if c.failUpdates {
		return errors.New("database is locked")
	}
	return c.Store.UpdateSpent(ctx, id, spent)
}
