// Package memory is an in-process ledger backend used for development,
// tests, and the demo seed.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"famfin/internal/core"
	"famfin/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu      sync.Mutex
	records []core.LedgerRecord
	budgets []core.Budget
}

// Seed is the on-disk format accepted by NewFromFile.
type Seed struct {
	Records []core.LedgerRecord `json:"records"`
	Budgets []core.Budget       `json:"budgets"`
}

func New() *Store {
	return &Store{}
}

// NewFromFile loads a JSON seed. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	if err := s.Load(context.Background(), seed); err != nil {
		return nil, fmt.Errorf("load seed %s: %w", path, err)
	}
	return s, nil
}

// Ping always succeeds; the store lives in process.
func (s *Store) Ping(context.Context) error { return nil }

// Load appends every record and budget in seed, validating each.
func (s *Store) Load(ctx context.Context, seed Seed) error {
	for i, r := range seed.Records {
		if _, err := s.AppendRecord(ctx, r); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	for i, b := range seed.Budgets {
		if _, err := s.CreateBudget(ctx, b); err != nil {
			return fmt.Errorf("budget %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) AppendRecord(_ context.Context, r core.LedgerRecord) (core.LedgerRecord, error) {
	if err := r.Validate(); err != nil {
		return core.LedgerRecord{}, err
	}
	r.Category = strings.TrimSpace(r.Category)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.OccurredAt = r.OccurredAt.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return r, nil
}

func (s *Store) matching(q ledger.Query) []core.LedgerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.LedgerRecord, 0)
	for _, r := range s.records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) Aggregate(ctx context.Context, q ledger.Query) ([]ledger.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return ledger.Fold(q.GroupBy, s.matching(q)), nil
}

func (s *Store) Records(ctx context.Context, q ledger.Query) ([]core.LedgerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	rs := s.matching(q)
	ledger.SortRecords(q.Sort, rs)
	return ledger.Page(rs, q.Limit, q.Offset), nil
}

func (s *Store) ListBudgets(_ context.Context, owner core.OwnerScope) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Budget, 0)
	for _, b := range s.budgets {
		if b.Owner == owner {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) GetBudget(_ context.Context, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.budgets {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Budget{}, &core.NotFoundError{Kind: "budget", ID: id}
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	b.Category = strings.TrimSpace(b.Category)
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.budgets {
		if existing.Owner == b.Owner && existing.Period == b.Period &&
			strings.EqualFold(existing.Category, b.Category) {
			return core.Budget{}, core.NewValidationError("category",
				"a %s budget for %q already exists", b.Period, b.Category)
		}
	}
	s.budgets = append(s.budgets, b)
	return b, nil
}

func (s *Store) UpdateSpent(_ context.Context, id string, spent core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.budgets {
		if s.budgets[i].ID == id {
			s.budgets[i].CurrentSpent = spent
			return nil
		}
	}
	return &core.NotFoundError{Kind: "budget", ID: id}
}

func (s *Store) ListBudgetOwners(_ context.Context) ([]core.OwnerScope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[core.OwnerScope]struct{}{}
	out := make([]core.OwnerScope, 0)
	for _, b := range s.budgets {
		if _, ok := seen[b.Owner]; ok {
			continue
		}
		seen[b.Owner] = struct{}{}
		out = append(out, b.Owner)
	}
	slices.SortFunc(out, func(a, b core.OwnerScope) int {
		return strings.Compare(a.String(), b.String())
	})
	return out, nil
}
