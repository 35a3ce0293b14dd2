package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"famfin/internal/core"
	"famfin/internal/ledger"

	_ "modernc.org/sqlite"
)

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

// DSN appends the pragmas every connection needs to a database path.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// AppendRecord implements ledger.RecordWriter
func (r *SQLiteRepository) AppendRecord(ctx context.Context, rec core.LedgerRecord) (core.LedgerRecord, error) {
	if err := rec.Validate(); err != nil {
		return core.LedgerRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Category = strings.TrimSpace(rec.Category)
	rec.OccurredAt = rec.OccurredAt.UTC()

	_, err := r.db.ExecContext(ctx, insertRecordSQL,
		rec.ID, string(rec.Owner.Kind), rec.Owner.ID, string(rec.Type), rec.Amount.Cents,
		rec.Category, rec.Description, rec.OccurredAt.UnixMilli(), rec.AddedBy, time.Now().UnixMilli())
	if err != nil {
		return core.LedgerRecord{}, fmt.Errorf("insert ledger record: %w", err)
	}

	slog.DebugContext(ctx, "Ledger record saved to SQLite",
		"id", rec.ID,
		"owner", rec.Owner.String(),
		"type", rec.Type,
		"amount_cents", rec.Amount.Cents)
	return rec, nil
}

// Aggregate implements ledger.RecordStore
func (r *SQLiteRepository) Aggregate(ctx context.Context, q ledger.Query) ([]ledger.Bucket, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	dims := groupDims(q.GroupBy)
	query, args := buildAggregate(q, dims)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger records: %w", err)
	}
	defer rows.Close()

	out := make([]ledger.Bucket, 0)
	nums := make([]int64, len(dims))
	strs := make([]string, len(dims))
	for rows.Next() {
		var b ledger.Bucket
		dest := make([]any, 0, len(dims)+2)
		for i, d := range dims {
			if d.text {
				dest = append(dest, &strs[i])
			} else {
				dest = append(dest, &nums[i])
			}
		}
		dest = append(dest, &b.Total.Cents, &b.Count)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		if b.Count == 0 {
			continue
		}
		for i, d := range dims {
			d.set(&b.Key, nums[i], strs[i])
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	ledger.SortBuckets(q.GroupBy, out)
	return out, nil
}

// Records implements ledger.RecordStore
func (r *SQLiteRepository) Records(ctx context.Context, q ledger.Query) ([]core.LedgerRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query, args := buildRecords(q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger records: %w", err)
	}
	defer rows.Close()

	out := make([]core.LedgerRecord, 0)
	for rows.Next() {
		var (
			rec        core.LedgerRecord
			kind, typ  string
			occurredMs int64
		)
		if err := rows.Scan(&rec.ID, &kind, &rec.Owner.ID, &typ, &rec.Amount.Cents,
			&rec.Category, &rec.Description, &occurredMs, &rec.AddedBy); err != nil {
			return nil, fmt.Errorf("scan ledger record: %w", err)
		}
		rec.Owner.Kind = core.OwnerKind(kind)
		rec.Type = core.MovementType(typ)
		rec.OccurredAt = time.UnixMilli(occurredMs).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger records: %w", err)
	}
	return out, nil
}

// ListBudgets implements ledger.BudgetStore
func (r *SQLiteRepository) ListBudgets(ctx context.Context, owner core.OwnerScope) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, selectBudgetSQL+` WHERE owner_kind = ? AND owner_id = ? ORDER BY created_at_ms, id`,
		string(owner.Kind), owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := make([]core.Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

// GetBudget implements ledger.BudgetStore
func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, selectBudgetSQL+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, &core.NotFoundError{Kind: "budget", ID: id}
	}
	return b, err
}

// CreateBudget implements ledger.BudgetStore
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	b.Category = strings.TrimSpace(b.Category)
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.CreatedAt = b.CreatedAt.UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Budget{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM budgets WHERE owner_kind = ? AND owner_id = ? AND category = ? COLLATE NOCASE AND period = ?`,
		string(b.Owner.Kind), b.Owner.ID, b.Category, string(b.Period)).Scan(&existing)
	if err != nil {
		return core.Budget{}, fmt.Errorf("check duplicate budget: %w", err)
	}
	if existing > 0 {
		return core.Budget{}, duplicateBudget(b)
	}

	_, err = tx.ExecContext(ctx, insertBudgetSQL,
		b.ID, string(b.Owner.Kind), b.Owner.ID, b.Category, b.Limit.Cents, string(b.Period),
		b.AlertsEnabled, b.CurrentSpent.Cents, b.CreatedAt.UnixMilli(), b.CreatedAt.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.Budget{}, duplicateBudget(b)
		}
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Budget{}, fmt.Errorf("commit budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget created",
		"id", b.ID,
		"owner", b.Owner.String(),
		"category", b.Category,
		"period", b.Period,
		"limit_cents", b.Limit.Cents)
	return b, nil
}

func duplicateBudget(b core.Budget) error {
	return core.NewValidationError("category", "a %s budget for %q already exists", b.Period, b.Category)
}

// UpdateSpent implements ledger.BudgetStore
func (r *SQLiteRepository) UpdateSpent(ctx context.Context, id string, spent core.Money) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET current_spent_cents = ?, updated_at_ms = ? WHERE id = ?`,
		spent.Cents, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update budget spent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update budget spent: %w", err)
	}
	if n == 0 {
		return &core.NotFoundError{Kind: "budget", ID: id}
	}
	return nil
}

// ListBudgetOwners implements ledger.BudgetStore
func (r *SQLiteRepository) ListBudgetOwners(ctx context.Context) ([]core.OwnerScope, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT owner_kind, owner_id FROM budgets ORDER BY owner_kind, owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list budget owners: %w", err)
	}
	defer rows.Close()

	out := make([]core.OwnerScope, 0)
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return nil, fmt.Errorf("scan budget owner: %w", err)
		}
		out = append(out, core.OwnerScope{Kind: core.OwnerKind(kind), ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budget owners: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                  core.Budget
		kind, period       string
		createdMs, spentCt int64
	)
	err := row.Scan(&b.ID, &kind, &b.Owner.ID, &b.Category, &b.Limit.Cents, &period,
		&b.AlertsEnabled, &spentCt, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, err
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	b.Owner.Kind = core.OwnerKind(kind)
	b.Period = core.Period(period)
	b.CurrentSpent = core.Money{Cents: spentCt}
	b.CreatedAt = time.UnixMilli(createdMs).UTC()
	return b, nil
}
