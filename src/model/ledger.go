package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/username/finwatch/src/ledger"
)

var ErrNotFound = errors.New("record not found")

// LedgerRepository stores transactions and expenses. Amounts are kept as
// decimal strings.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions (id, user_id, amount, type, category, description, occurred_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Amount.String(), string(t.Kind), t.Category, t.Description,
		t.OccurredAt.UTC(), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// UpdateTransaction rewrites an owned transaction. ErrNotFound is returned
// when id does not belong to the owner.
func (r *LedgerRepository) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
	UPDATE transactions SET amount = ?, type = ?, category = ?, description = ?, occurred_at = ?, updated_at = ?
	WHERE id = ? AND user_id = ?`,
		t.Amount.String(), string(t.Kind), t.Category, t.Description, t.OccurredAt.UTC(), t.UpdatedAt,
		t.ID, t.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return requireAffected(res)
}

func (r *LedgerRepository) DeleteTransaction(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return requireAffected(res)
}

// ListTransactions returns the owner's transactions, newest first.
func (r *LedgerRepository) ListTransactions(ctx context.Context, owner string) ([]ledger.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, user_id, amount, type, category, description, occurred_at, created_at, updated_at
	FROM transactions WHERE user_id = ? ORDER BY occurred_at DESC, created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []ledger.Transaction{}
	for rows.Next() {
		var t ledger.Transaction
		var amount, kind string
		if err := rows.Scan(&t.ID, &t.OwnerID, &amount, &kind, &t.Category, &t.Description, &t.OccurredAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s has invalid amount %q: %w", t.ID, amount, err)
		}
		t.Kind = ledger.Kind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *LedgerRepository) CreateExpense(ctx context.Context, e *ledger.Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO expenses (id, user_id, amount, category, description, occurred_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Amount.String(), e.Category, e.Description, e.OccurredAt.UTC(), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

// UpdateExpense rewrites an owned expense. ErrNotFound is returned when id
// does not belong to the owner.
func (r *LedgerRepository) UpdateExpense(ctx context.Context, e *ledger.Expense) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE expenses SET amount = ?, category = ?, description = ?, occurred_at = ?
	WHERE id = ? AND user_id = ?`,
		e.Amount.String(), e.Category, e.Description, e.OccurredAt.UTC(), e.ID, e.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update expense %s: %w", e.ID, err)
	}
	return requireAffected(res)
}

func (r *LedgerRepository) DeleteExpense(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	return requireAffected(res)
}

// ListExpenses returns the owner's expenses, newest first.
func (r *LedgerRepository) ListExpenses(ctx context.Context, owner string) ([]ledger.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, user_id, amount, category, description, occurred_at, created_at
	FROM expenses WHERE user_id = ? ORDER BY occurred_at DESC, created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []ledger.Expense{}
	for rows.Next() {
		var e ledger.Expense
		var amount string
		if err := rows.Scan(&e.ID, &e.OwnerID, &amount, &e.Category, &e.Description, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("expense %s has invalid amount %q: %w", e.ID, amount, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
