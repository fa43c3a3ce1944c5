package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/username/finwatch/src/ledger"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/security/validation"
)

// TransactionInput is the create/update payload. Amount accepts a JSON
// number or a numeric string; an empty Date means today.
type TransactionInput struct {
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
}

type ExpenseInput struct {
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
}

type LedgerService struct {
	store     LedgerStore
	watchlist WatchlistCounter
	now       func() time.Time
}

func NewLedgerService(store LedgerStore, watchlist WatchlistCounter) *LedgerService {
	return &LedgerService{store: store, watchlist: watchlist, now: time.Now}
}

func (s *LedgerService) parseDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		y, m, d := s.now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return validation.ValidateDateString(raw, "date")
}

func (s *LedgerService) buildTransaction(owner string, in TransactionInput) (*ledger.Transaction, error) {
	amount, err := validation.ValidatePositiveAmount(in.Amount.String(), "amount")
	if err != nil {
		return nil, err
	}
	kind, err := ledger.ParseKind(in.Type)
	if err != nil {
		return nil, err
	}
	date, err := s.parseDate(in.Date)
	if err != nil {
		return nil, err
	}
	t := &ledger.Transaction{
		OwnerID:     owner,
		Amount:      amount,
		Kind:        kind,
		Category:    in.Category,
		Description: in.Description,
		OccurredAt:  date,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *LedgerService) AddTransaction(ctx context.Context, owner string, in TransactionInput) (*ledger.Transaction, error) {
	t, err := s.buildTransaction(owner, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Transaction added", "transactionID", t.ID, "type", t.Kind)
	return t, nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, owner, id string, in TransactionInput) (*ledger.Transaction, error) {
	t, err := s.buildTransaction(owner, in)
	if err != nil {
		return nil, err
	}
	t.ID = id
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, owner, id string) error {
	return s.store.DeleteTransaction(ctx, owner, id)
}

func (s *LedgerService) Transactions(ctx context.Context, owner string) ([]ledger.Transaction, error) {
	return s.store.ListTransactions(ctx, owner)
}

func (s *LedgerService) buildExpense(owner string, in ExpenseInput) (*ledger.Expense, error) {
	amount, err := validation.ValidatePositiveAmount(in.Amount.String(), "amount")
	if err != nil {
		return nil, err
	}
	date, err := s.parseDate(in.Date)
	if err != nil {
		return nil, err
	}
	e := &ledger.Expense{
		OwnerID:     owner,
		Amount:      amount,
		Category:    in.Category,
		Description: in.Description,
		OccurredAt:  date,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *LedgerService) AddExpense(ctx context.Context, owner string, in ExpenseInput) (*ledger.Expense, error) {
	e, err := s.buildExpense(owner, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateExpense(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *LedgerService) UpdateExpense(ctx context.Context, owner, id string, in ExpenseInput) (*ledger.Expense, error) {
	e, err := s.buildExpense(owner, in)
	if err != nil {
		return nil, err
	}
	e.ID = id
	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, owner, id string) error {
	return s.store.DeleteExpense(ctx, owner, id)
}

func (s *LedgerService) Expenses(ctx context.Context, owner string) ([]ledger.Expense, error) {
	return s.store.ListExpenses(ctx, owner)
}

func (s *LedgerService) Summary(ctx context.Context, owner string) (ledger.Summary, error) {
	txs, err := s.store.ListTransactions(ctx, owner)
	if err != nil {
		return ledger.Summary{}, err
	}
	return ledger.Summarize(txs, s.now()), nil
}

func (s *LedgerService) Timeline(ctx context.Context, owner string, tf ledger.Timeframe) ([]ledger.TimelinePoint, error) {
	txs, err := s.store.ListTransactions(ctx, owner)
	if err != nil {
		return nil, err
	}
	exps, err := s.store.ListExpenses(ctx, owner)
	if err != nil {
		return nil, err
	}
	return ledger.Timeline(txs, exps, tf, s.now()), nil
}

// Spending is the category breakdown across debits and expense items.
func (s *LedgerService) Spending(ctx context.Context, owner string) (ledger.Spending, error) {
	txs, err := s.store.ListTransactions(ctx, owner)
	if err != nil {
		return ledger.Spending{}, err
	}
	exps, err := s.store.ListExpenses(ctx, owner)
	if err != nil {
		return ledger.Spending{}, err
	}
	return ledger.SpendingByCategory(txs, exps), nil
}

// Stats combines expenses, transactions and the watchlist size.
func (s *LedgerService) Stats(ctx context.Context, owner string) (ledger.Stats, error) {
	txs, err := s.store.ListTransactions(ctx, owner)
	if err != nil {
		return ledger.Stats{}, err
	}
	exps, err := s.store.ListExpenses(ctx, owner)
	if err != nil {
		return ledger.Stats{}, err
	}
	count := 0
	if s.watchlist != nil {
		if count, err = s.watchlist.CountByOwner(ctx, owner); err != nil {
			return ledger.Stats{}, fmt.Errorf("count watchlist: %w", err)
		}
	}
	return ledger.UserStats(exps, txs, count), nil
}
