package services

import (
	"context"
	"errors"

	"github.com/username/finwatch/src/ledger"
	"github.com/username/finwatch/src/market"
	"github.com/username/finwatch/src/watchlist"
)

var (
	ErrUnknownPlan      = errors.New("unknown subscription plan")
	ErrPaymentFailed    = errors.New("payment failed")
	ErrAssistantOffline = errors.New("assistant insight is not configured")
)

// QuoteSources hands out a quote source per instrument type.
type QuoteSources interface {
	QuoteSource(t watchlist.InstrumentType) watchlist.QuoteSource
}

// MarketService is the read side of the market registry used by handlers.
type MarketService interface {
	Search(ctx context.Context, t watchlist.InstrumentType, query string) ([]market.Instrument, error)
	Quote(ctx context.Context, t watchlist.InstrumentType, symbol string) (market.Quote, error)
	Popular(t watchlist.InstrumentType) []market.Instrument
}

// WatchlistCounter counts a user's remote watchlist rows.
type WatchlistCounter interface {
	CountByOwner(ctx context.Context, owner string) (int, error)
}

// LedgerStore persists transactions and expenses per owner.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, t *ledger.Transaction) error
	UpdateTransaction(ctx context.Context, t *ledger.Transaction) error
	DeleteTransaction(ctx context.Context, owner, id string) error
	ListTransactions(ctx context.Context, owner string) ([]ledger.Transaction, error)
	CreateExpense(ctx context.Context, e *ledger.Expense) error
	UpdateExpense(ctx context.Context, e *ledger.Expense) error
	DeleteExpense(ctx context.Context, owner, id string) error
	ListExpenses(ctx context.Context, owner string) ([]ledger.Expense, error)
}

// PaymentProvider charges a customer for a plan and returns its customer id.
type PaymentProvider interface {
	Charge(ctx context.Context, email string, plan Plan) (customerID string, err error)
}

// InsightGenerator produces a short markdown commentary for a prompt.
type InsightGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
