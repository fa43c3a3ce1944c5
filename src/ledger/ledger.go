// Package ledger models income/expense transactions and the aggregates the
// dashboards show. Amounts are decimals; a transaction is either a credit
// or a debit and expenses always count as debits.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/finwatch/src/security/validation"
)

type Kind string

const (
	Credit Kind = "credit"
	Debit  Kind = "debit"
)

func (k Kind) Valid() bool { return k == Credit || k == Debit }

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: type must be 'credit' or 'debit', got %q", validation.ErrValidationFailed, s)
	}
	return k, nil
}

type Transaction struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        Kind            `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	OccurredAt  time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Validate checks the transaction and cleans its free text in place.
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", validation.ErrValidationFailed)
	}
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: type must be 'credit' or 'debit'", validation.ErrValidationFailed)
	}
	category, err := cleanCategory(t.Category)
	if err != nil {
		return err
	}
	t.Category = category
	desc, err := validation.ValidateFreeText(t.Description, "description", t.OwnerID, validation.MaxDescriptionLength)
	if err != nil {
		return err
	}
	t.Description = desc
	if t.OccurredAt.IsZero() {
		return fmt.Errorf("%w: date is required", validation.ErrValidationFailed)
	}
	return nil
}

// Signed is positive for credits and negative for debits.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

type Expense struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	OccurredAt  time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (e *Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", validation.ErrValidationFailed)
	}
	category, err := cleanCategory(e.Category)
	if err != nil {
		return err
	}
	e.Category = category
	desc, err := validation.ValidateFreeText(e.Description, "description", e.OwnerID, validation.MaxDescriptionLength)
	if err != nil {
		return err
	}
	e.Description = desc
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: date is required", validation.ErrValidationFailed)
	}
	return nil
}

// AsDebit views the expense as a debit transaction for aggregation.
func (e Expense) AsDebit() Transaction {
	return Transaction{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Amount:      e.Amount,
		Kind:        Debit,
		Category:    e.Category,
		Description: e.Description,
		OccurredAt:  e.OccurredAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.CreatedAt,
	}
}

// Categories are labels, not markup, so they are trimmed and bounded but
// not HTML-escaped ("Bills & Utilities" must survive).
func cleanCategory(s string) (string, error) {
	c := strings.TrimSpace(validation.StripUnprintable(s))
	if err := validation.ValidateStringNotEmpty(c, "category"); err != nil {
		return "", err
	}
	if err := validation.ValidateStringMaxLength(c, validation.MaxCategoryLength, "category"); err != nil {
		return "", err
	}
	if err := validation.CheckXSSPatterns(c, "category", ""); err != nil {
		return "", err
	}
	return c, nil
}
