package watchlist

import (
	"fmt"
	"strings"
	"time"

	"github.com/username/finwatch/src/security/validation"
)

// Entry is one watched instrument. Price fields are nil until a quote
// has been seen.
type Entry struct {
	Key           string         `json:"key"`
	Type          InstrumentType `json:"type"`
	Symbol        string         `json:"symbol"`
	DisplayName   string         `json:"name"`
	LastPrice     *float64       `json:"price,omitempty"`
	ChangePercent *float64       `json:"change_percent,omitempty"`
	MarketCap     *float64       `json:"market_cap,omitempty"`
	Exchange      string         `json:"exchange,omitempty"`
	OwnerID       string         `json:"owner_id,omitempty"`
	AddedAt       time.Time      `json:"added_at"`
}

// NewEntry builds an entry with a normalized symbol and derived key.
func NewEntry(t InstrumentType, symbol, name string) Entry {
	sym := NormalizeSymbol(symbol)
	name = strings.TrimSpace(name)
	if name == "" {
		name = sym
	}
	return Entry{
		Key:         Key(t, sym),
		Type:        t,
		Symbol:      sym,
		DisplayName: name,
		AddedAt:     time.Now().UTC(),
	}
}

// Validate checks the entry shape and that Key matches Type and Symbol.
func (e Entry) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown instrument type %q", ErrValidation, e.Type)
	}
	if strings.TrimSpace(e.Symbol) == "" {
		return fmt.Errorf("%w: symbol cannot be empty", ErrValidation)
	}
	if e.Symbol != NormalizeSymbol(e.Symbol) {
		return fmt.Errorf("%w: symbol %q is not normalized", ErrValidation, e.Symbol)
	}
	if err := validation.ValidateSymbol(e.Symbol); err != nil {
		return fmt.Errorf("%w: invalid symbol %q", ErrValidation, e.Symbol)
	}
	if e.Key != Key(e.Type, e.Symbol) {
		return fmt.Errorf("%w: key %q does not match %s/%s", ErrValidation, e.Key, e.Type, e.Symbol)
	}
	if err := validation.ValidateStringMaxLength(e.DisplayName, validation.DefaultMaxStringLength, "name"); err != nil {
		return fmt.Errorf("%w: name too long", ErrValidation)
	}
	return nil
}

func (e Entry) clone() Entry {
	e.LastPrice = copyFloat(e.LastPrice)
	e.ChangePercent = copyFloat(e.ChangePercent)
	e.MarketCap = copyFloat(e.MarketCap)
	return e
}

// PriceUpdate carries the fields a quote may change. Nil fields are left alone.
type PriceUpdate struct {
	Price         *float64
	ChangePercent *float64
	MarketCap     *float64
	Name          string
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
