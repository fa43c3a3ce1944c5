package ledger

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used when no display currency is configured.
const DefaultCurrency = "INR"

// Format renders amount in currency, e.g. "₹1,200.50". Unknown currency
// codes fall back to DefaultCurrency.
func Format(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		currency = DefaultCurrency
		cur = money.GetCurrency(currency)
	}
	factor := decimal.New(1, int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}

// FormatSigned prefixes positive amounts with "+".
func FormatSigned(amount decimal.Decimal, currency string) string {
	if amount.IsPositive() {
		return "+" + Format(amount, currency)
	}
	return Format(amount, currency)
}

var indianPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatWhole renders a rounded amount with Indian digit grouping
// ("12,34,567"), as the analytics cards do.
func FormatWhole(amount decimal.Decimal) string {
	return indianPrinter.Sprintf("%d", amount.Round(0).IntPart())
}
