package renderer

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/username/finwatch/src/ledger"
	"github.com/username/finwatch/src/market"
	"github.com/username/finwatch/src/watchlist"
)

func TestSpendingReport(t *testing.T) {
	now := time.Now()
	txs := []ledger.Transaction{
		{Amount: decimal.NewFromInt(2000), Kind: ledger.Credit, Category: "Salary", OccurredAt: now},
		{Amount: decimal.NewFromInt(600), Kind: ledger.Debit, Category: "Rent", OccurredAt: now},
	}
	expenses := []ledger.Expense{{Amount: decimal.NewFromInt(200), Category: "Food | Dining", OccurredAt: now}}

	out := SpendingReport(ledger.Summarize(txs, now), ledger.UserStats(expenses, txs, 3), ledger.SpendingByCategory(txs, expenses), "USD")
	assert.Contains(t, out, "# Spending report")
	assert.Contains(t, out, "$1,200.00")
	assert.Contains(t, out, "## Spending by category")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, `\| Dining`)
	assert.NotContains(t, out, "Food | Dining")
	assert.Contains(t, out, "Savings rate: 60.0%")
	assert.Contains(t, out, "Salary: $2,000.00 (1)")
	assert.Contains(t, out, "_2 transactions, 1 expenses, 3 watched instruments._")
}

func TestSpendingReportWithoutActivity(t *testing.T) {
	out := SpendingReport(ledger.Summarize(nil, time.Now()), ledger.UserStats(nil, nil, 0), ledger.SpendingByCategory(nil, nil), "USD")
	assert.Contains(t, out, "# Spending report")
	assert.NotContains(t, out, "Spending by category")
	assert.NotContains(t, out, "Top income sources")
}

func TestSearchResults(t *testing.T) {
	results := []market.Instrument{
		{Type: watchlist.US, Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ", Price: watchlist.Float(190.5), ChangePercent: watchlist.Float(-1.25)},
		{Type: watchlist.US, Symbol: "XYZ", Name: "Pipe | Corp"},
	}
	out := SearchResults(watchlist.US, "apple", results)
	assert.Contains(t, out, `us results for "apple"`)
	assert.Contains(t, out, "190.50")
	assert.Contains(t, out, "-1.25%")
	assert.Contains(t, out, `\| Corp`)
	assert.NotContains(t, out, "Pipe | Corp")

	assert.Contains(t, SearchResults(watchlist.Crypto, "zzz", nil), "No matches.")
}

func TestQuotesKeepsRequestOrder(t *testing.T) {
	quotes := map[string]market.Quote{"BTC": {Symbol: "BTC", Name: "Bitcoin", Price: 65000, Currency: "USD"}}
	out := Quotes([]string{"DOGE", "BTC"}, quotes)
	assert.Contains(t, out, "no quote")
	assert.Contains(t, out, "65000.00")
	assert.Less(t, strings.Index(out, "DOGE"), strings.Index(out, "BTC"))
}

func TestCallout(t *testing.T) {
	assert.Contains(t, Callout("Build Your Portfolio", "Add stocks."), "> **Build Your Portfolio**: Add stocks.")
}
