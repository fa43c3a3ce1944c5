package ledger

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/finwatch/src/security/validation"
)

const (
	TopExpenseCount = 5
	TopIncomeCount  = 3
)

// CategoryTotal is the sum of one category within one kind.
type CategoryTotal struct {
	Category string          `json:"category"`
	Kind     Kind            `json:"type"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// CategoryKey identifies a (kind, category) group. A category used for
// both income and spending yields two groups.
func CategoryKey(k Kind, category string) string {
	return string(k) + ":" + category
}

func TotalsByCategory(txs []Transaction) map[string]CategoryTotal {
	totals := make(map[string]CategoryTotal)
	for _, t := range txs {
		key := CategoryKey(t.Kind, t.Category)
		ct, ok := totals[key]
		if !ok {
			ct = CategoryTotal{Category: t.Category, Kind: t.Kind, Total: decimal.Zero}
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++
		totals[key] = ct
	}
	return totals
}

// TopCategories returns the n largest groups of kind, by total descending
// then category name.
func TopCategories(totals map[string]CategoryTotal, kind Kind, n int) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(totals))
	for _, ct := range totals {
		if ct.Kind == kind {
			out = append(out, ct)
		}
	}
	slices.SortFunc(out, func(a, b CategoryTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func TopExpenseCategories(totals map[string]CategoryTotal) []CategoryTotal {
	return TopCategories(totals, Debit, TopExpenseCount)
}

func TopIncomeCategories(totals map[string]CategoryTotal) []CategoryTotal {
	return TopCategories(totals, Credit, TopIncomeCount)
}

// Summary is the transaction analytics panel.
type Summary struct {
	TotalCredits     decimal.Decimal `json:"total_credits"`
	TotalDebits      decimal.Decimal `json:"total_debits"`
	NetBalance       decimal.Decimal `json:"net_balance"`
	CreditCount      int             `json:"credit_count"`
	DebitCount       int             `json:"debit_count"`
	ThisMonthCredits decimal.Decimal `json:"this_month_credits"`
	ThisMonthDebits  decimal.Decimal `json:"this_month_debits"`
	ThisMonthNet     decimal.Decimal `json:"this_month_net"`
	Categories       []CategoryTotal `json:"categories"`
	TopExpense       []CategoryTotal `json:"top_expense_categories"`
	TopIncome        []CategoryTotal `json:"top_income_categories"`
}

// Summarize computes totals over txs. "This month" is the calendar month
// of now, in now's location.
func Summarize(txs []Transaction, now time.Time) Summary {
	s := Summary{
		TotalCredits:     decimal.Zero,
		TotalDebits:      decimal.Zero,
		ThisMonthCredits: decimal.Zero,
		ThisMonthDebits:  decimal.Zero,
	}
	year, month, _ := now.Date()
	for _, t := range txs {
		ty, tm, _ := t.OccurredAt.In(now.Location()).Date()
		thisMonth := ty == year && tm == month
		switch t.Kind {
		case Credit:
			s.TotalCredits = s.TotalCredits.Add(t.Amount)
			s.CreditCount++
			if thisMonth {
				s.ThisMonthCredits = s.ThisMonthCredits.Add(t.Amount)
			}
		case Debit:
			s.TotalDebits = s.TotalDebits.Add(t.Amount)
			s.DebitCount++
			if thisMonth {
				s.ThisMonthDebits = s.ThisMonthDebits.Add(t.Amount)
			}
		}
	}
	s.NetBalance = s.TotalCredits.Sub(s.TotalDebits)
	s.ThisMonthNet = s.ThisMonthCredits.Sub(s.ThisMonthDebits)

	totals := TotalsByCategory(txs)
	s.Categories = TopCategories(totals, Debit, -1)
	s.Categories = append(s.Categories, TopCategories(totals, Credit, -1)...)
	s.TopExpense = TopExpenseCategories(totals)
	s.TopIncome = TopIncomeCategories(totals)
	return s
}

// Stats is the dashboard overview across expenses and transactions.
type Stats struct {
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	TotalCredits     decimal.Decimal `json:"total_credits"`
	TotalDebits      decimal.Decimal `json:"total_debits"`
	ExpenseItems     decimal.Decimal `json:"expense_items_total"`
	NetBalance       decimal.Decimal `json:"net_balance"`
	ExpenseCount     int             `json:"expense_count"`
	TransactionCount int             `json:"transaction_count"`
	WatchlistCount   int             `json:"watchlist_count"`
}

// UserStats: total expenses are expense items plus debits; net balance is
// credits minus debits minus expense items.
func UserStats(expenses []Expense, txs []Transaction, watchlistCount int) Stats {
	st := Stats{
		TotalCredits:     decimal.Zero,
		TotalDebits:      decimal.Zero,
		ExpenseItems:     decimal.Zero,
		ExpenseCount:     len(expenses),
		TransactionCount: len(txs),
		WatchlistCount:   watchlistCount,
	}
	for _, e := range expenses {
		st.ExpenseItems = st.ExpenseItems.Add(e.Amount)
	}
	for _, t := range txs {
		if t.Kind == Credit {
			st.TotalCredits = st.TotalCredits.Add(t.Amount)
		} else {
			st.TotalDebits = st.TotalDebits.Add(t.Amount)
		}
	}
	st.TotalExpenses = st.ExpenseItems.Add(st.TotalDebits)
	st.NetBalance = st.TotalCredits.Sub(st.TotalDebits).Sub(st.ExpenseItems)
	return st
}

type Timeframe string

const (
	Week  Timeframe = "week"
	Month Timeframe = "month"
	Year  Timeframe = "year"
)

func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case "", Month:
		return Month, nil
	case Week:
		return Week, nil
	case Year:
		return Year, nil
	}
	return "", fmt.Errorf("%w: timeframe must be week, month or year", validation.ErrValidationFailed)
}

// TimelinePoint is one bucket of the spending chart.
type TimelinePoint struct {
	Period  string          `json:"period"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Timeline buckets income and spending (debits plus expenses) since the
// start of the timeframe: per day for week and month, per month for year.
// Buckets are sorted by period; empty periods are omitted.
func Timeline(txs []Transaction, expenses []Expense, tf Timeframe, now time.Time) []TimelinePoint {
	var start time.Time
	layout := "2006-01-02"
	switch tf {
	case Week:
		start = now.AddDate(0, 0, -7)
	case Year:
		start = now.AddDate(-1, 0, 0)
		layout = "2006-01"
	default:
		start = now.AddDate(0, -1, 0)
	}

	all := make([]Transaction, 0, len(txs)+len(expenses))
	all = append(all, txs...)
	for _, e := range expenses {
		all = append(all, e.AsDebit())
	}

	buckets := make(map[string]*TimelinePoint)
	for _, t := range all {
		if t.OccurredAt.Before(start) {
			continue
		}
		period := t.OccurredAt.In(now.Location()).Format(layout)
		p, ok := buckets[period]
		if !ok {
			p = &TimelinePoint{Period: period, Income: decimal.Zero, Expense: decimal.Zero}
			buckets[period] = p
		}
		if t.Kind == Credit {
			p.Income = p.Income.Add(t.Amount)
		} else {
			p.Expense = p.Expense.Add(t.Amount)
		}
	}

	out := make([]TimelinePoint, 0, len(buckets))
	for _, p := range buckets {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b TimelinePoint) int { return cmp.Compare(a.Period, b.Period) })
	return out
}

// CategoryShare is one category's slice of total spending.
type CategoryShare struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Percent  decimal.Decimal `json:"percent"`
}

// Spending is the analytics breakdown: debits and expense items are
// grouped together by category.
type Spending struct {
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalSpending decimal.Decimal `json:"total_spending"`
	NetSavings    decimal.Decimal `json:"net_savings"`
	SavingsRate   decimal.Decimal `json:"savings_rate"`
	Categories    []CategoryShare `json:"categories"`
}

var hundred = decimal.NewFromInt(100)

// SpendingByCategory sorts categories by total descending then name.
// Percentages and the savings rate are rounded to one decimal place and
// are zero when their denominator is zero.
func SpendingByCategory(txs []Transaction, expenses []Expense) Spending {
	all := make([]Transaction, 0, len(txs)+len(expenses))
	all = append(all, txs...)
	for _, e := range expenses {
		all = append(all, e.AsDebit())
	}

	sp := Spending{TotalIncome: decimal.Zero, TotalSpending: decimal.Zero, SavingsRate: decimal.Zero}
	for _, t := range all {
		if t.Kind == Credit {
			sp.TotalIncome = sp.TotalIncome.Add(t.Amount)
		} else {
			sp.TotalSpending = sp.TotalSpending.Add(t.Amount)
		}
	}
	sp.NetSavings = sp.TotalIncome.Sub(sp.TotalSpending)
	if sp.TotalIncome.IsPositive() {
		sp.SavingsRate = sp.NetSavings.Div(sp.TotalIncome).Mul(hundred).Round(1)
	}

	debits := TopCategories(TotalsByCategory(all), Debit, -1)
	sp.Categories = make([]CategoryShare, 0, len(debits))
	for _, ct := range debits {
		share := CategoryShare{Category: ct.Category, Total: ct.Total, Count: ct.Count, Percent: decimal.Zero}
		if sp.TotalSpending.IsPositive() {
			share.Percent = ct.Total.Div(sp.TotalSpending).Mul(hundred).Round(1)
		}
		sp.Categories = append(sp.Categories, share)
	}
	return sp
}
