package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"
	"github.com/username/finwatch/src/ledger"
)

// SpendingReport renders the ledger summary, the dashboard stats and the
// spending breakdown.
func SpendingReport(sum ledger.Summary, st ledger.Stats, sp ledger.Spending, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Spending report")
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{"", "Amount"},
		Rows: [][]string{
			{"Income", ledger.Format(sum.TotalCredits, currency)},
			{"Debits", ledger.Format(sum.TotalDebits, currency)},
			{"Expenses", ledger.Format(st.ExpenseItems, currency)},
			{md.Bold("Net balance"), md.Bold(ledger.Format(st.NetBalance, currency))},
			{"This month", ledger.FormatSigned(sum.ThisMonthNet, currency)},
		},
	})

	if len(sp.Categories) > 0 {
		doc.H2("Spending by category")
		rows := make([][]string, 0, len(sp.Categories))
		for _, c := range sp.Categories {
			rows = append(rows, []string{
				cell(c.Category),
				ledger.Format(c.Total, currency),
				c.Percent.StringFixed(1) + "%",
				fmt.Sprintf("%d", c.Count),
			})
		}
		doc.Table(md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight},
			Header:    []string{"Category", "Total", "Share", "Items"},
			Rows:      rows,
		})
		if sp.TotalIncome.IsPositive() {
			doc.PlainText(fmt.Sprintf("Savings rate: %s%%", sp.SavingsRate.StringFixed(1)))
		}
	}

	if len(sum.TopIncome) > 0 {
		doc.H2("Top income sources")
		items := make([]string, 0, len(sum.TopIncome))
		for _, c := range sum.TopIncome {
			items = append(items, fmt.Sprintf("%s: %s (%d)", c.Category, ledger.Format(c.Total, currency), c.Count))
		}
		doc.OrderedList(items...)
	}

	doc.PlainText(fmt.Sprintf("_%d transactions, %d expenses, %d watched instruments._",
		st.TransactionCount, st.ExpenseCount, st.WatchlistCount))
	return doc.String()
}

// Callout renders a titled quote block.
func Callout(title, message string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.PlainText(fmt.Sprintf("> %s: %s", md.Bold(title), message))
	return doc.String()
}
