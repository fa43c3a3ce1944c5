package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"
	"github.com/username/finwatch/src/market"
	"github.com/username/finwatch/src/watchlist"
)

func priceCell(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func percentCell(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", *p)
}

// SearchResults renders instrument search hits.
func SearchResults(t watchlist.InstrumentType, query string, results []market.Instrument) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("%s results for %q", t, query))
	if len(results) == 0 {
		doc.PlainText("No matches.")
		return doc.String()
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{cell(r.Symbol), cell(r.Name), cell(r.Exchange), priceCell(r.Price), percentCell(r.ChangePercent)})
	}
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignRight},
		Header:    []string{"Symbol", "Name", "Exchange", "Price", "Change"},
		Rows:      rows,
	})
	return doc.String()
}

// Quotes renders one row per requested symbol, in order. Symbols without a
// quote are listed as such.
func Quotes(symbols []string, quotes map[string]market.Quote) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	rows := make([][]string, 0, len(symbols))
	for _, sym := range symbols {
		q, ok := quotes[sym]
		if !ok {
			rows = append(rows, []string{cell(sym), "no quote", "-", "-", ""})
			continue
		}
		rows = append(rows, []string{cell(sym), cell(q.Name), fmt.Sprintf("%.2f", q.Price), percentCell(q.ChangePercent), cell(q.Currency)})
	}
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignLeft},
		Header:    []string{"Symbol", "Name", "Price", "Change", "Currency"},
		Rows:      rows,
	})
	return doc.String()
}
