package watchlist

import (
	"cmp"
	"fmt"
	"slices"
)

type Direction string

const (
	Gainers Direction = "gainers"
	Losers  Direction = "losers"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Gainers, "":
		return Gainers, nil
	case Losers:
		return Losers, nil
	}
	return "", fmt.Errorf("%w: unknown direction %q", ErrValidation, s)
}

// DefaultMovers is how many gainers and losers the dashboard shows.
const DefaultMovers = 5

// TopMovers ranks entries by change percent: descending for gainers,
// ascending for losers, ties broken by symbol. Entries without a change
// percent are left out.
func TopMovers(entries []Entry, dir Direction, n int) []Entry {
	if n <= 0 {
		return []Entry{}
	}
	ranked := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.ChangePercent != nil {
			ranked = append(ranked, e)
		}
	}
	slices.SortStableFunc(ranked, func(a, b Entry) int {
		c := cmp.Compare(*a.ChangePercent, *b.ChangePercent)
		if dir == Gainers {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Symbol, b.Symbol)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Movers is the dashboard split into rising and falling instruments.
type Movers struct {
	Gainers []Entry `json:"gainers"`
	Losers  []Entry `json:"losers"`
}

// Split returns the top gainers (change > 0) and top losers (change < 0).
func Split(entries []Entry, n int) Movers {
	var up, down []Entry
	for _, e := range entries {
		switch {
		case e.ChangePercent == nil:
		case *e.ChangePercent > 0:
			up = append(up, e)
		case *e.ChangePercent < 0:
			down = append(down, e)
		}
	}
	return Movers{
		Gainers: TopMovers(up, Gainers, n),
		Losers:  TopMovers(down, Losers, n),
	}
}
