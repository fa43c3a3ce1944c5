package market

import "github.com/username/finwatch/src/watchlist"

type popularItem struct {
	symbol, name, exchange, providerID string
}

var popularSeed = map[watchlist.InstrumentType][]popularItem{
	watchlist.US: {
		{"AAPL", "Apple Inc.", "NASDAQ", ""},
		{"MSFT", "Microsoft Corporation", "NASDAQ", ""},
		{"GOOGL", "Alphabet Inc.", "NASDAQ", ""},
		{"AMZN", "Amazon.com Inc.", "NASDAQ", ""},
		{"TSLA", "Tesla Inc.", "NASDAQ", ""},
	},
	watchlist.Indian: {
		{"RELIANCE", "Reliance Industries Ltd", "NSE", ""},
		{"TCS", "Tata Consultancy Services Ltd", "NSE", ""},
		{"HDFCBANK", "HDFC Bank Ltd", "NSE", ""},
		{"INFY", "Infosys Ltd", "NSE", ""},
		{"ICICIBANK", "ICICI Bank Ltd", "NSE", ""},
	},
	watchlist.Crypto: {
		{"BTC", "Bitcoin", "Crypto", "bitcoin"},
		{"ETH", "Ethereum", "Crypto", "ethereum"},
		{"BNB", "BNB", "Crypto", "binancecoin"},
		{"ADA", "Cardano", "Crypto", "cardano"},
		{"SOL", "Solana", "Crypto", "solana"},
	},
}

// PopularList returns the curated instruments shown before a user searches.
func PopularList(t watchlist.InstrumentType) []Instrument {
	items := popularSeed[t]
	out := make([]Instrument, 0, len(items))
	for _, it := range items {
		in := newInstrument(t, it.symbol, it.name)
		in.Exchange = it.exchange
		out = append(out, in)
	}
	return out
}
