package market

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/watchlist"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// maxSearchCoins caps how many search hits get a market lookup.
const maxSearchCoins = 10

type coinGeckoSearchResponse struct {
	Coins []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Symbol        string `json:"symbol"`
		MarketCapRank *int   `json:"market_cap_rank"`
	} `json:"coins"`
}

type coinGeckoMarket struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             *float64 `json:"current_price"`
	PriceChange24h           *float64 `json:"price_change_24h"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	MarketCap                *float64 `json:"market_cap"`
	LastUpdated              string   `json:"last_updated"`
}

// CoinGeckoProvider serves crypto assets. CoinGecko prices by coin id, so
// the provider remembers which id each ticker symbol resolved to.
type CoinGeckoProvider struct {
	http    httpGetter
	baseURL string

	mu  sync.RWMutex
	ids map[string]string // SYMBOL -> coin id
	log *slog.Logger
}

func NewCoinGeckoProvider(o Options) *CoinGeckoProvider {
	o = o.withDefaults(coinGeckoBaseURL, 0.5, 5)
	return &CoinGeckoProvider{
		http:    newHTTPGetter(nil, o),
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		ids:     make(map[string]string),
		log:     logger.L.With("provider", "coingecko"),
	}
}

// Learn records that symbol is priced under coin id.
func (p *CoinGeckoProvider) Learn(symbol, id string) {
	sym := watchlist.NormalizeSymbol(symbol)
	if sym == "" || id == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.ids[sym]; !ok {
		p.ids[sym] = id
	}
}

func (p *CoinGeckoProvider) idFor(sym string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.ids[sym]
	return id, ok
}

func (p *CoinGeckoProvider) Search(ctx context.Context, query string) ([]Instrument, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return []Instrument{}, nil
	}
	var data coinGeckoSearchResponse
	if err := p.http.getJSON(ctx, fmt.Sprintf("%s/search?query=%s", p.baseURL, url.QueryEscape(query)), &data); err != nil {
		return nil, fmt.Errorf("coingecko search %q: %w", query, err)
	}
	if len(data.Coins) == 0 {
		return []Instrument{}, nil
	}

	ids := make([]string, 0, maxSearchCoins)
	for _, c := range data.Coins {
		if len(ids) == maxSearchCoins {
			break
		}
		ids = append(ids, c.ID)
	}
	markets, err := p.markets(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("coingecko markets for %q: %w", query, err)
	}

	out := make([]Instrument, 0, len(markets))
	for _, m := range markets {
		p.Learn(m.Symbol, m.ID)
		in := newInstrument(watchlist.Crypto, m.Symbol, m.Name)
		in.Exchange = "Crypto"
		in.Currency = "USD"
		in.Price = m.CurrentPrice
		in.ChangePercent = m.PriceChangePercentage24h
		in.MarketCap = m.MarketCap
		out = append(out, in)
	}
	return out, nil
}

// Quotes prices every symbol whose coin id is known, resolving unknown
// symbols through the search endpoint first.
func (p *CoinGeckoProvider) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	idToSym := make(map[string]string, len(symbols))
	ids := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		sym := watchlist.NormalizeSymbol(raw)
		id, ok := p.idFor(sym)
		if !ok {
			var err error
			if id, err = p.resolve(ctx, sym); err != nil {
				p.log.Warn("Could not resolve coin id", "symbol", sym, "error", err)
				continue
			}
		}
		idToSym[id] = sym
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no coin ids for %v", ErrNoQuote, symbols)
	}

	markets, err := p.markets(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range markets {
		sym, ok := idToSym[m.ID]
		if !ok || m.CurrentPrice == nil {
			continue
		}
		q := Quote{
			Symbol:        sym,
			Name:          m.Name,
			Price:         *m.CurrentPrice,
			Change:        m.PriceChange24h,
			ChangePercent: m.PriceChangePercentage24h,
			MarketCap:     m.MarketCap,
			Currency:      "USD",
			At:            time.Now().UTC(),
		}
		if t, err := time.Parse(time.RFC3339, m.LastUpdated); err == nil {
			q.At = t
		}
		out[sym] = q
	}
	return out, nil
}

// resolve finds the coin id for a ticker, preferring the best ranked exact
// symbol match.
func (p *CoinGeckoProvider) resolve(ctx context.Context, sym string) (string, error) {
	var data coinGeckoSearchResponse
	if err := p.http.getJSON(ctx, fmt.Sprintf("%s/search?query=%s", p.baseURL, url.QueryEscape(sym)), &data); err != nil {
		return "", err
	}
	bestID, bestRank := "", 0
	for _, c := range data.Coins {
		if !strings.EqualFold(c.Symbol, sym) {
			continue
		}
		rank := 1 << 30
		if c.MarketCapRank != nil {
			rank = *c.MarketCapRank
		}
		if bestID == "" || rank < bestRank {
			bestID, bestRank = c.ID, rank
		}
	}
	if bestID == "" {
		return "", fmt.Errorf("%w: unknown coin %s", ErrNoQuote, sym)
	}
	p.Learn(sym, bestID)
	return bestID, nil
}

func (p *CoinGeckoProvider) markets(ctx context.Context, ids []string) ([]coinGeckoMarket, error) {
	u := fmt.Sprintf("%s/coins/markets?vs_currency=usd&ids=%s&order=market_cap_desc&sparkline=false",
		p.baseURL, url.QueryEscape(strings.Join(ids, ",")))
	var markets []coinGeckoMarket
	if err := p.http.getJSON(ctx, u, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

var _ Provider = (*CoinGeckoProvider)(nil)
