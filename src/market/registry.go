package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/finwatch/src/config"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/watchlist"
)

const (
	DefaultSearchCacheTTL = 10 * time.Minute
	searchCacheCleanup    = 20 * time.Minute
)

// coinLearner is implemented by providers that price by an internal id.
type coinLearner interface {
	Learn(symbol, id string)
}

// Registry routes market requests to the provider of each instrument type.
type Registry struct {
	providers   map[watchlist.InstrumentType]Provider
	searchCache *cache.Cache
	popular     map[watchlist.InstrumentType][]Instrument
	log         *slog.Logger
}

func NewRegistry(providers map[watchlist.InstrumentType]Provider, searchTTL time.Duration) *Registry {
	if searchTTL <= 0 {
		searchTTL = DefaultSearchCacheTTL
	}
	r := &Registry{
		providers:   providers,
		searchCache: cache.New(searchTTL, searchCacheCleanup),
		popular:     make(map[watchlist.InstrumentType][]Instrument, len(watchlist.Types)),
		log:         logger.L.With("component", "market_registry"),
	}
	for _, t := range watchlist.Types {
		r.popular[t] = PopularList(t)
	}
	if l, ok := providers[watchlist.Crypto].(coinLearner); ok {
		for _, it := range popularSeed[watchlist.Crypto] {
			l.Learn(it.symbol, it.providerID)
		}
	}
	return r
}

// NewDefaultRegistry wires the public providers from the application config.
func NewDefaultRegistry(cfg *config.AppConfig) *Registry {
	opts := Options{Timeout: cfg.MarketHTTPTimeout}
	return NewRegistry(map[watchlist.InstrumentType]Provider{
		watchlist.US:     NewYahooProvider(opts),
		watchlist.Indian: NewAlphaVantageProvider(cfg.AlphaVantageAPIKey, opts),
		watchlist.Crypto: NewCoinGeckoProvider(opts),
	}, cfg.SearchCacheTTL)
}

func (r *Registry) Provider(t watchlist.InstrumentType) (Provider, error) {
	p, ok := r.providers[t]
	if !ok {
		return nil, fmt.Errorf("%w: no market provider for %q", watchlist.ErrValidation, t)
	}
	return p, nil
}

// Search returns matching instruments, served from cache when possible.
// Queries shorter than MinQueryLength return no results without a call.
func (r *Registry) Search(ctx context.Context, t watchlist.InstrumentType, query string) ([]Instrument, error) {
	p, err := r.Provider(t)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return []Instrument{}, nil
	}

	cacheKey := string(t) + "|" + strings.ToLower(query)
	if cached, found := r.searchCache.Get(cacheKey); found {
		return cloneInstruments(cached.([]Instrument)), nil
	}

	results, err := p.Search(ctx, query)
	if err != nil {
		if isRateLimited(err) {
			r.log.Warn("Market search throttled upstream", "type", t, "query", query)
		}
		return nil, err
	}
	r.searchCache.Set(cacheKey, cloneInstruments(results), cache.DefaultExpiration)
	return results, nil
}

// cloneInstruments copies the slice and the price fields it points to, so
// callers cannot mutate cached results.
func cloneInstruments(in []Instrument) []Instrument {
	out := make([]Instrument, len(in))
	for i, inst := range in {
		inst.Price = cloneFloat(inst.Price)
		inst.ChangePercent = cloneFloat(inst.ChangePercent)
		inst.MarketCap = cloneFloat(inst.MarketCap)
		out[i] = inst
	}
	return out
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (r *Registry) Quotes(ctx context.Context, t watchlist.InstrumentType, symbols []string) (map[string]Quote, error) {
	p, err := r.Provider(t)
	if err != nil {
		return nil, err
	}
	return p.Quotes(ctx, symbols)
}

// Quote fetches a single symbol.
func (r *Registry) Quote(ctx context.Context, t watchlist.InstrumentType, symbol string) (Quote, error) {
	sym := watchlist.NormalizeSymbol(symbol)
	quotes, err := r.Quotes(ctx, t, []string{sym})
	if err != nil {
		return Quote{}, err
	}
	q, ok := quotes[sym]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoQuote, watchlist.Key(t, sym))
	}
	return q, nil
}

// QuoteSource adapts the provider of t for a price refresher.
func (r *Registry) QuoteSource(t watchlist.InstrumentType) watchlist.QuoteSource {
	return watchlist.QuoteSourceFunc(func(ctx context.Context, symbols []string) (map[string]watchlist.PriceUpdate, error) {
		quotes, err := r.Quotes(ctx, t, symbols)
		if err != nil {
			return nil, err
		}
		out := make(map[string]watchlist.PriceUpdate, len(quotes))
		for sym, q := range quotes {
			out[sym] = q.PriceUpdate()
		}
		return out, nil
	})
}

// Popular returns a copy of the curated list for t.
func (r *Registry) Popular(t watchlist.InstrumentType) []Instrument {
	return append([]Instrument(nil), r.popular[t]...)
}
