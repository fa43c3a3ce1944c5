package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/watchlist"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// Alpha Vantage lists Bombay Stock Exchange tickers as "RELIANCE.BSE".
const bseSuffix = ".BSE"

// AlphaVantageProvider serves Indian equities from Alpha Vantage.
// Payload keys look like "05. price", so fields are read with JSONPath.
type AlphaVantageProvider struct {
	http    httpGetter
	baseURL string
	apiKey  string
	log     *slog.Logger
}

func NewAlphaVantageProvider(apiKey string, o Options) *AlphaVantageProvider {
	// The free tier allows 5 calls per minute.
	o = o.withDefaults(alphaVantageBaseURL, 5.0/60.0, 5)
	return &AlphaVantageProvider{
		http:    newHTTPGetter(nil, o),
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		apiKey:  apiKey,
		log:     logger.L.With("provider", "alphavantage"),
	}
}

func (p *AlphaVantageProvider) query(ctx context.Context, params url.Values) (any, error) {
	params.Set("apikey", p.apiKey)
	_, body, err := p.http.get(ctx, p.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var jobj any
	if err := json.Unmarshal(body, &jobj); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	if m, ok := jobj.(map[string]any); ok {
		if _, ok := m["Note"]; ok {
			return nil, ErrRateLimited
		}
		if _, ok := m["Information"]; ok {
			return nil, ErrRateLimited
		}
		if msg, ok := m["Error Message"]; ok {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, msg)
		}
	}
	return jobj, nil
}

// pathString reads a single string at path. jsonpath may answer with a
// one-element list or with the value itself; both are accepted.
func pathString(path string, jobj any) (string, bool) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return "", false
	}
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return "", false
		}
		jval = jlist[0]
	}
	s, ok := jval.(string)
	return s, ok
}

func pathFloat(path string, jobj any) (float64, bool) {
	s, ok := pathString(path, jobj)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (p *AlphaVantageProvider) Search(ctx context.Context, query string) ([]Instrument, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return []Instrument{}, nil
	}
	jobj, err := p.query(ctx, url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {query}})
	if err != nil {
		return nil, fmt.Errorf("alphavantage search %q: %w", query, err)
	}
	matches, err := jsonpath.Get("$.bestMatches[*]", jobj)
	if err != nil {
		return []Instrument{}, nil
	}
	list, _ := matches.([]any)

	out := make([]Instrument, 0, len(list))
	seen := make(map[string]bool)
	for _, m := range list {
		region, _ := pathString(`$["4. region"]`, m)
		if !strings.HasPrefix(region, "India") {
			continue
		}
		raw, _ := pathString(`$["1. symbol"]`, m)
		sym := stripIndianSuffix(raw)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		name, _ := pathString(`$["2. name"]`, m)
		in := newInstrument(watchlist.Indian, sym, name)
		in.Exchange = "BSE"
		in.Currency, _ = pathString(`$["8. currency"]`, m)
		out = append(out, in)
	}
	return out, nil
}

func (p *AlphaVantageProvider) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(symbols))
	var lastErr error
	for _, sym := range symbols {
		q, err := p.quote(ctx, watchlist.NormalizeSymbol(sym))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			p.log.Warn("Could not get quote", "symbol", sym, "error", err)
			// Later calls in this batch would be throttled as well.
			if isRateLimited(err) {
				break
			}
			continue
		}
		out[q.Symbol] = q
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (p *AlphaVantageProvider) quote(ctx context.Context, sym string) (Quote, error) {
	jobj, err := p.query(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {sym + bseSuffix}})
	if err != nil {
		return Quote{}, err
	}
	price, ok := pathFloat(`$["Global Quote"]["05. price"]`, jobj)
	if !ok || price == 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoQuote, sym)
	}
	q := Quote{Symbol: sym, Price: price, Currency: "INR", At: time.Now().UTC()}
	if v, ok := pathFloat(`$["Global Quote"]["09. change"]`, jobj); ok {
		q.Change = &v
	}
	if v, ok := pathFloat(`$["Global Quote"]["10. change percent"]`, jobj); ok {
		q.ChangePercent = &v
	}
	if day, ok := pathString(`$["Global Quote"]["07. latest trading day"]`, jobj); ok {
		if t, err := time.Parse("2006-01-02", day); err == nil {
			q.At = t
		}
	}
	return q, nil
}

func stripIndianSuffix(raw string) string {
	sym := watchlist.NormalizeSymbol(raw)
	for _, suffix := range []string{bseSuffix, ".BO", ".NS", ".NSE"} {
		sym = strings.TrimSuffix(sym, suffix)
	}
	return sym
}

var _ Provider = (*AlphaVantageProvider)(nil)
