package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/watchlist"
	"golang.org/x/net/publicsuffix"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

type yahooSearchResponse struct {
	Quotes []struct {
		Symbol                     string  `json:"symbol"`
		Exchange                   string  `json:"exchange"`
		ExchDisp                   string  `json:"exchDisp"`
		Shortname                  string  `json:"shortname"`
		Longname                   string  `json:"longname"`
		QuoteType                  string  `json:"quoteType"`
		RegularMarketPrice         float64 `json:"regularMarketPrice"`
		RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	} `json:"quotes"`
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				ExchangeName       string  `json:"exchangeName"`
				ShortName          string  `json:"shortName"`
				LongName           string  `json:"longName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// YahooProvider serves US equities from Yahoo Finance. It keeps a cookie
// session and crumb, refreshed after a 401.
type YahooProvider struct {
	http      httpGetter
	baseURL   string
	preflight []string

	mu            sync.Mutex
	isInitialized bool
	crumb         string
	log           *slog.Logger
}

func NewYahooProvider(o Options) *YahooProvider {
	o = o.withDefaults(yahooBaseURL, 4, 8)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	client := &http.Client{Jar: jar, Timeout: o.Timeout}

	p := &YahooProvider{
		http:    newHTTPGetter(client, o),
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		log:     logger.L.With("provider", "yahoo"),
	}
	if o.BaseURL == yahooBaseURL {
		p.preflight = []string{"https://fc.yahoo.com", "https://finance.yahoo.com"}
	}
	return p
}

func (p *YahooProvider) initializeSession(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isInitialized && p.crumb != "" {
		return
	}

	p.log.Info("Initializing Yahoo Finance session and fetching crumb...")
	for _, u := range p.preflight {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", userAgent)
		if resp, err := p.http.client.Do(req); err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	_, body, err := p.http.get(ctx, p.baseURL+"/v1/test/getcrumb", nil)
	if err != nil {
		p.log.Warn("Failed to fetch crumb", "error", err)
		return
	}
	p.crumb = strings.TrimSpace(string(body))
	p.isInitialized = true
	p.log.Info("Yahoo session initialized successfully")
}

func (p *YahooProvider) ensureSession(ctx context.Context) string {
	p.mu.Lock()
	needsInit := !p.isInitialized || p.crumb == ""
	p.mu.Unlock()

	if needsInit {
		p.initializeSession(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.crumb
}

func (p *YahooProvider) invalidateSession() {
	p.mu.Lock()
	p.isInitialized = false
	p.mu.Unlock()
}

func (p *YahooProvider) Search(ctx context.Context, query string) ([]Instrument, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return []Instrument{}, nil
	}
	u := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=10&newsCount=0", p.baseURL, url.QueryEscape(query))
	var data yahooSearchResponse
	if err := p.http.getJSON(ctx, u, &data); err != nil {
		return nil, fmt.Errorf("yahoo search %q: %w", query, err)
	}

	out := make([]Instrument, 0, len(data.Quotes))
	for _, q := range data.Quotes {
		// Non-US listings carry an exchange suffix such as ".L" or ".NS".
		if q.Symbol == "" || strings.Contains(q.Symbol, ".") {
			continue
		}
		if qt := strings.ToUpper(q.QuoteType); qt != "EQUITY" && qt != "ETF" {
			continue
		}
		name := q.Shortname
		if name == "" {
			name = q.Longname
		}
		in := newInstrument(watchlist.US, q.Symbol, name)
		in.Exchange = q.ExchDisp
		if in.Exchange == "" {
			in.Exchange = q.Exchange
		}
		in.Currency = "USD"
		if q.RegularMarketPrice > 0 {
			in.Price = watchlist.Float(q.RegularMarketPrice)
			in.ChangePercent = watchlist.Float(q.RegularMarketChangePercent)
		}
		out = append(out, in)
	}
	return out, nil
}

// Quotes fetches one chart per symbol. Individual failures are logged and
// the symbol is left out; the call fails only when nothing could be fetched.
func (p *YahooProvider) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	var lastErr error
	for _, sym := range symbols {
		q, err := p.quote(ctx, watchlist.NormalizeSymbol(sym))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.Warn("Could not get price for ticker", "ticker", sym, "error", err)
			lastErr = err
			continue
		}
		out[q.Symbol] = q
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (p *YahooProvider) quote(ctx context.Context, ticker string) (Quote, error) {
	crumb := p.ensureSession(ctx)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d&crumb=%s", p.baseURL, url.PathEscape(ticker), url.QueryEscape(crumb))
	resp, body, err := p.http.get(ctx, u, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			p.invalidateSession()
			return Quote{}, fmt.Errorf("status 401 (Unauthorized) - crumb invalid: %w", err)
		}
		return Quote{}, err
	}
	var chartData yahooChartResponse
	if err := json.Unmarshal(body, &chartData); err != nil {
		return Quote{}, fmt.Errorf("%w: decode chart: %w", ErrUpstream, err)
	}
	if chartData.Chart.Error != nil {
		return Quote{}, fmt.Errorf("%w: yahoo chart API returned an error: %v", ErrUpstream, chartData.Chart.Error)
	}
	if len(chartData.Chart.Result) == 0 || chartData.Chart.Result[0].Meta.RegularMarketPrice == 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoQuote, ticker)
	}

	meta := chartData.Chart.Result[0].Meta
	prev := meta.PreviousClose
	if prev == 0 {
		prev = meta.ChartPreviousClose
	}
	name := meta.ShortName
	if name == "" {
		name = meta.LongName
	}
	q := Quote{
		Symbol:        ticker,
		Name:          name,
		Price:         meta.RegularMarketPrice,
		ChangePercent: changePercent(meta.RegularMarketPrice, prev),
		Currency:      meta.Currency,
		At:            time.Now().UTC(),
	}
	if prev != 0 {
		q.Change = watchlist.Float(meta.RegularMarketPrice - prev)
	}
	if meta.RegularMarketTime > 0 {
		q.At = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	return q, nil
}

var _ Provider = (*YahooProvider)(nil)

// isRateLimited reports whether err came from an upstream throttle.
func isRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
