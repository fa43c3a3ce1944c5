// Package market fetches instrument search results and quotes from the
// public market-data APIs, one provider per instrument type.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/username/finwatch/src/watchlist"
	"golang.org/x/time/rate"
)

// MinQueryLength is the shortest search query sent upstream.
const MinQueryLength = 2

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var (
	// ErrRateLimited is returned when an upstream API asks us to slow down.
	ErrRateLimited = errors.New("market: upstream rate limit reached")
	// ErrUpstream wraps any other upstream failure.
	ErrUpstream = errors.New("market: upstream request failed")
	// ErrNoQuote is returned when no quote could be produced for a symbol.
	ErrNoQuote = errors.New("market: no quote available")
)

// Instrument is a normalized search result.
type Instrument struct {
	Type          watchlist.InstrumentType `json:"type"`
	Key           string                   `json:"key"`
	Symbol        string                   `json:"symbol"`
	Name          string                   `json:"name"`
	Exchange      string                   `json:"exchange,omitempty"`
	Currency      string                   `json:"currency,omitempty"`
	Price         *float64                 `json:"price,omitempty"`
	ChangePercent *float64                 `json:"change_percent,omitempty"`
	MarketCap     *float64                 `json:"market_cap,omitempty"`
}

func newInstrument(t watchlist.InstrumentType, symbol, name string) Instrument {
	sym := watchlist.NormalizeSymbol(symbol)
	if name == "" {
		name = sym
	}
	return Instrument{Type: t, Key: watchlist.Key(t, sym), Symbol: sym, Name: name}
}

// Entry converts a search result into a watchlist entry carrying its prices.
func (i Instrument) Entry() watchlist.Entry {
	e := watchlist.NewEntry(i.Type, i.Symbol, i.Name)
	e.Exchange = i.Exchange
	e.LastPrice = i.Price
	e.ChangePercent = i.ChangePercent
	e.MarketCap = i.MarketCap
	return e
}

// Quote is a normalized price snapshot.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Change        *float64  `json:"change,omitempty"`
	ChangePercent *float64  `json:"change_percent,omitempty"`
	MarketCap     *float64  `json:"market_cap,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	At            time.Time `json:"at"`
}

// PriceUpdate converts the quote for Store.UpsertPrice.
func (q Quote) PriceUpdate() watchlist.PriceUpdate {
	return watchlist.PriceUpdate{
		Price:         watchlist.Float(q.Price),
		ChangePercent: q.ChangePercent,
		MarketCap:     q.MarketCap,
		Name:          q.Name,
	}
}

// Provider is the capability every market implements.
type Provider interface {
	Search(ctx context.Context, query string) ([]Instrument, error)
	Quotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// Options tunes the HTTP behaviour shared by the providers.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Requests per second and burst allowed upstream.
	Rate  rate.Limit
	Burst int
}

func (o Options) withDefaults(baseURL string, rps rate.Limit, burst int) Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.Rate <= 0 {
		o.Rate = rps
	}
	if o.Burst <= 0 {
		o.Burst = burst
	}
	return o
}

type httpGetter struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPGetter(client *http.Client, o Options) httpGetter {
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}
	return httpGetter{client: client, limiter: rate.NewLimiter(o.Rate, o.Burst)}
}

// get waits for the limiter and returns the body of a 200 response.
func (g httpGetter) get(ctx context.Context, url string, header http.Header) (*http.Response, []byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp, nil, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return resp, nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	return resp, body, nil
}

func (g httpGetter) getJSON(ctx context.Context, url string, out any) error {
	_, body, err := g.get(ctx, url, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	return nil
}

func changePercent(price, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	return watchlist.Float((price - previous) / previous * 100)
}
