package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/finwatch/src/watchlist"
	"golang.org/x/time/rate"
)

func testOptions(url string) Options {
	return Options{BaseURL: url, Rate: rate.Inf, Burst: 1}
}

func TestYahooSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/finance/search", r.URL.Path)
		assert.Equal(t, "apple", r.URL.Query().Get("q"))
		w.Write([]byte(`{"quotes":[
			{"symbol":"AAPL","shortname":"Apple Inc.","exchDisp":"NASDAQ","quoteType":"EQUITY","regularMarketPrice":190.1,"regularMarketChangePercent":1.5},
			{"symbol":"APC.F","shortname":"Apple Frankfurt","quoteType":"EQUITY"},
			{"symbol":"AAPL240621C00100000","quoteType":"OPTION"}]}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(testOptions(srv.URL))
	got, err := p.Search(context.Background(), "apple")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "us-AAPL", got[0].Key)
	assert.Equal(t, "NASDAQ", got[0].Exchange)
	assert.Equal(t, 190.1, *got[0].Price)
}

func TestYahooShortQueryMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	defer srv.Close()

	got, err := NewYahooProvider(testOptions(srv.URL)).Search(context.Background(), " a ")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, calls.Load())
}

func TestYahooQuotesDerivesChangeFromPreviousClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/test/getcrumb":
			w.Write([]byte("crumb123"))
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/AAPL"):
			assert.Equal(t, "crumb123", r.URL.Query().Get("crumb"))
			w.Write([]byte(`{"chart":{"result":[{"meta":{"currency":"USD","symbol":"AAPL","regularMarketPrice":110,"previousClose":100}}],"error":null}}`))
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewYahooProvider(testOptions(srv.URL))
	quotes, err := p.Quotes(context.Background(), []string{"aapl", "ZZZZ"})
	require.NoError(t, err)
	require.Contains(t, quotes, "AAPL")
	assert.NotContains(t, quotes, "ZZZZ")
	q := quotes["AAPL"]
	assert.Equal(t, 110.0, q.Price)
	assert.InDelta(t, 10.0, *q.ChangePercent, 1e-9)
	assert.InDelta(t, 10.0, *q.Change, 1e-9)

	u := q.PriceUpdate()
	assert.Equal(t, 110.0, *u.Price)
}

func TestYahooQuotesAllFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/test/getcrumb" {
			w.Write([]byte("c"))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewYahooProvider(testOptions(srv.URL))
	_, err := p.Quotes(context.Background(), []string{"AAPL"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.False(t, p.isInitialized)
}

func TestInstrumentEntry(t *testing.T) {
	in := newInstrument(watchlist.Crypto, "btc", "Bitcoin")
	in.Price = watchlist.Float(60000)
	e := in.Entry()
	assert.Equal(t, "crypto-BTC", e.Key)
	assert.Equal(t, 60000.0, *e.LastPrice)
	assert.NoError(t, e.Validate())
}
