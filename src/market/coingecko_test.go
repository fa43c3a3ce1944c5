package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coinGeckoServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			w.Write([]byte(`{"coins":[
				{"id":"pepe-fake","name":"Fake Pepe","symbol":"PEPE","market_cap_rank":900},
				{"id":"pepe","name":"Pepe","symbol":"PEPE","market_cap_rank":30}]}`))
		case "/coins/markets":
			assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
			switch r.URL.Query().Get("ids") {
			case "bitcoin":
				w.Write([]byte(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":65000,"price_change_percentage_24h":2.5,"market_cap":1.2e12}]`))
			case "pepe":
				w.Write([]byte(`[{"id":"pepe","symbol":"pepe","name":"Pepe","current_price":0.00001,"price_change_percentage_24h":-4}]`))
			default:
				w.Write([]byte(`[{"id":"pepe-fake","symbol":"pepe","name":"Fake Pepe","current_price":1},{"id":"pepe","symbol":"pepe","name":"Pepe","current_price":0.00001}]`))
			}
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestCoinGeckoQuotesUsesKnownIDs(t *testing.T) {
	srv := coinGeckoServer(t)
	defer srv.Close()

	p := NewCoinGeckoProvider(testOptions(srv.URL))
	p.Learn("btc", "bitcoin")
	quotes, err := p.Quotes(context.Background(), []string{"BTC"})
	require.NoError(t, err)
	q := quotes["BTC"]
	assert.Equal(t, 65000.0, q.Price)
	assert.Equal(t, 2.5, *q.ChangePercent)
	assert.Equal(t, 1.2e12, *q.MarketCap)
}

func TestCoinGeckoResolvesUnknownSymbolByRank(t *testing.T) {
	srv := coinGeckoServer(t)
	defer srv.Close()

	p := NewCoinGeckoProvider(testOptions(srv.URL))
	quotes, err := p.Quotes(context.Background(), []string{"pepe"})
	require.NoError(t, err)
	assert.Equal(t, 0.00001, quotes["PEPE"].Price)
	id, ok := p.idFor("PEPE")
	assert.True(t, ok)
	assert.Equal(t, "pepe", id)
}

func TestCoinGeckoSearch(t *testing.T) {
	srv := coinGeckoServer(t)
	defer srv.Close()

	p := NewCoinGeckoProvider(testOptions(srv.URL))
	got, err := p.Search(context.Background(), "pepe")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "crypto-PEPE", got[0].Key)
	assert.Equal(t, "Crypto", got[0].Exchange)
}
