package market

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/finwatch/src/watchlist"
)

type stubProvider struct {
	searches atomic.Int32
	learned  map[string]string
	quotes   map[string]Quote
	err      error
}

func (s *stubProvider) Search(ctx context.Context, q string) ([]Instrument, error) {
	s.searches.Add(1)
	inst := newInstrument(watchlist.US, "AAPL", "Apple")
	inst.Price = watchlist.Float(190)
	return []Instrument{inst}, nil
}

func (s *stubProvider) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.quotes, nil
}

func (s *stubProvider) Learn(symbol, id string) {
	if s.learned == nil {
		s.learned = map[string]string{}
	}
	s.learned[symbol] = id
}

func TestRegistrySearchIsCached(t *testing.T) {
	stub := &stubProvider{}
	r := NewRegistry(map[watchlist.InstrumentType]Provider{watchlist.US: stub}, 0)
	ctx := context.Background()

	_, err := r.Search(ctx, watchlist.US, "Apple")
	require.NoError(t, err)
	got, err := r.Search(ctx, watchlist.US, "apple ")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), stub.searches.Load())

	got, err = r.Search(ctx, watchlist.US, "a")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(1), stub.searches.Load())
}

func TestRegistrySearchResultsDoNotAliasCache(t *testing.T) {
	stub := &stubProvider{}
	r := NewRegistry(map[watchlist.InstrumentType]Provider{watchlist.US: stub}, 0)
	ctx := context.Background()

	first, err := r.Search(ctx, watchlist.US, "apple")
	require.NoError(t, err)
	require.Len(t, first, 1)
	first[0].Name = "Mutated"
	*first[0].Price = 1

	second, err := r.Search(ctx, watchlist.US, "apple")
	require.NoError(t, err)
	assert.Equal(t, "Apple", second[0].Name)
	require.NotNil(t, second[0].Price)
	assert.Equal(t, 190.0, *second[0].Price)

	*second[0].Price = 2
	third, err := r.Search(ctx, watchlist.US, "apple")
	require.NoError(t, err)
	assert.Equal(t, 190.0, *third[0].Price)
	assert.Equal(t, int32(1), stub.searches.Load())
}

func TestRegistryUnknownType(t *testing.T) {
	r := NewRegistry(map[watchlist.InstrumentType]Provider{}, 0)
	_, err := r.Search(context.Background(), watchlist.Indian, "tcs")
	assert.ErrorIs(t, err, watchlist.ErrValidation)
}

func TestRegistrySeedsCryptoIDs(t *testing.T) {
	stub := &stubProvider{}
	NewRegistry(map[watchlist.InstrumentType]Provider{watchlist.Crypto: stub}, 0)
	assert.Equal(t, "bitcoin", stub.learned["BTC"])
	assert.Equal(t, "binancecoin", stub.learned["BNB"])
}

func TestRegistryQuoteSource(t *testing.T) {
	stub := &stubProvider{quotes: map[string]Quote{"AAPL": {Symbol: "AAPL", Price: 100, ChangePercent: watchlist.Float(1)}}}
	r := NewRegistry(map[watchlist.InstrumentType]Provider{watchlist.US: stub}, 0)

	updates, err := r.QuoteSource(watchlist.US).Quotes(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, *updates["AAPL"].Price)

	_, err = r.Quote(context.Background(), watchlist.US, "msft")
	assert.ErrorIs(t, err, ErrNoQuote)

	stub.err = errors.New("down")
	_, err = r.QuoteSource(watchlist.US).Quotes(context.Background(), []string{"AAPL"})
	assert.Error(t, err)
}

func TestPopularLists(t *testing.T) {
	r := NewRegistry(map[watchlist.InstrumentType]Provider{}, 0)
	us := r.Popular(watchlist.US)
	require.Len(t, us, 5)
	assert.Equal(t, "us-AAPL", us[0].Key)
	assert.Equal(t, "crypto-SOL", r.Popular(watchlist.Crypto)[4].Key)

	us[0].Name = "changed"
	assert.Equal(t, "Apple Inc.", r.Popular(watchlist.US)[0].Name)
}
