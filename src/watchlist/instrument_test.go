package watchlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "crypto-BTC", Key(Crypto, "btc"))
	assert.Equal(t, "us-AAPL", Key(US, " aapl "))
	assert.Equal(t, "indian-RELIANCE", Key(Indian, "Reliance"))
	assert.NotEqual(t, Key(US, "BTC"), Key(Crypto, "BTC"))
}

func TestParseKeyRoundTrip(t *testing.T) {
	typ, sym, err := ParseKey(Key(US, "brk-b"))
	require.NoError(t, err)
	assert.Equal(t, US, typ)
	assert.Equal(t, "BRK-B", sym)

	_, _, err = ParseKey("forex-EURUSD")
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = ParseKey("us-")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseInstrumentType(t *testing.T) {
	for in, want := range map[string]InstrumentType{
		"us": US, "US_EQUITY": US, "indian": Indian, "indian_equity": Indian, "Crypto": Crypto,
	} {
		got, err := ParseInstrumentType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseInstrumentType("bonds")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEntryValidate(t *testing.T) {
	assert.NoError(t, NewEntry(Crypto, "btc", "Bitcoin").Validate())
	assert.ErrorIs(t, NewEntry(Crypto, "  ", "x").Validate(), ErrValidation)
	assert.ErrorIs(t, NewEntry("forex", "EUR", "x").Validate(), ErrValidation)

	e := NewEntry(US, "AAPL", "Apple")
	e.Key = "us-MSFT"
	assert.ErrorIs(t, e.Validate(), ErrValidation)
}
