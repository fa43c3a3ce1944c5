// Package watchlist keeps a user's list of tracked instruments consistent
// across the in-memory store, a local snapshot and the remote table.
package watchlist

import (
	"fmt"
	"strings"
)

// InstrumentType is the market an instrument trades in.
type InstrumentType string

const (
	US     InstrumentType = "us"
	Indian InstrumentType = "indian"
	Crypto InstrumentType = "crypto"
)

// Types lists every instrument type in display order.
var Types = []InstrumentType{US, Indian, Crypto}

func (t InstrumentType) Valid() bool {
	switch t {
	case US, Indian, Crypto:
		return true
	}
	return false
}

func (t InstrumentType) String() string { return string(t) }

// ParseInstrumentType accepts the wire names and the long equity aliases.
func ParseInstrumentType(s string) (InstrumentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "us", "us_equity":
		return US, nil
	case "indian", "indian_equity":
		return Indian, nil
	case "crypto":
		return Crypto, nil
	}
	return "", fmt.Errorf("%w: unknown instrument type %q", ErrValidation, s)
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Key is the identity of an instrument in a watchlist: "{type}-{SYMBOL}".
// Type names never contain '-', so the first '-' always separates the parts.
func Key(t InstrumentType, rawSymbol string) string {
	return string(t) + "-" + NormalizeSymbol(rawSymbol)
}

// ParseKey splits a key produced by Key.
func ParseKey(key string) (InstrumentType, string, error) {
	typ, sym, ok := strings.Cut(key, "-")
	if !ok || sym == "" {
		return "", "", fmt.Errorf("%w: malformed key %q", ErrValidation, key)
	}
	t := InstrumentType(typ)
	if !t.Valid() {
		return "", "", fmt.Errorf("%w: malformed key %q", ErrValidation, key)
	}
	return t, sym, nil
}
