// Package domain defines the core data structures of the position engine.
package domain

import (
	"fmt"
	"strings"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// Base base currency symbol.
	Base string
	// Quote quote currency symbol.
	Quote string
}

// String returns the canonical representation used to key persisted state,
// e.g. "BTC/USDT".
func (p *Pair) String() string {
	return fmt.Sprintf("%s/%s", p.Base, p.Quote)
}

// Symbol returns the concatenated exchange symbol, e.g. "BTCUSDT".
func (p *Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}

// PairFromString parses "BTC/USDT" or "BTC_USDT" into a Pair.
func PairFromString(s string) (Pair, error) {
	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "_"
	}

	parts := strings.Split(s, sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid pair %q, expected BASE/QUOTE or BASE_QUOTE", s)
	}

	return Pair{Base: parts[0], Quote: parts[1]}, nil
}
