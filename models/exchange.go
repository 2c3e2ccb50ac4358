// Package models defines the canonical vocabulary of the market data client:
// exchange identifiers, symbols, intervals, query windows and the normalized
// records every adapter returns.
package models

// Exchange identifies a supported derivatives venue.
type Exchange string

const (
	Binance Exchange = "binance"
	Bybit   Exchange = "bybit"
	Bitget  Exchange = "bitget"
	OKX     Exchange = "okx"
)

// Exchanges returns all supported exchange identifiers.
func Exchanges() []Exchange {
	return []Exchange{Binance, Bybit, Bitget, OKX}
}

// Valid reports whether e names a supported exchange.
func (e Exchange) Valid() bool {
	switch e {
	case Binance, Bybit, Bitget, OKX:
		return true
	}
	return false
}

func (e Exchange) String() string { return string(e) }
