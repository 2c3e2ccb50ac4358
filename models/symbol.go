package models

import (
	"strings"

	"github.com/quantfetch/perpdata/errors"
)

// ContractType distinguishes derivative kinds. Only perpetual swaps are
// supported.
type ContractType string

const ContractTypePerpetual ContractType = "perpetual"

// Symbol names a traded contract by its base and quote assets. Asset casing
// is preserved as given; adapters apply their own casing rules where the
// vendor wire format demands one.
type Symbol struct {
	Base         string       `json:"base"`
	Quote        string       `json:"quote"`
	ContractType ContractType `json:"contract_type"`
}

// NewSymbol builds a perpetual contract symbol from its base and quote
// assets.
func NewSymbol(base, quote string) (Symbol, error) {
	s := Symbol{Base: base, Quote: quote, ContractType: ContractTypePerpetual}
	if err := s.Validate(); err != nil {
		return Symbol{}, err
	}
	return s, nil
}

// MustSymbol is NewSymbol that panics on invalid input. Intended for
// package-level declarations and tests.
func MustSymbol(base, quote string) Symbol {
	s, err := NewSymbol(base, quote)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks that both assets are set.
func (s Symbol) Validate() error {
	if strings.TrimSpace(s.Base) == "" {
		return errors.NewInvalidArgument("symbol base asset must not be empty")
	}
	if strings.TrimSpace(s.Quote) == "" {
		return errors.NewInvalidArgument("symbol quote asset must not be empty")
	}
	return nil
}

// Pair returns the concatenated pair name, e.g. BTCUSDT.
func (s Symbol) Pair() string { return s.Base + s.Quote }

func (s Symbol) String() string { return s.Pair() }
