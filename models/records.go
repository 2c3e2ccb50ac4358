package models

import (
	"github.com/shopspring/decimal"

	"github.com/quantfetch/perpdata/errors"
)

// Kline is one candle of any feed (traded price, index, mark or premium).
// Prices and volume preserve the vendor's exact decimal representation.
// Index and mark candles carry zero volume on venues that do not publish one.
type Kline struct {
	OpenTime int64           `json:"open_time"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// Validate performs a sanity check on the candle. Adapters return vendor
// data as-is; this is for callers that want to assert consistency.
func (k Kline) Validate() error {
	if k.OpenTime <= 0 {
		return errors.NewInvalidArgumentf("kline open time must be positive, got %d", k.OpenTime)
	}
	if k.High.LessThan(k.Low) {
		return errors.NewInvalidArgumentf("kline high %s is below low %s", k.High, k.Low)
	}
	if k.Open.GreaterThan(k.High) || k.Open.LessThan(k.Low) {
		return errors.NewInvalidArgumentf("kline open %s is outside the high/low range", k.Open)
	}
	if k.Close.GreaterThan(k.High) || k.Close.LessThan(k.Low) {
		return errors.NewInvalidArgumentf("kline close %s is outside the high/low range", k.Close)
	}
	if k.Volume.IsNegative() {
		return errors.NewInvalidArgumentf("kline volume %s is negative", k.Volume)
	}
	return nil
}

// FundingRatePoint is one funding settlement, or the upcoming one when
// returned by a latest-rate query.
type FundingRatePoint struct {
	FundingTime int64           `json:"funding_time"`
	Rate        decimal.Decimal `json:"rate"`
}

// PriceTicker is the most recent traded price.
type PriceTicker struct {
	Timestamp int64           `json:"timestamp"`
	LastPrice decimal.Decimal `json:"last_price"`
}

// IndexPricePoint is the most recent index price.
type IndexPricePoint struct {
	Timestamp  int64           `json:"timestamp"`
	IndexPrice decimal.Decimal `json:"index_price"`
}

// PremiumIndexPoint is the most recent premium index value.
type PremiumIndexPoint struct {
	Timestamp int64           `json:"timestamp"`
	Premium   decimal.Decimal `json:"premium"`
}

// MarkPrice is the most recent mark price snapshot. Timestamp and Price are
// always populated; the remaining fields are zero on venues whose mark feed
// does not include them.
type MarkPrice struct {
	Timestamp       int64           `json:"timestamp"`
	Price           decimal.Decimal `json:"price"`
	IndexPrice      decimal.Decimal `json:"index_price"`
	LastFundingRate decimal.Decimal `json:"last_funding_rate"`
	NextFundingTime int64           `json:"next_funding_time"`
}

// OpenInterest is the current open interest of a contract. Whether Value is
// denominated in contracts, base currency or quote currency follows the
// vendor's convention and is documented per adapter.
type OpenInterest struct {
	Timestamp int64           `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}

// Instrument describes one listed USDT perpetual contract.
type Instrument struct {
	Symbol     string          `json:"symbol"`
	BaseAsset  string          `json:"base_asset"`
	QuoteAsset string          `json:"quote_asset"`
	TickSize   decimal.Decimal `json:"tick_size"`
	StepSize   decimal.Decimal `json:"step_size"`
	MinQty     decimal.Decimal `json:"min_qty"`
	MaxQty     decimal.Decimal `json:"max_qty"`
	Status     string          `json:"status"`
}
