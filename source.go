package perpdata

import (
	"context"

	"github.com/quantfetch/perpdata/models"
)

// KlineFetcher retrieves historical candle series. Implementations return
// candles ordered oldest first and never return an empty slice without an
// error.
type KlineFetcher interface {
	GetPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error)
	GetIndexPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error)
	GetMarkPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error)
	GetPremiumIndexKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error)
}

// FundingRateProvider retrieves funding rate settlements, historical and
// current. History is ordered oldest first.
type FundingRateProvider interface {
	GetFundingRateHistory(ctx context.Context, win models.FundingRateWindow) ([]models.FundingRatePoint, error)
	GetLatestFundingRate(ctx context.Context, symbol models.Symbol) (models.FundingRatePoint, error)
}

// SnapshotProvider retrieves point-in-time market state for one contract.
type SnapshotProvider interface {
	GetLatestPrice(ctx context.Context, symbol models.Symbol) (models.PriceTicker, error)
	GetLatestMarkPrice(ctx context.Context, symbol models.Symbol) (models.MarkPrice, error)
	GetLatestIndexPrice(ctx context.Context, symbol models.Symbol) (models.IndexPricePoint, error)
	GetLatestPremiumIndex(ctx context.Context, symbol models.Symbol) (models.PremiumIndexPoint, error)
	GetOpenInterest(ctx context.Context, symbol models.Symbol) (models.OpenInterest, error)
}

// InstrumentProvider lists the tradable USDT perpetual contracts.
type InstrumentProvider interface {
	GetInstruments(ctx context.Context) ([]models.Instrument, error)
}

// HealthChecker reports whether the exchange API currently answers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MarketDataSource is the complete per-exchange contract. Every adapter in
// the exchange subpackages implements it.
type MarketDataSource interface {
	KlineFetcher
	FundingRateProvider
	SnapshotProvider
	InstrumentProvider
	HealthChecker

	// Exchange reports which exchange this source talks to.
	Exchange() models.Exchange
	// Close releases resources owned by the source, such as idle HTTP
	// connections. Injected transports are left alone.
	Close() error
}
