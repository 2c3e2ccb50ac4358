package perpdata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfetch/perpdata/errors"
	"github.com/quantfetch/perpdata/models"
)

var btcusdt = models.MustSymbol("BTC", "USDT")

// stubSource satisfies the full source contract with canned values.
type stubSource struct {
	exchange models.Exchange
	closed   int
	closeErr error
}

var _ MarketDataSource = (*stubSource)(nil)

func (s *stubSource) GetPriceKlines(context.Context, models.HistoricalWindow) ([]models.Kline, error) {
	return []models.Kline{{OpenTime: 1700000000000, Close: decimal.RequireFromString("10.5")}}, nil
}

func (s *stubSource) GetIndexPriceKlines(context.Context, models.HistoricalWindow) ([]models.Kline, error) {
	return []models.Kline{{OpenTime: 1700000000000}}, nil
}

func (s *stubSource) GetMarkPriceKlines(context.Context, models.HistoricalWindow) ([]models.Kline, error) {
	return []models.Kline{{OpenTime: 1700000000000}}, nil
}

func (s *stubSource) GetPremiumIndexKlines(context.Context, models.HistoricalWindow) ([]models.Kline, error) {
	return []models.Kline{{OpenTime: 1700000000000}}, nil
}

func (s *stubSource) GetFundingRateHistory(context.Context, models.FundingRateWindow) ([]models.FundingRatePoint, error) {
	return []models.FundingRatePoint{{FundingTime: 1700000000000, Rate: decimal.RequireFromString("0.0001")}}, nil
}

func (s *stubSource) GetLatestFundingRate(context.Context, models.Symbol) (models.FundingRatePoint, error) {
	return models.FundingRatePoint{FundingTime: 1700028800000, Rate: decimal.RequireFromString("0.0001")}, nil
}

func (s *stubSource) GetLatestPrice(context.Context, models.Symbol) (models.PriceTicker, error) {
	return models.PriceTicker{Timestamp: 1700000050000, LastPrice: decimal.RequireFromString("42000.5")}, nil
}

func (s *stubSource) GetLatestMarkPrice(context.Context, models.Symbol) (models.MarkPrice, error) {
	return models.MarkPrice{Timestamp: 1700000050000, Price: decimal.RequireFromString("42001.2")}, nil
}

func (s *stubSource) GetLatestIndexPrice(context.Context, models.Symbol) (models.IndexPricePoint, error) {
	return models.IndexPricePoint{Timestamp: 1700000050000, IndexPrice: decimal.RequireFromString("41990.1")}, nil
}

func (s *stubSource) GetLatestPremiumIndex(context.Context, models.Symbol) (models.PremiumIndexPoint, error) {
	return models.PremiumIndexPoint{Timestamp: 1700000050000, Premium: decimal.RequireFromString("0.00025")}, nil
}

func (s *stubSource) GetOpenInterest(context.Context, models.Symbol) (models.OpenInterest, error) {
	return models.OpenInterest{Timestamp: 1700000050000, Value: decimal.RequireFromString("50000")}, nil
}

func (s *stubSource) GetInstruments(context.Context) ([]models.Instrument, error) {
	return []models.Instrument{{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"}}, nil
}

func (s *stubSource) HealthCheck(context.Context) error { return nil }

func (s *stubSource) Exchange() models.Exchange { return s.exchange }

func (s *stubSource) Close() error {
	s.closed++
	return s.closeErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientMemoizesSources(t *testing.T) {
	created := 0
	r := NewRegistry()
	require.NoError(t, r.Register(models.Binance, func() MarketDataSource {
		created++
		return &stubSource{exchange: models.Binance}
	}))
	c := NewClient(WithRegistry(r), WithLogger(discardLogger()))

	ctx := context.Background()
	_, err := c.GetLatestPrice(ctx, models.Binance, btcusdt)
	require.NoError(t, err)
	_, err = c.GetOpenInterest(ctx, models.Binance, btcusdt)
	require.NoError(t, err)
	require.NoError(t, c.HealthCheck(ctx, models.Binance))

	assert.Equal(t, 1, created, "one source instance serves all calls")
}

func TestClientDelegates(t *testing.T) {
	c := NewClient(
		WithRegistry(NewRegistry()),
		WithSource(models.Bybit, &stubSource{exchange: models.Bybit}),
		WithLogger(discardLogger()),
	)
	ctx := context.Background()
	win, err := models.NewHistoricalWindow(btcusdt, models.Interval1h, 0, 0, 10)
	require.NoError(t, err)
	fundingWin, err := models.NewFundingRateWindow(btcusdt, 0, 0, 10)
	require.NoError(t, err)

	klines, err := c.GetPriceKlines(ctx, models.Bybit, win)
	require.NoError(t, err)
	assert.Equal(t, "10.5", klines[0].Close.String())

	for name, fetch := range map[string]func() ([]models.Kline, error){
		"index":   func() ([]models.Kline, error) { return c.GetIndexPriceKlines(ctx, models.Bybit, win) },
		"mark":    func() ([]models.Kline, error) { return c.GetMarkPriceKlines(ctx, models.Bybit, win) },
		"premium": func() ([]models.Kline, error) { return c.GetPremiumIndexKlines(ctx, models.Bybit, win) },
	} {
		got, err := fetch()
		require.NoError(t, err, name)
		assert.NotEmpty(t, got, name)
	}

	points, err := c.GetFundingRateHistory(ctx, models.Bybit, fundingWin)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	latest, err := c.GetLatestFundingRate(ctx, models.Bybit, btcusdt)
	require.NoError(t, err)
	assert.Equal(t, "0.0001", latest.Rate.String())

	mark, err := c.GetLatestMarkPrice(ctx, models.Bybit, btcusdt)
	require.NoError(t, err)
	assert.Equal(t, "42001.2", mark.Price.String())

	index, err := c.GetLatestIndexPrice(ctx, models.Bybit, btcusdt)
	require.NoError(t, err)
	assert.Equal(t, "41990.1", index.IndexPrice.String())

	premium, err := c.GetLatestPremiumIndex(ctx, models.Bybit, btcusdt)
	require.NoError(t, err)
	assert.Equal(t, "0.00025", premium.Premium.String())

	oi, err := c.GetOpenInterest(ctx, models.Bybit, btcusdt)
	require.NoError(t, err)
	assert.Equal(t, "50000", oi.Value.String())

	instruments, err := c.GetInstruments(ctx, models.Bybit)
	require.NoError(t, err)
	assert.Len(t, instruments, 1)
}

func TestClientSeededSourceBypassesRegistry(t *testing.T) {
	seeded := &stubSource{exchange: models.OKX}
	c := NewClient(
		WithRegistry(NewRegistry()),
		WithSource(models.OKX, seeded),
		WithLogger(discardLogger()),
	)

	ticker, err := c.GetLatestPrice(context.Background(), models.OKX, btcusdt)
	require.NoError(t, err)
	assert.Equal(t, "42000.5", ticker.LastPrice.String())
}

func TestClientUnknownExchange(t *testing.T) {
	c := NewClient(WithRegistry(NewRegistry()), WithLogger(discardLogger()))

	_, err := c.GetLatestPrice(context.Background(), models.Bitget, btcusdt)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestClientExchanges(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(models.Binance, func() MarketDataSource {
		return &stubSource{exchange: models.Binance}
	}))
	c := NewClient(
		WithRegistry(r),
		WithSource(models.OKX, &stubSource{exchange: models.OKX}),
		WithLogger(discardLogger()),
	)

	assert.Equal(t, []models.Exchange{models.Binance, models.OKX}, c.Exchanges())
}

func TestClientClose(t *testing.T) {
	t.Run("closes every opened source once", func(t *testing.T) {
		seeded := &stubSource{exchange: models.Binance}
		c := NewClient(
			WithRegistry(NewRegistry()),
			WithSource(models.Binance, seeded),
			WithLogger(discardLogger()),
		)

		require.NoError(t, c.Close())
		assert.Equal(t, 1, seeded.closed)

		// Closed clients drop their sources.
		_, err := c.GetLatestPrice(context.Background(), models.Binance, btcusdt)
		assert.Error(t, err)
	})

	t.Run("reports which source failed to close", func(t *testing.T) {
		broken := &stubSource{exchange: models.Bybit, closeErr: fmt.Errorf("socket leak")}
		c := NewClient(
			WithRegistry(NewRegistry()),
			WithSource(models.Bybit, broken),
			WithLogger(discardLogger()),
		)

		err := c.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "close bybit")
		assert.Contains(t, err.Error(), "socket leak")
	})
}
