package binance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfetch/perpdata/errors"
	"github.com/quantfetch/perpdata/models"
	"github.com/quantfetch/perpdata/transport/transporttest"
)

var btcusdt = models.MustSymbol("BTC", "USDT")

func newTestSource(handler transporttest.Handler) (*Source, *transporttest.Stub) {
	stub := transporttest.New(handler)
	src := New(
		WithTransport(stub),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return src, stub
}

func klineWindow(t *testing.T, limit int) models.HistoricalWindow {
	t.Helper()
	win, err := models.NewHistoricalWindow(btcusdt, models.Interval1m, 0, 0, limit)
	require.NoError(t, err)
	return win
}

func TestGetPriceKlines(t *testing.T) {
	t.Run("preserves vendor decimals exactly", func(t *testing.T) {
		body := `[[1700000000000,"10","11","9","10.5","100",1700000060000,"200"]]`
		src, _ := newTestSource(transporttest.RespondJSON(http.StatusOK, body))

		klines, err := src.GetPriceKlines(context.Background(), klineWindow(t, 10))
		require.NoError(t, err)
		require.Len(t, klines, 1)

		kline := klines[0]
		assert.Equal(t, int64(1700000000000), kline.OpenTime)
		assert.True(t, kline.Open.Equal(decimal.RequireFromString("10")))
		assert.True(t, kline.High.Equal(decimal.RequireFromString("11")))
		assert.True(t, kline.Low.Equal(decimal.RequireFromString("9")))
		assert.Equal(t, "10.5", kline.Close.String())
		assert.Equal(t, "100", kline.Volume.String())
	})

	t.Run("returns candles oldest first", func(t *testing.T) {
		body := `[
			[1700000000000,"10","11","9","10.5","100"],
			[1700000060000,"10.5","12","10","11.5","80"]
		]`
		src, _ := newTestSource(transporttest.RespondJSON(http.StatusOK, body))

		klines, err := src.GetPriceKlines(context.Background(), klineWindow(t, 10))
		require.NoError(t, err)
		require.Len(t, klines, 2)
		assert.Less(t, klines[0].OpenTime, klines[1].OpenTime)
	})

	t.Run("sends symbol interval limit and bounds", func(t *testing.T) {
		src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, `[[1,"1","1","1","1","1"]]`))
		win, err := models.NewHistoricalWindow(btcusdt, models.Interval4h, 1_700_000_000_000, 1_700_100_000_000, 25)
		require.NoError(t, err)

		_, err = src.GetPriceKlines(context.Background(), win)
		require.NoError(t, err)

		call, ok := stub.LastCall()
		require.True(t, ok)
		assert.Contains(t, call.URL, "/fapi/v1/klines")
		assert.Equal(t, "BTCUSDT", call.Params.Get("symbol"))
		assert.Equal(t, "4h", call.Params.Get("interval"))
		assert.Equal(t, "25", call.Params.Get("limit"))
		assert.Equal(t, "1700000000000", call.Params.Get("startTime"))
		assert.Equal(t, "1700100000000", call.Params.Get("endTime"))
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		src, _ := newTestSource(transporttest.RespondJSON(http.StatusOK, `[]`))

		_, err := src.GetPriceKlines(context.Background(), klineWindow(t, 10))
		require.Error(t, err)
		assert.True(t, errors.IsMarketData(err))
		assert.False(t, errors.IsTransient(err))
	})

	t.Run("rejects short rows", func(t *testing.T) {
		src, _ := newTestSource(transporttest.RespondJSON(http.StatusOK, `[[1700000000000,"10","11","9"]]`))

		_, err := src.GetPriceKlines(context.Background(), klineWindow(t, 10))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected kline payload structure")
	})
}

func TestGetIndexPriceKlinesUsesPairKey(t *testing.T) {
	src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, `[[1,"1","1","1","1","0"]]`))

	_, err := src.GetIndexPriceKlines(context.Background(), klineWindow(t, 5))
	require.NoError(t, err)

	call, ok := stub.LastCall()
	require.True(t, ok)
	assert.Contains(t, call.URL, "/fapi/v1/indexPriceKlines")
	assert.Equal(t, "BTCUSDT", call.Params.Get("pair"))
	assert.Empty(t, call.Params.Get("symbol"))
}

func TestMarkAndPremiumKlinePaths(t *testing.T) {
	src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, `[[1,"1","1","1","1","0"]]`))

	_, err := src.GetMarkPriceKlines(context.Background(), klineWindow(t, 5))
	require.NoError(t, err)
	_, err = src.GetPremiumIndexKlines(context.Background(), klineWindow(t, 5))
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].URL, "/fapi/v1/markPriceKlines")
	assert.Contains(t, calls[1].URL, "/fapi/v1/premiumIndexKlines")
}

func TestLimitHandling(t *testing.T) {
	t.Run("rejects explicit limit above cap before any request", func(t *testing.T) {
		src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, `[]`))

		_, err := src.GetPriceKlines(context.Background(), klineWindow(t, maxKlineLimit+1))
		require.Error(t, err)
		assert.True(t, errors.IsInvalidArgument(err))
		assert.Zero(t, stub.CallCount())
	})

	t.Run("passes default limit through unclamped", func(t *testing.T) {
		src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, `[[1,"1","1","1","1","1"]]`))

		_, err := src.GetPriceKlines(context.Background(), klineWindow(t, 0))
		require.NoError(t, err)

		call, ok := stub.LastCall()
		require.True(t, ok)
		assert.Equal(t, "500", call.Params.Get("limit"))
	})

	t.Run("rejects explicit funding limit above cap", func(t *testing.T) {
		src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, `[]`))
		win, err := models.NewFundingRateWindow(btcusdt, 0, 0, maxFundingLimit+1)
		require.NoError(t, err)

		_, err = src.GetFundingRateHistory(context.Background(), win)
		require.Error(t, err)
		assert.True(t, errors.IsInvalidArgument(err))
		assert.Zero(t, stub.CallCount())
	})
}

func TestWindowValidationPreemptsRequests(t *testing.T) {
	src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, `[]`))
	win := models.HistoricalWindow{
		Symbol:    btcusdt,
		Interval:  models.Interval1m,
		StartTime: 2_000,
		EndTime:   1_000,
		Limit:     10,
	}

	_, err := src.GetPriceKlines(context.Background(), win)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Zero(t, stub.CallCount())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler transporttest.Handler
		check   func(t *testing.T, err error)
	}{
		{
			"http 429 is transient even with an error body",
			transporttest.RespondJSON(http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests."}`),
			func(t *testing.T, err error) { assert.True(t, errors.IsTransient(err)) },
		},
		{
			"http 418 is transient",
			transporttest.RespondJSON(http.StatusTeapot, `{}`),
			func(t *testing.T, err error) { assert.True(t, errors.IsTransient(err)) },
		},
		{
			"http 403 is transient",
			transporttest.RespondJSON(http.StatusForbidden, ``),
			func(t *testing.T, err error) { assert.True(t, errors.IsTransient(err)) },
		},
		{
			"http 500 is transient",
			transporttest.RespondJSON(http.StatusInternalServerError, ``),
			func(t *testing.T, err error) { assert.True(t, errors.IsTransient(err)) },
		},
		{
			"network failure is transient",
			transporttest.RespondError(fmt.Errorf("dial tcp: connection refused")),
			func(t *testing.T, err error) {
				assert.True(t, errors.IsTransient(err))
				assert.Contains(t, err.Error(), "request failed")
			},
		},
		{
			"unknown symbol code maps to symbol not supported",
			transporttest.RespondJSON(http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`),
			func(t *testing.T, err error) {
				assert.True(t, errors.IsSymbolNotSupported(err))
				assert.Contains(t, err.Error(), "Invalid symbol.")
			},
		},
		{
			"invalid interval code maps to interval not supported",
			transporttest.RespondJSON(http.StatusBadRequest, `{"code":-1120,"msg":"Invalid interval."}`),
			func(t *testing.T, err error) { assert.True(t, errors.IsIntervalNotSupported(err)) },
		},
		{
			"other vendor codes stay generic",
			transporttest.RespondJSON(http.StatusOK, `{"code":-1000,"msg":"An unknown error occurred."}`),
			func(t *testing.T, err error) {
				assert.True(t, errors.IsMarketData(err))
				assert.False(t, errors.IsTransient(err))
				assert.False(t, errors.IsSymbolNotSupported(err))
				assert.Contains(t, err.Error(), "An unknown error occurred.")
			},
		},
		{
			"bodyless 4xx stays generic",
			transporttest.RespondJSON(http.StatusBadRequest, ``),
			func(t *testing.T, err error) {
				assert.True(t, errors.IsMarketData(err))
				assert.False(t, errors.IsTransient(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, _ := newTestSource(tt.handler)
			_, err := src.GetPriceKlines(context.Background(), klineWindow(t, 10))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGetFundingRateHistory(t *testing.T) {
	body := `[
		{"symbol":"BTCUSDT","fundingTime":1700000000000,"fundingRate":"0.0001"},
		{"symbol":"BTCUSDT","fundingTime":1700028800000,"fundingRate":"-0.00005"}
	]`
	src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, body))
	win, err := models.NewFundingRateWindow(btcusdt, 0, 0, 100)
	require.NoError(t, err)

	points, err := src.GetFundingRateHistory(context.Background(), win)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Less(t, points[0].FundingTime, points[1].FundingTime)
	assert.Equal(t, "0.0001", points[0].Rate.String())
	assert.True(t, points[1].Rate.Equal(decimal.RequireFromString("-0.00005")))

	call, ok := stub.LastCall()
	require.True(t, ok)
	assert.Contains(t, call.URL, "/fapi/v1/fundingRate")
	assert.Equal(t, "100", call.Params.Get("limit"))
}

func TestGetLatestFundingRate(t *testing.T) {
	t.Run("returns exact rate and settlement time", func(t *testing.T) {
		body := `[{"symbol":"BTCUSDT","fundingTime":1700000000000,"fundingRate":"0.0001"}]`
		src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, body))

		point, err := src.GetLatestFundingRate(context.Background(), btcusdt)
		require.NoError(t, err)

		assert.Equal(t, "0.0001", point.Rate.String())
		assert.Positive(t, point.FundingTime)

		call, ok := stub.LastCall()
		require.True(t, ok)
		assert.Equal(t, "1", call.Params.Get("limit"))
	})

	t.Run("errors on empty payload", func(t *testing.T) {
		src, _ := newTestSource(transporttest.RespondJSON(http.StatusOK, `[]`))

		_, err := src.GetLatestFundingRate(context.Background(), btcusdt)
		require.Error(t, err)
		assert.True(t, errors.IsMarketData(err))
	})
}

func TestGetLatestPrice(t *testing.T) {
	body := `{"symbol":"BTCUSDT","lastPrice":"43250.10","closeTime":1700000005000}`
	src, _ := newTestSource(transporttest.RespondJSON(http.StatusOK, body))

	ticker, err := src.GetLatestPrice(context.Background(), btcusdt)
	require.NoError(t, err)

	assert.Equal(t, int64(1700000005000), ticker.Timestamp)
	assert.True(t, ticker.LastPrice.Equal(decimal.RequireFromString("43250.10")))
}

func TestGetLatestMarkPrice(t *testing.T) {
	body := `{
		"symbol":"BTCUSDT",
		"markPrice":"43251.20",
		"indexPrice":"43250.80",
		"lastFundingRate":"0.0001",
		"nextFundingTime":1700028800000,
		"time":1700000003000
	}`
	src, _ := newTestSource(transporttest.RespondJSON(http.StatusOK, body))

	mark, err := src.GetLatestMarkPrice(context.Background(), btcusdt)
	require.NoError(t, err)

	assert.Equal(t, int64(1700000003000), mark.Timestamp)
	assert.True(t, mark.Price.Equal(decimal.RequireFromString("43251.20")))
	assert.True(t, mark.IndexPrice.Equal(decimal.RequireFromString("43250.80")))
	assert.Equal(t, "0.0001", mark.LastFundingRate.String())
	assert.Equal(t, int64(1700028800000), mark.NextFundingTime)
}

func TestGetLatestIndexPrice(t *testing.T) {
	now := time.Now().UnixMilli()
	closedOpen := now - 120_000
	formingOpen := now - 30_000
	body := fmt.Sprintf(`[
		[%d,"1.0011","1.0012","1.0010","1.00115","0"],
		[%d,"1.0012","1.0013","1.0011","1.00125","0"]
	]`, closedOpen, formingOpen)
	src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, body))

	point, err := src.GetLatestIndexPrice(context.Background(), btcusdt)
	require.NoError(t, err)

	assert.Equal(t, closedOpen, point.Timestamp, "must pick the closed candle, not the forming one")
	assert.Equal(t, "1.00115", point.IndexPrice.String())

	call, ok := stub.LastCall()
	require.True(t, ok)
	assert.Contains(t, call.URL, "/fapi/v1/indexPriceKlines")
	assert.Equal(t, "BTCUSDT", call.Params.Get("pair"))
	assert.Equal(t, "1m", call.Params.Get("interval"))
	assert.Equal(t, "2", call.Params.Get("limit"))
}

func TestGetLatestPremiumIndex(t *testing.T) {
	now := time.Now().UnixMilli()
	closedOpen := now - 120_000
	formingOpen := now - 30_000
	body := fmt.Sprintf(`[
		[%d,"0.0001","0.0002","0.0001","0.00015","0"],
		[%d,"0.00015","0.0002","0.0001","0.0002","0"]
	]`, closedOpen, formingOpen)
	src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, body))

	point, err := src.GetLatestPremiumIndex(context.Background(), btcusdt)
	require.NoError(t, err)

	assert.Equal(t, closedOpen, point.Timestamp)
	assert.Equal(t, "0.00015", point.Premium.String())

	call, ok := stub.LastCall()
	require.True(t, ok)
	assert.Contains(t, call.URL, "/fapi/v1/premiumIndexKlines")
	assert.Equal(t, "BTCUSDT", call.Params.Get("symbol"))
}

func TestGetOpenInterest(t *testing.T) {
	body := `{"symbol":"BTCUSDT","openInterest":"10095.235","time":1700000004000}`
	src, _ := newTestSource(transporttest.RespondJSON(http.StatusOK, body))

	oi, err := src.GetOpenInterest(context.Background(), btcusdt)
	require.NoError(t, err)

	assert.Equal(t, int64(1700000004000), oi.Timestamp)
	assert.Equal(t, "10095.235", oi.Value.String())
}

func TestGetInstruments(t *testing.T) {
	t.Run("keeps only USDT perpetuals", func(t *testing.T) {
		body := `{"symbols":[
			{"symbol":"BTCUSDT","contractType":"PERPETUAL","baseAsset":"BTC","quoteAsset":"USDT","status":"TRADING",
			 "filters":[
				{"filterType":"PRICE_FILTER","tickSize":"0.10"},
				{"filterType":"LOT_SIZE","stepSize":"0.001","minQty":"0.001","maxQty":"1000"}
			 ]},
			{"symbol":"BTCUSDT_240628","contractType":"CURRENT_QUARTER","baseAsset":"BTC","quoteAsset":"USDT","status":"TRADING","filters":[]},
			{"symbol":"ETHBTC","contractType":"PERPETUAL","baseAsset":"ETH","quoteAsset":"BTC","status":"TRADING","filters":[]}
		]}`
		src, _ := newTestSource(transporttest.RespondJSON(http.StatusOK, body))

		instruments, err := src.GetInstruments(context.Background())
		require.NoError(t, err)
		require.Len(t, instruments, 1)

		inst := instruments[0]
		assert.Equal(t, "BTCUSDT", inst.Symbol)
		assert.Equal(t, "BTC", inst.BaseAsset)
		assert.Equal(t, "USDT", inst.QuoteAsset)
		assert.Equal(t, "TRADING", inst.Status)
		assert.True(t, inst.TickSize.Equal(decimal.RequireFromString("0.1")))
		assert.True(t, inst.StepSize.Equal(decimal.RequireFromString("0.001")))
		assert.True(t, inst.MinQty.Equal(decimal.RequireFromString("0.001")))
		assert.True(t, inst.MaxQty.Equal(decimal.RequireFromString("1000")))
	})

	t.Run("errors when nothing matches", func(t *testing.T) {
		src, _ := newTestSource(transporttest.RespondJSON(http.StatusOK, `{"symbols":[]}`))

		_, err := src.GetInstruments(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsMarketData(err))
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("passes on 200", func(t *testing.T) {
		src, stub := newTestSource(transporttest.RespondJSON(http.StatusOK, `{}`))

		require.NoError(t, src.HealthCheck(context.Background()))

		call, ok := stub.LastCall()
		require.True(t, ok)
		assert.Contains(t, call.URL, "/fapi/v1/ping")
	})

	t.Run("reports transient on 503", func(t *testing.T) {
		src, _ := newTestSource(transporttest.RespondJSON(http.StatusServiceUnavailable, ``))

		err := src.HealthCheck(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsTransient(err))
	})
}

func TestSourceIdentity(t *testing.T) {
	src, _ := newTestSource(nil)

	assert.Equal(t, models.Binance, src.Exchange())
	assert.NoError(t, src.Close())
}
