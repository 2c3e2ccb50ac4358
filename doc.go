// Package perpdata provides a unified client for USDT-margined perpetual
// futures market data across Binance, Bybit, Bitget and OKX.
//
// The Client normalizes each exchange's REST API behind one set of
// operations: price, index, mark and premium klines, funding rate history
// and the latest funding rate, latest price, mark price, index price and
// premium snapshots, open interest, and instrument listings. All prices
// and rates are decimal.Decimal values parsed from the exchange's exact
// text representation, and all timestamps are Unix milliseconds.
//
//	client := perpdata.NewClient()
//	defer client.Close()
//
//	symbol := models.MustSymbol("BTC", "USDT")
//	win, err := models.NewHistoricalWindow(symbol, models.Interval1h, 0, 0, 100)
//	if err != nil {
//		log.Fatal(err)
//	}
//	klines, err := client.GetPriceKlines(ctx, models.Binance, win)
//
// Custom adapters implement MarketDataSource and register through a
// Registry; per-exchange settings flow in through NewClientFromConfig or
// each adapter's options.
package perpdata
