// Package okx fetches USDT-margined perpetual futures market data from
// OKX's public V5 endpoints using the SWAP instrument type.
package okx

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfetch/perpdata/errors"
	"github.com/quantfetch/perpdata/models"
	"github.com/quantfetch/perpdata/transport"
)

// Name identifies this adapter in error messages.
const Name = string(models.OKX)

const (
	defaultBaseURL = "https://www.okx.com"
	defaultTimeout = 10 * time.Second

	instTypeSwap = "SWAP"

	candlesPath        = "/api/v5/market/candles"
	indexCandlesPath   = "/api/v5/market/index-candles"
	markCandlesPath    = "/api/v5/market/mark-price-candles"
	premiumHistoryPath = "/api/v5/public/premium-history"
	fundingHistoryPath = "/api/v5/public/funding-rate-history"
	fundingRatePath    = "/api/v5/public/funding-rate"
	tickersPath        = "/api/v5/market/tickers"
	indexTickersPath   = "/api/v5/market/index-tickers"
	markPricePath      = "/api/v5/public/mark-price"
	openInterestPath   = "/api/v5/public/open-interest"
	instrumentsPath    = "/api/v5/public/instruments"
	serverTimePath     = "/api/v5/public/time"

	maxPriceCandleLimit   = 300
	maxDerivedCandleLimit = 100
	maxFundingLimit       = 400

	codeSymbolNotFound = "51001"
)

var successCodes = map[string]bool{
	"0":     true,
	"00000": true,
}

// Codes OKX documents as retryable service hiccups.
var transientCodes = map[string]bool{
	"50011": true,
	"50012": true,
	"50013": true,
}

// OKX keeps minute bars lowercase and capitalizes everything from hours up.
var intervalParams = map[models.Interval]string{
	models.Interval1m:  "1m",
	models.Interval3m:  "3m",
	models.Interval5m:  "5m",
	models.Interval15m: "15m",
	models.Interval30m: "30m",
	models.Interval1h:  "1H",
	models.Interval2h:  "2H",
	models.Interval4h:  "4H",
	models.Interval6h:  "6H",
	models.Interval12h: "12H",
	models.Interval1d:  "1D",
	models.Interval3d:  "3D",
	models.Interval1w:  "1W",
	models.Interval1M:  "1M",
}

// Source fetches market data from OKX USDT-margined perpetual swaps. Every
// operation issues synchronous GET requests against the public API. A
// Source is safe for concurrent use.
type Source struct {
	transport transport.Getter
	baseURL   string
	timeout   time.Duration
	logger    *slog.Logger
	owned     *transport.HTTPTransport
}

type options struct {
	baseURL    string
	timeout    time.Duration
	logger     *slog.Logger
	getter     transport.Getter
	httpClient *http.Client
	rps        float64
	burst      int
	observer   transport.Observer
}

// Option configures a Source.
type Option func(*options)

// WithBaseURL points the adapter at a different host.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		if baseURL != "" {
			o.baseURL = baseURL
		}
	}
}

// WithTimeout overrides the per-request deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithLogger sets the logger for the adapter and its owned transport.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTransport injects the transport used for every request. The caller
// keeps ownership; Close will not touch it.
func WithTransport(getter transport.Getter) Option {
	return func(o *options) { o.getter = getter }
}

// WithHTTPClient uses the supplied HTTP client inside the owned transport.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithRateLimit throttles outgoing requests client-side.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.rps = rps
		o.burst = burst
	}
}

// WithObserver registers a request outcome observer on the owned transport.
func WithObserver(observer transport.Observer) Option {
	return func(o *options) { o.observer = observer }
}

// New builds an OKX source.
func New(opts ...Option) *Source {
	o := &options{
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Source{baseURL: o.baseURL, timeout: o.timeout, logger: o.logger}
	if o.getter != nil {
		s.transport = o.getter
		return s
	}

	topts := []transport.Option{transport.WithLogger(o.logger)}
	if o.httpClient != nil {
		topts = append(topts, transport.WithHTTPClient(o.httpClient))
	}
	if o.rps > 0 {
		topts = append(topts, transport.WithRateLimit(o.rps, o.burst))
	}
	if o.observer != nil {
		topts = append(topts, transport.WithObserver(o.observer))
	}
	owned := transport.New(topts...)
	s.transport = owned
	s.owned = owned
	return s
}

// Exchange reports the exchange identifier.
func (s *Source) Exchange() models.Exchange { return models.OKX }

// Close releases the owned transport. It is a no-op when a transport was
// injected.
func (s *Source) Close() error {
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}

// HealthCheck queries the public server time endpoint.
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := s.request(ctx, serverTimePath, nil)
	return err
}

// GetPriceKlines returns traded-price candles ordered oldest first.
func (s *Source) GetPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchCandles(ctx, candlesPath, win, maxPriceCandleLimit, instID(win.Symbol), false, "price candles")
}

// GetIndexPriceKlines returns index price candles ordered oldest first.
// OKX publishes no volume for this feed.
func (s *Source) GetIndexPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchCandles(ctx, indexCandlesPath, win, maxDerivedCandleLimit, indexID(win.Symbol), true, "index price candles")
}

// GetMarkPriceKlines returns mark price candles ordered oldest first. OKX
// publishes no volume for this feed.
func (s *Source) GetMarkPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchCandles(ctx, markCandlesPath, win, maxDerivedCandleLimit, instID(win.Symbol), true, "mark price candles")
}

// GetPremiumIndexKlines returns premium readings flattened into candles
// ordered oldest first. OKX publishes the premium as a tick series with no
// interval parameter, so the window's interval does not shape the result
// and every reading becomes a flat candle.
func (s *Source) GetPremiumIndexKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}
	limit, err := enforceLimit(win.Limit, maxDerivedCandleLimit)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("instId", instID(win.Symbol))
	params.Set("limit", strconv.Itoa(limit))
	applyTimeFilters(params, win.StartTime, win.EndTime)

	env, err := s.request(ctx, premiumHistoryPath, params)
	if err != nil {
		return nil, err
	}
	entries, err := extractSequence(env, "premium history")
	if err != nil {
		return nil, err
	}

	klines := make([]models.Kline, 0, len(entries))
	for _, raw := range entries {
		var entry premiumEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errors.Wrap(Name, "malformed premium history payload", err)
		}
		kline, err := entry.toKline()
		if err != nil {
			return nil, err
		}
		klines = append(klines, kline)
	}
	sortKlines(klines)
	return klines, nil
}

// GetFundingRateHistory returns funding settlements ordered oldest first.
func (s *Source) GetFundingRateHistory(ctx context.Context, win models.FundingRateWindow) ([]models.FundingRatePoint, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}
	limit, err := enforceLimit(win.Limit, maxFundingLimit)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("instId", instID(win.Symbol))
	params.Set("limit", strconv.Itoa(limit))
	applyTimeFilters(params, win.StartTime, win.EndTime)

	env, err := s.request(ctx, fundingHistoryPath, params)
	if err != nil {
		return nil, err
	}
	entries, err := extractSequence(env, "funding rate history")
	if err != nil {
		return nil, err
	}

	points := make([]models.FundingRatePoint, 0, len(entries))
	for _, raw := range entries {
		var entry fundingEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errors.Wrap(Name, "malformed funding rate payload", err)
		}
		point, err := entry.toPoint()
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	// OKX returns settlements newest first.
	slices.SortFunc(points, func(a, b models.FundingRatePoint) int {
		return cmp.Compare(a.FundingTime, b.FundingTime)
	})
	return points, nil
}

// GetLatestFundingRate returns the current funding snapshot, falling back
// to the predicted next rate when the current one is absent.
func (s *Source) GetLatestFundingRate(ctx context.Context, symbol models.Symbol) (models.FundingRatePoint, error) {
	if err := symbol.Validate(); err != nil {
		return models.FundingRatePoint{}, err
	}
	params := url.Values{}
	params.Set("instId", instID(symbol))

	env, err := s.request(ctx, fundingRatePath, params)
	if err != nil {
		return models.FundingRatePoint{}, err
	}
	entries, err := extractSequence(env, "funding rate")
	if err != nil {
		return models.FundingRatePoint{}, err
	}

	var entry currentFundingEntry
	if err := json.Unmarshal(entries[0], &entry); err != nil {
		return models.FundingRatePoint{}, errors.Wrap(Name, "malformed funding rate payload", err)
	}
	rateCell := entry.FundingRate
	if rateCell == "" {
		rateCell = entry.NextFundingRate
	}
	rate, err := toDecimal(rateCell)
	if err != nil {
		return models.FundingRatePoint{}, errors.Wrap(Name, "unexpected funding rate payload structure", err)
	}
	ts, ok := parseMillis(entry.FundingTime)
	if !ok {
		if ts, ok = parseMillis(entry.NextFundingTime); !ok {
			ts, _ = parseMillis(entry.Ts)
		}
	}
	return models.FundingRatePoint{FundingTime: ts, Rate: rate}, nil
}

// GetLatestPrice returns the last traded price from the swap ticker.
func (s *Source) GetLatestPrice(ctx context.Context, symbol models.Symbol) (models.PriceTicker, error) {
	if err := symbol.Validate(); err != nil {
		return models.PriceTicker{}, err
	}
	id := instID(symbol)
	params := url.Values{}
	params.Set("instType", instTypeSwap)
	params.Set("instId", id)

	env, err := s.request(ctx, tickersPath, params)
	if err != nil {
		return models.PriceTicker{}, err
	}
	entries, err := extractSequence(env, "ticker")
	if err != nil {
		return models.PriceTicker{}, err
	}

	for _, raw := range entries {
		var entry tickerEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return models.PriceTicker{}, errors.Wrap(Name, "malformed ticker payload", err)
		}
		if entry.InstID != id {
			continue
		}
		price, err := toDecimal(entry.Last)
		if err != nil {
			return models.PriceTicker{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
		}
		ts, _ := parseMillis(entry.Ts)
		return models.PriceTicker{Timestamp: ts, LastPrice: price}, nil
	}
	return models.PriceTicker{}, errors.Newf(Name, "ticker payload missing %s", id)
}

// GetLatestMarkPrice returns the current mark price. OKX's mark price feed
// carries only the mark itself; index price and funding fields stay zero.
func (s *Source) GetLatestMarkPrice(ctx context.Context, symbol models.Symbol) (models.MarkPrice, error) {
	if err := symbol.Validate(); err != nil {
		return models.MarkPrice{}, err
	}
	id := instID(symbol)
	params := url.Values{}
	params.Set("instType", instTypeSwap)
	params.Set("uly", indexID(symbol))

	env, err := s.request(ctx, markPricePath, params)
	if err != nil {
		return models.MarkPrice{}, err
	}
	entries, err := extractSequence(env, "mark price")
	if err != nil {
		return models.MarkPrice{}, err
	}

	chosen := entries[0]
	for _, raw := range entries {
		var probe markEntry
		if json.Unmarshal(raw, &probe) == nil && probe.InstID == id {
			chosen = raw
			break
		}
	}
	var entry markEntry
	if err := json.Unmarshal(chosen, &entry); err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "malformed mark price payload", err)
	}
	price, err := toDecimal(entry.MarkPx)
	if err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "unexpected mark price payload structure", err)
	}
	ts, _ := parseMillis(entry.Ts)
	return models.MarkPrice{Timestamp: ts, Price: price}, nil
}

// GetLatestIndexPrice returns the index price from the index ticker.
func (s *Source) GetLatestIndexPrice(ctx context.Context, symbol models.Symbol) (models.IndexPricePoint, error) {
	if err := symbol.Validate(); err != nil {
		return models.IndexPricePoint{}, err
	}
	params := url.Values{}
	params.Set("instId", indexID(symbol))

	env, err := s.request(ctx, indexTickersPath, params)
	if err != nil {
		return models.IndexPricePoint{}, err
	}
	entries, err := extractSequence(env, "index ticker")
	if err != nil {
		return models.IndexPricePoint{}, err
	}

	var entry indexTickerEntry
	if err := json.Unmarshal(entries[0], &entry); err != nil {
		return models.IndexPricePoint{}, errors.Wrap(Name, "malformed index ticker payload", err)
	}
	index, err := toDecimal(entry.IdxPx)
	if err != nil {
		return models.IndexPricePoint{}, errors.Wrap(Name, "unexpected index ticker payload structure", err)
	}
	ts, _ := parseMillis(entry.Ts)
	return models.IndexPricePoint{Timestamp: ts, IndexPrice: index}, nil
}

// GetLatestPremiumIndex returns the newest premium reading. OKX publishes
// the premium as a tick series, so the snapshot is simply its head.
func (s *Source) GetLatestPremiumIndex(ctx context.Context, symbol models.Symbol) (models.PremiumIndexPoint, error) {
	if err := symbol.Validate(); err != nil {
		return models.PremiumIndexPoint{}, err
	}
	params := url.Values{}
	params.Set("instId", instID(symbol))
	params.Set("limit", "1")

	env, err := s.request(ctx, premiumHistoryPath, params)
	if err != nil {
		return models.PremiumIndexPoint{}, err
	}
	entries, err := extractSequence(env, "premium history")
	if err != nil {
		return models.PremiumIndexPoint{}, err
	}

	var entry premiumEntry
	if err := json.Unmarshal(entries[0], &entry); err != nil {
		return models.PremiumIndexPoint{}, errors.Wrap(Name, "malformed premium history payload", err)
	}
	premium, err := toDecimal(entry.Premium)
	if err != nil {
		return models.PremiumIndexPoint{}, errors.Wrap(Name, "unexpected premium history payload structure", err)
	}
	ts, _ := parseMillis(entry.Ts)
	return models.PremiumIndexPoint{Timestamp: ts, Premium: premium}, nil
}

// GetOpenInterest returns open interest, preferring the USD-denominated
// figure over the contract count.
func (s *Source) GetOpenInterest(ctx context.Context, symbol models.Symbol) (models.OpenInterest, error) {
	if err := symbol.Validate(); err != nil {
		return models.OpenInterest{}, err
	}
	params := url.Values{}
	params.Set("instType", instTypeSwap)
	params.Set("instId", instID(symbol))

	env, err := s.request(ctx, openInterestPath, params)
	if err != nil {
		return models.OpenInterest{}, err
	}
	entries, err := extractSequence(env, "open interest")
	if err != nil {
		return models.OpenInterest{}, err
	}

	var entry openInterestEntry
	if err := json.Unmarshal(entries[0], &entry); err != nil {
		return models.OpenInterest{}, errors.Wrap(Name, "malformed open interest payload", err)
	}
	cell := entry.OiUsd
	if cell == "" {
		cell = entry.Oi
	}
	value, err := toDecimal(cell)
	if err != nil {
		return models.OpenInterest{}, errors.Wrap(Name, "unexpected open interest payload structure", err)
	}
	ts, _ := parseMillis(entry.Ts)
	return models.OpenInterest{Timestamp: ts, Value: value}, nil
}

// GetInstruments returns every listed USDT-settled perpetual swap.
func (s *Source) GetInstruments(ctx context.Context) ([]models.Instrument, error) {
	params := url.Values{}
	params.Set("instType", instTypeSwap)

	env, err := s.request(ctx, instrumentsPath, params)
	if err != nil {
		return nil, err
	}
	entries, err := extractSequence(env, "instruments")
	if err != nil {
		return nil, err
	}

	instruments := make([]models.Instrument, 0, len(entries))
	for _, raw := range entries {
		var entry instrumentEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errors.Wrap(Name, "malformed instruments payload", err)
		}
		if entry.SettleCcy != "USDT" {
			continue
		}
		inst, err := entry.toInstrument()
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}
	if len(instruments) == 0 {
		return nil, errors.New(Name, "no USDT perpetual instruments returned")
	}
	return instruments, nil
}

func (s *Source) fetchCandles(ctx context.Context, path string, win models.HistoricalWindow, maxLimit int, id string, zeroVolume bool, feed string) ([]models.Kline, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}
	bar, err := convertInterval(win.Interval)
	if err != nil {
		return nil, err
	}
	limit, err := enforceLimit(win.Limit, maxLimit)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("instId", id)
	params.Set("bar", bar)
	params.Set("limit", strconv.Itoa(limit))
	applyTimeFilters(params, win.StartTime, win.EndTime)

	env, err := s.request(ctx, path, params)
	if err != nil {
		return nil, err
	}
	entries, err := extractSequence(env, feed)
	if err != nil {
		return nil, err
	}

	klines := make([]models.Kline, 0, len(entries))
	for _, raw := range entries {
		kline, err := parseKline(raw, zeroVolume)
		if err != nil {
			return nil, err
		}
		klines = append(klines, kline)
	}
	sortKlines(klines)
	return klines, nil
}

func (s *Source) request(ctx context.Context, path string, params url.Values) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.transport.Get(ctx, s.baseURL+path, params)
	if err != nil {
		return nil, errors.WrapTransient(Name, "request failed", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusTeapot,
		resp.StatusCode == http.StatusUnavailableForLegalReasons,
		resp.StatusCode >= 500:
		return nil, errors.NewTransientf(Name, "transient HTTP status %d", resp.StatusCode)
	}

	// OKX wraps every outcome in the code/msg envelope, error statuses
	// included, so classification keys off the vendor code.
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, errors.Wrap(Name, "unreadable response", err)
	}
	if !successCodes[env.Code] {
		msg := env.Msg
		if msg == "" {
			msg = fmt.Sprintf("error code %s", env.Code)
		}
		switch {
		case transientCodes[env.Code]:
			return nil, errors.NewTransient(Name, msg)
		case env.Code == codeSymbolNotFound:
			return nil, errors.NewSymbolNotSupported(Name, msg)
		default:
			return nil, errors.Newf(Name, "error (%s): %s", env.Code, msg)
		}
	}
	return &env, nil
}

func extractSequence(env *envelope, name string) ([]json.RawMessage, error) {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errors.Newf(Name, "empty %s payload", name)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, errors.Wrap(Name, fmt.Sprintf("malformed %s payload", name), err)
	}
	if len(entries) == 0 {
		return nil, errors.Newf(Name, "empty %s payload", name)
	}
	return entries, nil
}

// instID renders the swap instrument identifier, e.g. BTC-USDT-SWAP.
func instID(symbol models.Symbol) string {
	return strings.ToUpper(symbol.Base) + "-" + strings.ToUpper(symbol.Quote) + "-SWAP"
}

// indexID renders the underlying index identifier, e.g. BTC-USDT.
func indexID(symbol models.Symbol) string {
	return strings.ToUpper(symbol.Base) + "-" + strings.ToUpper(symbol.Quote)
}

func convertInterval(interval models.Interval) (string, error) {
	vendor, ok := intervalParams[interval]
	if !ok {
		return "", errors.NewIntervalNotSupported(Name, fmt.Sprintf("interval %s has no OKX mapping", interval))
	}
	return vendor, nil
}

func enforceLimit(requested, maximum int) (int, error) {
	if requested > maximum {
		if requested == models.DefaultLimit {
			return maximum, nil
		}
		return 0, errors.NewInvalidArgumentf("limit %d exceeds maximum %d", requested, maximum)
	}
	return requested, nil
}

// applyTimeFilters maps window bounds onto OKX's backwards pagination
// cursors: "before" returns records newer than the cursor and "after"
// returns records older than it.
func applyTimeFilters(params url.Values, startTime, endTime int64) {
	if startTime > 0 {
		params.Set("before", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		params.Set("after", strconv.FormatInt(endTime, 10))
	}
}

func sortKlines(klines []models.Kline) {
	slices.SortFunc(klines, func(a, b models.Kline) int {
		return cmp.Compare(a.OpenTime, b.OpenTime)
	})
}

func parseKline(raw json.RawMessage, zeroVolume bool) (models.Kline, error) {
	var row []string
	if err := json.Unmarshal(raw, &row); err != nil {
		return models.Kline{}, errors.Wrap(Name, "unexpected candle payload structure", err)
	}
	if len(row) < 5 {
		return models.Kline{}, errors.New(Name, "unexpected candle payload structure")
	}
	openTime, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Kline{}, errors.Wrap(Name, "unexpected candle payload structure", err)
	}

	// Price candles carry the base-currency volume at index 6 and the
	// contract count at index 5; derived feeds carry neither.
	volumeCell := ""
	switch {
	case zeroVolume:
	case len(row) > 6 && row[6] != "":
		volumeCell = row[6]
	case len(row) > 5:
		volumeCell = row[5]
	}

	kline := models.Kline{OpenTime: openTime}
	cells := []struct {
		value string
		dst   *decimal.Decimal
	}{
		{row[1], &kline.Open},
		{row[2], &kline.High},
		{row[3], &kline.Low},
		{row[4], &kline.Close},
		{volumeCell, &kline.Volume},
	}
	for _, cell := range cells {
		value, err := toDecimal(cell.value)
		if err != nil {
			return models.Kline{}, errors.Wrap(Name, "unexpected candle payload structure", err)
		}
		*cell.dst = value
	}
	return kline, nil
}

// toDecimal preserves the vendor's exact decimal representation. Empty
// cells parse as zero.
func toDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseMillis(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type premiumEntry struct {
	Ts      string `json:"ts"`
	Premium string `json:"premium"`
}

func (e premiumEntry) toKline() (models.Kline, error) {
	ts, ok := parseMillis(e.Ts)
	if !ok {
		return models.Kline{}, errors.New(Name, "unexpected premium history payload structure")
	}
	premium, err := toDecimal(e.Premium)
	if err != nil {
		return models.Kline{}, errors.Wrap(Name, "unexpected premium history payload structure", err)
	}
	return models.Kline{
		OpenTime: ts,
		Open:     premium,
		High:     premium,
		Low:      premium,
		Close:    premium,
	}, nil
}

type fundingEntry struct {
	FundingRate string `json:"fundingRate"`
	FundingTime string `json:"fundingTime"`
}

func (e fundingEntry) toPoint() (models.FundingRatePoint, error) {
	rate, err := toDecimal(e.FundingRate)
	if err != nil {
		return models.FundingRatePoint{}, errors.Wrap(Name, "unexpected funding rate payload structure", err)
	}
	ts, _ := parseMillis(e.FundingTime)
	return models.FundingRatePoint{FundingTime: ts, Rate: rate}, nil
}

type currentFundingEntry struct {
	FundingRate     string `json:"fundingRate"`
	NextFundingRate string `json:"nextFundingRate"`
	FundingTime     string `json:"fundingTime"`
	NextFundingTime string `json:"nextFundingTime"`
	Ts              string `json:"ts"`
}

type tickerEntry struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	Ts     string `json:"ts"`
}

type markEntry struct {
	InstID string `json:"instId"`
	MarkPx string `json:"markPx"`
	Ts     string `json:"ts"`
}

type indexTickerEntry struct {
	InstID string `json:"instId"`
	IdxPx  string `json:"idxPx"`
	Ts     string `json:"ts"`
}

type openInterestEntry struct {
	InstID string `json:"instId"`
	Oi     string `json:"oi"`
	OiUsd  string `json:"oiUsd"`
	Ts     string `json:"ts"`
}

type instrumentEntry struct {
	InstID    string `json:"instId"`
	Uly       string `json:"uly"`
	SettleCcy string `json:"settleCcy"`
	TickSz    string `json:"tickSz"`
	LotSz     string `json:"lotSz"`
	MinSz     string `json:"minSz"`
	MaxLmtSz  string `json:"maxLmtSz"`
	MaxMktSz  string `json:"maxMktSz"`
	State     string `json:"state"`
}

func (e instrumentEntry) toInstrument() (models.Instrument, error) {
	wrap := func(err error) (models.Instrument, error) {
		return models.Instrument{}, errors.Wrap(Name, "unexpected instruments payload structure", err)
	}

	base := e.Uly
	quote := "USDT"
	if parts := strings.Split(e.Uly, "-"); len(parts) > 0 {
		base = parts[0]
		if len(parts) > 1 && parts[1] != "" {
			quote = parts[1]
		}
	}

	tickSize, err := toDecimal(e.TickSz)
	if err != nil {
		return wrap(err)
	}
	stepSize, err := toDecimal(e.LotSz)
	if err != nil {
		return wrap(err)
	}
	minQty, err := toDecimal(e.MinSz)
	if err != nil {
		return wrap(err)
	}
	maxCell := e.MaxLmtSz
	if maxCell == "" {
		maxCell = e.MaxMktSz
	}
	maxQty, err := toDecimal(maxCell)
	if err != nil {
		return wrap(err)
	}

	return models.Instrument{
		Symbol:     base + quote,
		BaseAsset:  base,
		QuoteAsset: quote,
		TickSize:   tickSize,
		StepSize:   stepSize,
		MinQty:     minQty,
		MaxQty:     maxQty,
		Status:     e.State,
	}, nil
}
