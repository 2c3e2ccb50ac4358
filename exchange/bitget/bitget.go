// Package bitget fetches USDT-margined perpetual futures market data from
// Bitget's public mix v1 endpoints.
package bitget

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
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfetch/perpdata/errors"
	"github.com/quantfetch/perpdata/models"
	"github.com/quantfetch/perpdata/transport"
)

// Name identifies this adapter in error messages.
const Name = string(models.Bitget)

const (
	defaultBaseURL = "https://api.bitget.com"
	defaultTimeout = 10 * time.Second

	// USDT-margined perpetuals live under the UMCBL product type.
	productSuffix = "_UMCBL"

	candlesPath        = "/api/mix/v1/market/candles"
	fundingHistoryPath = "/api/mix/v1/market/history-fundRate"
	tickerPath         = "/api/mix/v1/market/ticker"
	markPricePath      = "/api/mix/v1/market/mark-price"
	fundingTimePath    = "/api/mix/v1/market/funding-time"
	openInterestPath   = "/api/mix/v1/market/open-interest"
	contractsPath      = "/api/mix/v1/market/contracts"
	serverTimePath     = "/api/spot/v1/public/time"

	successCode = "00000"

	klineTypeIndex   = "index"
	klineTypeMark    = "mark"
	klineTypePremium = "premium"

	maxKlineLimit   = 1000
	maxFundingLimit = 100

	// Klines fetched for the premium snapshot, so a closed candle is
	// available next to the forming one.
	snapshotKlineCount = 2
)

// Bitget keeps minute granularities lowercase and capitalizes everything
// from hours up.
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

// Source fetches market data from Bitget USDT-margined perpetuals. Every
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

// New builds a Bitget source.
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
func (s *Source) Exchange() models.Exchange { return models.Bitget }

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
	_, err := s.requestWrapped(ctx, serverTimePath, nil, "server time")
	return err
}

// GetPriceKlines returns traded-price candles ordered oldest first.
func (s *Source) GetPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchCandles(ctx, win, "", "price klines")
}

// GetIndexPriceKlines returns index price candles ordered oldest first.
func (s *Source) GetIndexPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchCandles(ctx, win, klineTypeIndex, "index price klines")
}

// GetMarkPriceKlines returns mark price candles ordered oldest first.
func (s *Source) GetMarkPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchCandles(ctx, win, klineTypeMark, "mark price klines")
}

// GetPremiumIndexKlines returns premium index candles ordered oldest first.
func (s *Source) GetPremiumIndexKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchCandles(ctx, win, klineTypePremium, "premium index klines")
}

// GetFundingRateHistory returns funding settlements ordered oldest first.
// Bitget's funding history endpoint accepts no time filters, so StartTime
// and EndTime are ignored.
func (s *Source) GetFundingRateHistory(ctx context.Context, win models.FundingRateWindow) ([]models.FundingRatePoint, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}
	pageSize, err := enforceLimit(win.Limit, maxFundingLimit)
	if err != nil {
		return nil, err
	}
	return s.fetchFunding(ctx, win.Symbol, pageSize)
}

// GetLatestFundingRate returns the most recent funding settlement.
func (s *Source) GetLatestFundingRate(ctx context.Context, symbol models.Symbol) (models.FundingRatePoint, error) {
	if err := symbol.Validate(); err != nil {
		return models.FundingRatePoint{}, err
	}
	points, err := s.fetchFunding(ctx, symbol, 1)
	if err != nil {
		return models.FundingRatePoint{}, err
	}
	return points[len(points)-1], nil
}

// GetLatestPrice returns the last traded price from the ticker.
func (s *Source) GetLatestPrice(ctx context.Context, symbol models.Symbol) (models.PriceTicker, error) {
	if err := symbol.Validate(); err != nil {
		return models.PriceTicker{}, err
	}
	ticker, serverTime, err := s.fetchTicker(ctx, symbol)
	if err != nil {
		return models.PriceTicker{}, err
	}
	price, err := toDecimal(ticker.Last)
	if err != nil {
		return models.PriceTicker{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
	}
	return models.PriceTicker{Timestamp: inferTimestamp(ticker.Timestamp, serverTime), LastPrice: price}, nil
}

// GetLatestMarkPrice assembles the mark price snapshot from three feeds:
// the mark price endpoint, the ticker for index price and funding rate,
// and the funding time endpoint for the next settlement.
func (s *Source) GetLatestMarkPrice(ctx context.Context, symbol models.Symbol) (models.MarkPrice, error) {
	if err := symbol.Validate(); err != nil {
		return models.MarkPrice{}, err
	}
	params := url.Values{}
	params.Set("symbol", symbolID(symbol))

	markEnv, err := s.requestWrapped(ctx, markPricePath, params, "mark price")
	if err != nil {
		return models.MarkPrice{}, err
	}
	var markData markPriceData
	if err := json.Unmarshal(markEnv.Data, &markData); err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "malformed mark price payload", err)
	}
	price, err := toDecimal(markData.MarkPrice)
	if err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "unexpected mark price payload structure", err)
	}

	ticker, _, err := s.fetchTicker(ctx, symbol)
	if err != nil {
		return models.MarkPrice{}, err
	}
	index, err := toDecimal(ticker.IndexPrice)
	if err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
	}
	rate, err := toDecimal(ticker.FundingRate)
	if err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
	}

	fundingEnv, err := s.requestWrapped(ctx, fundingTimePath, params, "funding time")
	if err != nil {
		return models.MarkPrice{}, err
	}
	var fundingData fundingTimeData
	if err := json.Unmarshal(fundingEnv.Data, &fundingData); err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "malformed funding time payload", err)
	}
	next, ok := parseMillis(fundingData.FundingTime)
	if !ok {
		next = fundingEnv.RequestTime
	}

	return models.MarkPrice{
		Timestamp:       inferTimestamp(markData.Timestamp, markEnv.RequestTime),
		Price:           price,
		IndexPrice:      index,
		LastFundingRate: rate,
		NextFundingTime: next,
	}, nil
}

// GetLatestIndexPrice returns the index price from the ticker.
func (s *Source) GetLatestIndexPrice(ctx context.Context, symbol models.Symbol) (models.IndexPricePoint, error) {
	if err := symbol.Validate(); err != nil {
		return models.IndexPricePoint{}, err
	}
	ticker, serverTime, err := s.fetchTicker(ctx, symbol)
	if err != nil {
		return models.IndexPricePoint{}, err
	}
	index, err := toDecimal(ticker.IndexPrice)
	if err != nil {
		return models.IndexPricePoint{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
	}
	return models.IndexPricePoint{Timestamp: inferTimestamp(ticker.Timestamp, serverTime), IndexPrice: index}, nil
}

// GetLatestPremiumIndex derives the premium from the newest closed 1m
// premium candle; Bitget publishes no premium snapshot endpoint. The
// returned timestamp is the candle's open time.
func (s *Source) GetLatestPremiumIndex(ctx context.Context, symbol models.Symbol) (models.PremiumIndexPoint, error) {
	win, err := models.NewHistoricalWindow(symbol, models.Interval1m, 0, 0, snapshotKlineCount)
	if err != nil {
		return models.PremiumIndexPoint{}, err
	}
	klines, err := s.GetPremiumIndexKlines(ctx, win)
	if err != nil {
		return models.PremiumIndexPoint{}, err
	}
	kline := lastClosed(klines, models.Interval1m)
	return models.PremiumIndexPoint{Timestamp: kline.OpenTime, Premium: kline.Close}, nil
}

// GetOpenInterest returns open interest in contracts.
func (s *Source) GetOpenInterest(ctx context.Context, symbol models.Symbol) (models.OpenInterest, error) {
	if err := symbol.Validate(); err != nil {
		return models.OpenInterest{}, err
	}
	params := url.Values{}
	params.Set("symbol", symbolID(symbol))

	env, err := s.requestWrapped(ctx, openInterestPath, params, "open interest")
	if err != nil {
		return models.OpenInterest{}, err
	}
	var data openInterestData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return models.OpenInterest{}, errors.Wrap(Name, "malformed open interest payload", err)
	}
	value, err := toDecimal(data.Amount)
	if err != nil {
		return models.OpenInterest{}, errors.Wrap(Name, "unexpected open interest payload structure", err)
	}
	return models.OpenInterest{Timestamp: inferTimestamp(data.Timestamp, env.RequestTime), Value: value}, nil
}

// GetInstruments returns every listed USDT perpetual contract.
func (s *Source) GetInstruments(ctx context.Context) ([]models.Instrument, error) {
	env, err := s.requestWrapped(ctx, contractsPath, nil, "instruments")
	if err != nil {
		return nil, err
	}
	var entries []contractEntry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, errors.Wrap(Name, "malformed instruments payload", err)
	}

	instruments := make([]models.Instrument, 0, len(entries))
	for _, entry := range entries {
		if entry.QuoteCoin != "USDT" {
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

func (s *Source) fetchCandles(ctx context.Context, win models.HistoricalWindow, kLineType, feed string) ([]models.Kline, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}
	granularity, err := convertInterval(win.Interval)
	if err != nil {
		return nil, err
	}
	limit, err := enforceLimit(win.Limit, maxKlineLimit)
	if err != nil {
		return nil, err
	}

	// Bitget requires explicit time bounds and takes no limit parameter;
	// the limit caps the derived range instead.
	start, end := deriveTimeRange(win, limit)
	params := url.Values{}
	params.Set("symbol", symbolID(win.Symbol))
	params.Set("granularity", granularity)
	params.Set("startTime", strconv.FormatInt(start, 10))
	params.Set("endTime", strconv.FormatInt(end, 10))
	if kLineType != "" {
		params.Set("kLineType", kLineType)
	}

	body, err := s.request(ctx, candlesPath, params)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrap(Name, fmt.Sprintf("malformed %s payload", feed), err)
	}
	if len(rows) == 0 {
		return nil, errors.Newf(Name, "empty %s payload", feed)
	}

	klines := make([]models.Kline, 0, len(rows))
	for _, row := range rows {
		kline, err := parseKline(row)
		if err != nil {
			return nil, err
		}
		klines = append(klines, kline)
	}
	// Bitget already returns candles oldest first.
	return klines, nil
}

func (s *Source) fetchFunding(ctx context.Context, symbol models.Symbol, pageSize int) ([]models.FundingRatePoint, error) {
	params := url.Values{}
	params.Set("symbol", symbolID(symbol))
	params.Set("pageSize", strconv.Itoa(pageSize))

	env, err := s.requestWrapped(ctx, fundingHistoryPath, params, "funding rate history")
	if err != nil {
		return nil, err
	}
	var entries []fundingEntry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, errors.Wrap(Name, "malformed funding rate payload", err)
	}
	if len(entries) == 0 {
		return nil, errors.New(Name, "empty funding rate history payload")
	}

	points := make([]models.FundingRatePoint, 0, len(entries))
	for _, entry := range entries {
		point, err := entry.toPoint()
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	// Bitget returns settlements newest first.
	slices.SortFunc(points, func(a, b models.FundingRatePoint) int {
		return cmp.Compare(a.FundingTime, b.FundingTime)
	})
	return points, nil
}

func (s *Source) fetchTicker(ctx context.Context, symbol models.Symbol) (*tickerData, int64, error) {
	params := url.Values{}
	params.Set("symbol", symbolID(symbol))

	env, err := s.requestWrapped(ctx, tickerPath, params, "ticker")
	if err != nil {
		return nil, 0, err
	}
	var data tickerData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, 0, errors.Wrap(Name, "malformed ticker payload", err)
	}
	return &data, env.RequestTime, nil
}

// request returns the raw response body. The candles endpoint answers with
// a bare JSON array on success but wraps errors in the code/msg envelope,
// so error handling happens here and payload decoding at the call site.
func (s *Source) request(ctx context.Context, path string, params url.Values) ([]byte, error) {
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
	if resp.StatusCode >= 400 {
		var env wrappedResponse
		if json.Unmarshal(resp.Body, &env) == nil && env.Msg != "" {
			return nil, errors.New(Name, env.Msg)
		}
		return nil, errors.Newf(Name, "HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *Source) requestWrapped(ctx context.Context, path string, params url.Values, name string) (*wrappedResponse, error) {
	body, err := s.request(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var env wrappedResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(Name, fmt.Sprintf("malformed %s payload", name), err)
	}
	if env.Code != "" && env.Code != successCode {
		msg := env.Msg
		if msg == "" {
			msg = fmt.Sprintf("error code %s", env.Code)
		}
		return nil, errors.New(Name, msg)
	}
	return &env, nil
}

// symbolID renders the vendor contract identifier, e.g. BTCUSDT_UMCBL.
func symbolID(symbol models.Symbol) string {
	return symbol.Pair() + productSuffix
}

func convertInterval(interval models.Interval) (string, error) {
	vendor, ok := intervalParams[interval]
	if !ok {
		return "", errors.NewIntervalNotSupported(Name, fmt.Sprintf("interval %s has no Bitget mapping", interval))
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

// deriveTimeRange fills in whichever window bound is missing so that at
// most limit candles fit between the two.
func deriveTimeRange(win models.HistoricalWindow, limit int) (start, end int64) {
	end = win.EndTime
	if end <= 0 {
		end = time.Now().UnixMilli()
	}
	span := win.Interval.Milliseconds() * int64(limit)
	start = win.StartTime
	if start <= 0 {
		start = end - span
	}
	if start >= end {
		start = end - span
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

// lastClosed picks the newest candle whose interval has fully elapsed,
// falling back to the newest candle when none has closed yet. Candles must
// be ordered oldest first and non-empty.
func lastClosed(klines []models.Kline, interval models.Interval) models.Kline {
	now := time.Now().UnixMilli()
	for i := len(klines) - 1; i >= 0; i-- {
		if klines[i].OpenTime+interval.Milliseconds()-1 <= now {
			return klines[i]
		}
	}
	return klines[len(klines)-1]
}

func parseKline(row []string) (models.Kline, error) {
	if len(row) < 6 {
		return models.Kline{}, errors.New(Name, "unexpected kline payload structure")
	}
	openTime, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Kline{}, errors.Wrap(Name, "unexpected kline payload structure", err)
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
		{row[5], &kline.Volume},
	}
	for _, cell := range cells {
		value, err := toDecimal(cell.value)
		if err != nil {
			return models.Kline{}, errors.Wrap(Name, "unexpected kline payload structure", err)
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

// inferTimestamp picks the freshest timestamp available: the payload's own
// field, then the envelope request time, then the local clock.
func inferTimestamp(cell string, serverTime int64) int64 {
	if ms, ok := parseMillis(cell); ok {
		return ms
	}
	if serverTime > 0 {
		return serverTime
	}
	return time.Now().UnixMilli()
}

type wrappedResponse struct {
	Code        string          `json:"code"`
	Msg         string          `json:"msg"`
	RequestTime int64           `json:"requestTime"`
	Data        json.RawMessage `json:"data"`
}

type fundingEntry struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"`
	SettleTime  string `json:"settleTime"`
	FundingTime string `json:"fundingTime"`
}

func (e fundingEntry) toPoint() (models.FundingRatePoint, error) {
	rate, err := toDecimal(e.FundingRate)
	if err != nil {
		return models.FundingRatePoint{}, errors.Wrap(Name, "unexpected funding rate payload structure", err)
	}
	ts, ok := parseMillis(e.SettleTime)
	if !ok {
		ts, _ = parseMillis(e.FundingTime)
	}
	return models.FundingRatePoint{FundingTime: ts, Rate: rate}, nil
}

type tickerData struct {
	Last        string `json:"last"`
	IndexPrice  string `json:"indexPrice"`
	FundingRate string `json:"fundingRate"`
	Timestamp   string `json:"timestamp"`
}

type markPriceData struct {
	MarkPrice string `json:"markPrice"`
	Timestamp string `json:"timestamp"`
}

type fundingTimeData struct {
	FundingTime string `json:"fundingTime"`
}

type openInterestData struct {
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
}

type contractEntry struct {
	Symbol         string `json:"symbol"`
	BaseCoin       string `json:"baseCoin"`
	QuoteCoin      string `json:"quoteCoin"`
	PricePlace     string `json:"pricePlace"`
	PriceEndStep   string `json:"priceEndStep"`
	VolumePlace    string `json:"volumePlace"`
	SizeMultiplier string `json:"sizeMultiplier"`
	MinTradeNum    string `json:"minTradeNum"`
	SymbolStatus   string `json:"symbolStatus"`
}

// toInstrument derives the tick size from the price scale and end step,
// e.g. pricePlace 1 with priceEndStep 5 means prices move in 0.5 steps.
func (e contractEntry) toInstrument() (models.Instrument, error) {
	wrap := func(err error) (models.Instrument, error) {
		return models.Instrument{}, errors.Wrap(Name, "unexpected instruments payload structure", err)
	}

	pricePlace := 0
	if e.PricePlace != "" {
		n, err := strconv.Atoi(e.PricePlace)
		if err != nil {
			return wrap(err)
		}
		pricePlace = n
	}
	endStep := e.PriceEndStep
	if endStep == "" {
		endStep = "1"
	}
	endStepValue, err := decimal.NewFromString(endStep)
	if err != nil {
		return wrap(err)
	}
	tickSize := endStepValue.Shift(-int32(pricePlace))

	volumePlace := 0
	if e.VolumePlace != "" {
		n, err := strconv.Atoi(e.VolumePlace)
		if err != nil {
			return wrap(err)
		}
		volumePlace = n
	}
	var stepSize decimal.Decimal
	if e.SizeMultiplier != "" {
		stepSize, err = decimal.NewFromString(e.SizeMultiplier)
		if err != nil {
			return wrap(err)
		}
	} else {
		stepSize = decimal.New(1, -int32(volumePlace))
	}

	minQty, err := toDecimal(e.MinTradeNum)
	if err != nil {
		return wrap(err)
	}

	return models.Instrument{
		Symbol:     e.BaseCoin + e.QuoteCoin,
		BaseAsset:  e.BaseCoin,
		QuoteAsset: e.QuoteCoin,
		TickSize:   tickSize,
		StepSize:   stepSize,
		MinQty:     minQty,
		Status:     e.SymbolStatus,
	}, nil
}
