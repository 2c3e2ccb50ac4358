// Package binance fetches USDT-margined perpetual futures market data from
// Binance's public fapi endpoints.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfetch/perpdata/errors"
	"github.com/quantfetch/perpdata/models"
	"github.com/quantfetch/perpdata/transport"
)

// Name identifies this adapter in error messages.
const Name = string(models.Binance)

const (
	defaultBaseURL = "https://fapi.binance.com"
	defaultTimeout = 10 * time.Second

	priceKlinesPath   = "/fapi/v1/klines"
	indexKlinesPath   = "/fapi/v1/indexPriceKlines"
	markKlinesPath    = "/fapi/v1/markPriceKlines"
	premiumKlinesPath = "/fapi/v1/premiumIndexKlines"
	fundingRatePath   = "/fapi/v1/fundingRate"
	premiumIndexPath  = "/fapi/v1/premiumIndex"
	ticker24hPath     = "/fapi/v1/ticker/24hr"
	openInterestPath  = "/fapi/v1/openInterest"
	exchangeInfoPath  = "/fapi/v1/exchangeInfo"
	pingPath          = "/fapi/v1/ping"

	maxKlineLimit   = 1500
	maxFundingLimit = 1000

	// Klines fetched for latest index and premium snapshots, so a closed
	// candle is available next to the forming one.
	snapshotKlineCount = 2

	codeUnknownSymbol   = -1121
	codeInvalidInterval = -1120

	priceFilterType = "PRICE_FILTER"
	lotSizeType     = "LOT_SIZE"
)

// Binance accepts the canonical interval notation unchanged.
var intervalParams = map[models.Interval]string{
	models.Interval1m:  "1m",
	models.Interval3m:  "3m",
	models.Interval5m:  "5m",
	models.Interval15m: "15m",
	models.Interval30m: "30m",
	models.Interval1h:  "1h",
	models.Interval2h:  "2h",
	models.Interval4h:  "4h",
	models.Interval6h:  "6h",
	models.Interval12h: "12h",
	models.Interval1d:  "1d",
	models.Interval3d:  "3d",
	models.Interval1w:  "1w",
	models.Interval1M:  "1M",
}

// Source fetches market data from Binance USDT-margined futures. Every
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

// WithBaseURL points the adapter at a different host, e.g. a testnet.
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

// New builds a Binance source.
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
func (s *Source) Exchange() models.Exchange { return models.Binance }

// Close releases the owned transport. It is a no-op when a transport was
// injected.
func (s *Source) Close() error {
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}

// HealthCheck pings the public API.
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := s.request(ctx, pingPath, nil)
	return err
}

// GetPriceKlines returns traded-price candles ordered oldest first.
func (s *Source) GetPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchKlines(ctx, priceKlinesPath, "symbol", win, "price klines")
}

// GetIndexPriceKlines returns index price candles ordered oldest first.
// Binance keys this feed by "pair" instead of "symbol".
func (s *Source) GetIndexPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchKlines(ctx, indexKlinesPath, "pair", win, "index price klines")
}

// GetMarkPriceKlines returns mark price candles ordered oldest first.
func (s *Source) GetMarkPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchKlines(ctx, markKlinesPath, "symbol", win, "mark price klines")
}

// GetPremiumIndexKlines returns premium index candles ordered oldest first.
func (s *Source) GetPremiumIndexKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchKlines(ctx, premiumKlinesPath, "symbol", win, "premium index klines")
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
	return s.fetchFunding(ctx, win.Symbol, limit, win.StartTime, win.EndTime)
}

// GetLatestFundingRate returns the most recent funding settlement.
func (s *Source) GetLatestFundingRate(ctx context.Context, symbol models.Symbol) (models.FundingRatePoint, error) {
	if err := symbol.Validate(); err != nil {
		return models.FundingRatePoint{}, err
	}
	points, err := s.fetchFunding(ctx, symbol, 1, 0, 0)
	if err != nil {
		return models.FundingRatePoint{}, err
	}
	return points[len(points)-1], nil
}

// GetLatestPrice returns the last traded price from the 24h ticker.
func (s *Source) GetLatestPrice(ctx context.Context, symbol models.Symbol) (models.PriceTicker, error) {
	if err := symbol.Validate(); err != nil {
		return models.PriceTicker{}, err
	}
	params := url.Values{}
	params.Set("symbol", symbol.Pair())
	body, err := s.request(ctx, ticker24hPath, params)
	if err != nil {
		return models.PriceTicker{}, err
	}

	var ticker tickerEntry
	if err := json.Unmarshal(body, &ticker); err != nil {
		return models.PriceTicker{}, errors.Wrap(Name, "malformed ticker payload", err)
	}
	price, err := cellDecimal(ticker.LastPrice)
	if err != nil {
		return models.PriceTicker{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
	}
	return models.PriceTicker{Timestamp: ticker.CloseTime, LastPrice: price}, nil
}

// GetLatestMarkPrice returns the premium index snapshot with mark price,
// index price, last funding rate and next funding time.
func (s *Source) GetLatestMarkPrice(ctx context.Context, symbol models.Symbol) (models.MarkPrice, error) {
	if err := symbol.Validate(); err != nil {
		return models.MarkPrice{}, err
	}
	params := url.Values{}
	params.Set("symbol", symbol.Pair())
	body, err := s.request(ctx, premiumIndexPath, params)
	if err != nil {
		return models.MarkPrice{}, err
	}

	var snap premiumIndexEntry
	if err := json.Unmarshal(body, &snap); err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "malformed premium index payload", err)
	}
	mark, err := cellDecimal(snap.MarkPrice)
	if err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "unexpected premium index payload structure", err)
	}
	index, err := cellDecimal(snap.IndexPrice)
	if err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "unexpected premium index payload structure", err)
	}
	rate, err := cellDecimal(snap.LastFundingRate)
	if err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "unexpected premium index payload structure", err)
	}
	return models.MarkPrice{
		Timestamp:       snap.Time,
		Price:           mark,
		IndexPrice:      index,
		LastFundingRate: rate,
		NextFundingTime: snap.NextFundingTime,
	}, nil
}

// GetLatestIndexPrice derives the index price from the newest closed 1m
// index candle. The returned timestamp is the candle's open time.
func (s *Source) GetLatestIndexPrice(ctx context.Context, symbol models.Symbol) (models.IndexPricePoint, error) {
	win, err := models.NewHistoricalWindow(symbol, models.Interval1m, 0, 0, snapshotKlineCount)
	if err != nil {
		return models.IndexPricePoint{}, err
	}
	klines, err := s.GetIndexPriceKlines(ctx, win)
	if err != nil {
		return models.IndexPricePoint{}, err
	}
	kline := lastClosed(klines, models.Interval1m)
	return models.IndexPricePoint{Timestamp: kline.OpenTime, IndexPrice: kline.Close}, nil
}

// GetLatestPremiumIndex derives the premium index from the newest closed 1m
// premium candle. The returned timestamp is the candle's open time.
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

// GetOpenInterest returns the open contract count.
func (s *Source) GetOpenInterest(ctx context.Context, symbol models.Symbol) (models.OpenInterest, error) {
	if err := symbol.Validate(); err != nil {
		return models.OpenInterest{}, err
	}
	params := url.Values{}
	params.Set("symbol", symbol.Pair())
	body, err := s.request(ctx, openInterestPath, params)
	if err != nil {
		return models.OpenInterest{}, err
	}

	var entry openInterestEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return models.OpenInterest{}, errors.Wrap(Name, "malformed open interest payload", err)
	}
	value, err := cellDecimal(entry.OpenInterest)
	if err != nil {
		return models.OpenInterest{}, errors.Wrap(Name, "unexpected open interest payload structure", err)
	}
	return models.OpenInterest{Timestamp: entry.Time, Value: value}, nil
}

// GetInstruments returns every listed USDT-margined perpetual contract.
func (s *Source) GetInstruments(ctx context.Context) ([]models.Instrument, error) {
	body, err := s.request(ctx, exchangeInfoPath, nil)
	if err != nil {
		return nil, err
	}

	var info exchangeInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, errors.Wrap(Name, "malformed exchange info payload", err)
	}

	instruments := make([]models.Instrument, 0, len(info.Symbols))
	for _, entry := range info.Symbols {
		if entry.ContractType != "PERPETUAL" || entry.QuoteAsset != "USDT" {
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

func (s *Source) fetchKlines(ctx context.Context, path, symbolKey string, win models.HistoricalWindow, feed string) ([]models.Kline, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}
	vendorInterval, err := convertInterval(win.Interval)
	if err != nil {
		return nil, err
	}
	limit, err := enforceLimit(win.Limit, maxKlineLimit)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set(symbolKey, win.Symbol.Pair())
	params.Set("interval", vendorInterval)
	params.Set("limit", strconv.Itoa(limit))
	if win.StartTime > 0 {
		params.Set("startTime", strconv.FormatInt(win.StartTime, 10))
	}
	if win.EndTime > 0 {
		params.Set("endTime", strconv.FormatInt(win.EndTime, 10))
	}

	body, err := s.request(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrap(Name, "malformed "+feed+" payload", err)
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
	// Binance already returns candles oldest first.
	return klines, nil
}

func (s *Source) fetchFunding(ctx context.Context, symbol models.Symbol, limit int, startTime, endTime int64) ([]models.FundingRatePoint, error) {
	params := url.Values{}
	params.Set("symbol", symbol.Pair())
	params.Set("limit", strconv.Itoa(limit))
	if startTime > 0 {
		params.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		params.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	body, err := s.request(ctx, fundingRatePath, params)
	if err != nil {
		return nil, err
	}

	var entries []fundingEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, errors.Wrap(Name, "malformed funding rate payload", err)
	}
	if len(entries) == 0 {
		return nil, errors.New(Name, "empty funding rate payload")
	}

	points := make([]models.FundingRatePoint, 0, len(entries))
	for _, entry := range entries {
		point, err := entry.toPoint()
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	// Binance already returns settlements oldest first.
	return points, nil
}

func (s *Source) request(ctx context.Context, path string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.transport.Get(ctx, s.baseURL+path, params)
	if err != nil {
		return nil, errors.WrapTransient(Name, "request failed", err)
	}
	return classify(resp)
}

// classify turns a completed HTTP exchange into a payload or a taxonomy
// error. Binance reports application errors in the body even on HTTP 200,
// so the body is inspected for every non-throttled response.
func classify(resp *transport.Response) ([]byte, error) {
	switch {
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusTeapot,
		resp.StatusCode == http.StatusUnavailableForLegalReasons,
		resp.StatusCode >= 500:
		return nil, errors.NewTransientf(Name, "transient HTTP status %d", resp.StatusCode)
	}

	var vendor apiError
	if err := json.Unmarshal(resp.Body, &vendor); err == nil && vendor.Code != 0 {
		switch vendor.Code {
		case codeUnknownSymbol:
			return nil, errors.NewSymbolNotSupported(Name, vendor.message())
		case codeInvalidInterval:
			return nil, errors.NewIntervalNotSupported(Name, vendor.message())
		default:
			return nil, errors.New(Name, vendor.message())
		}
	}

	if resp.StatusCode >= 400 {
		return nil, errors.Newf(Name, "HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func convertInterval(interval models.Interval) (string, error) {
	vendor, ok := intervalParams[interval]
	if !ok {
		return "", errors.NewIntervalNotSupported(Name, fmt.Sprintf("interval %s has no Binance mapping", interval))
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

func parseKline(row []json.RawMessage) (models.Kline, error) {
	if len(row) < 6 {
		return models.Kline{}, errors.New(Name, "unexpected kline payload structure")
	}
	openTime, err := cellInt64(row[0])
	if err != nil {
		return models.Kline{}, errors.Wrap(Name, "unexpected kline payload structure", err)
	}
	kline := models.Kline{OpenTime: openTime}
	for i, dst := range []*decimal.Decimal{&kline.Open, &kline.High, &kline.Low, &kline.Close, &kline.Volume} {
		value, err := cellDecimal(row[i+1])
		if err != nil {
			return models.Kline{}, errors.Wrap(Name, "unexpected kline payload structure", err)
		}
		*dst = value
	}
	return kline, nil
}

// cellInt64 reads a timestamp cell that may arrive quoted or bare.
func cellInt64(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("cannot parse %s as a timestamp", string(raw))
	}
	return strconv.ParseInt(s, 10, 64)
}

// cellDecimal reads a numeric cell, preserving the vendor's exact decimal
// representation. Empty and null cells parse as zero.
func cellDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 {
		return decimal.Zero, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	if s == "" || s == "null" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e apiError) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("error code %d", e.Code)
}

type fundingEntry struct {
	FundingTime int64           `json:"fundingTime"`
	FundingRate json.RawMessage `json:"fundingRate"`
}

func (e fundingEntry) toPoint() (models.FundingRatePoint, error) {
	rate, err := cellDecimal(e.FundingRate)
	if err != nil {
		return models.FundingRatePoint{}, errors.Wrap(Name, "unexpected funding rate payload structure", err)
	}
	return models.FundingRatePoint{FundingTime: e.FundingTime, Rate: rate}, nil
}

type tickerEntry struct {
	LastPrice json.RawMessage `json:"lastPrice"`
	CloseTime int64           `json:"closeTime"`
}

type premiumIndexEntry struct {
	MarkPrice       json.RawMessage `json:"markPrice"`
	IndexPrice      json.RawMessage `json:"indexPrice"`
	LastFundingRate json.RawMessage `json:"lastFundingRate"`
	NextFundingTime int64           `json:"nextFundingTime"`
	Time            int64           `json:"time"`
}

type openInterestEntry struct {
	OpenInterest json.RawMessage `json:"openInterest"`
	Time         int64           `json:"time"`
}

type exchangeInfoResponse struct {
	Symbols []symbolEntry `json:"symbols"`
}

type symbolEntry struct {
	Symbol       string        `json:"symbol"`
	ContractType string        `json:"contractType"`
	BaseAsset    string        `json:"baseAsset"`
	QuoteAsset   string        `json:"quoteAsset"`
	Status       string        `json:"status"`
	Filters      []filterEntry `json:"filters"`
}

type filterEntry struct {
	FilterType string          `json:"filterType"`
	TickSize   json.RawMessage `json:"tickSize"`
	StepSize   json.RawMessage `json:"stepSize"`
	MinQty     json.RawMessage `json:"minQty"`
	MaxQty     json.RawMessage `json:"maxQty"`
}

func (e symbolEntry) toInstrument() (models.Instrument, error) {
	parse := func(raw json.RawMessage, dst *decimal.Decimal) error {
		value, err := cellDecimal(raw)
		if err != nil {
			return errors.Wrap(Name, "unexpected exchange info payload structure", err)
		}
		*dst = value
		return nil
	}

	inst := models.Instrument{
		Symbol:     e.Symbol,
		BaseAsset:  e.BaseAsset,
		QuoteAsset: e.QuoteAsset,
		Status:     e.Status,
	}
	for _, filter := range e.Filters {
		switch filter.FilterType {
		case priceFilterType:
			if err := parse(filter.TickSize, &inst.TickSize); err != nil {
				return models.Instrument{}, err
			}
		case lotSizeType:
			if err := parse(filter.StepSize, &inst.StepSize); err != nil {
				return models.Instrument{}, err
			}
			if err := parse(filter.MinQty, &inst.MinQty); err != nil {
				return models.Instrument{}, err
			}
			if err := parse(filter.MaxQty, &inst.MaxQty); err != nil {
				return models.Instrument{}, err
			}
		}
	}
	return inst, nil
}
