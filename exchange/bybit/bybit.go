// Package bybit fetches USDT-margined perpetual futures market data from
// Bybit's public V5 endpoints using the linear category.
package bybit

import (
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
const Name = string(models.Bybit)

const (
	defaultBaseURL = "https://api.bybit.com"
	defaultTimeout = 10 * time.Second

	category = "linear"

	klinePath          = "/v5/market/kline"
	indexKlinePath     = "/v5/market/index-price-kline"
	markKlinePath      = "/v5/market/mark-price-kline"
	premiumKlinePath   = "/v5/market/premium-index-price-kline"
	fundingHistoryPath = "/v5/market/funding/history"
	tickersPath        = "/v5/market/tickers"
	instrumentsPath    = "/v5/market/instruments-info"
	serverTimePath     = "/v5/market/time"

	maxKlineLimit   = 1000
	maxFundingLimit = 200

	// Klines fetched for the premium snapshot, so a closed candle is
	// available next to the forming one.
	snapshotKlineCount = 2
)

// Bybit encodes minutes as bare numbers and larger spans as letters. There
// is no three-day interval.
var intervalParams = map[models.Interval]string{
	models.Interval1m:  "1",
	models.Interval3m:  "3",
	models.Interval5m:  "5",
	models.Interval15m: "15",
	models.Interval30m: "30",
	models.Interval1h:  "60",
	models.Interval2h:  "120",
	models.Interval4h:  "240",
	models.Interval6h:  "360",
	models.Interval12h: "720",
	models.Interval1d:  "D",
	models.Interval1w:  "W",
	models.Interval1M:  "M",
}

// Source fetches market data from Bybit linear perpetuals. Every operation
// issues synchronous GET requests against the public API. A Source is safe
// for concurrent use.
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

// New builds a Bybit source.
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
func (s *Source) Exchange() models.Exchange { return models.Bybit }

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
	return s.fetchKlines(ctx, klinePath, win, "price klines")
}

// GetIndexPriceKlines returns index price candles ordered oldest first.
// Bybit publishes no volume for this feed.
func (s *Source) GetIndexPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchKlines(ctx, indexKlinePath, win, "index price klines")
}

// GetMarkPriceKlines returns mark price candles ordered oldest first.
// Bybit publishes no volume for this feed.
func (s *Source) GetMarkPriceKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchKlines(ctx, markKlinePath, win, "mark price klines")
}

// GetPremiumIndexKlines returns premium index candles ordered oldest first.
func (s *Source) GetPremiumIndexKlines(ctx context.Context, win models.HistoricalWindow) ([]models.Kline, error) {
	return s.fetchKlines(ctx, premiumKlinePath, win, "premium index klines")
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

// GetLatestPrice returns the last traded price from the linear ticker.
func (s *Source) GetLatestPrice(ctx context.Context, symbol models.Symbol) (models.PriceTicker, error) {
	if err := symbol.Validate(); err != nil {
		return models.PriceTicker{}, err
	}
	ticker, serverTime, err := s.fetchTicker(ctx, symbol)
	if err != nil {
		return models.PriceTicker{}, err
	}
	price, err := toDecimal(ticker.LastPrice)
	if err != nil {
		return models.PriceTicker{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
	}
	return models.PriceTicker{Timestamp: inferTimestamp(ticker, serverTime), LastPrice: price}, nil
}

// GetLatestMarkPrice assembles the mark price snapshot from the linear
// ticker, which carries mark price, index price, funding rate and the next
// funding time in one payload.
func (s *Source) GetLatestMarkPrice(ctx context.Context, symbol models.Symbol) (models.MarkPrice, error) {
	if err := symbol.Validate(); err != nil {
		return models.MarkPrice{}, err
	}
	ticker, serverTime, err := s.fetchTicker(ctx, symbol)
	if err != nil {
		return models.MarkPrice{}, err
	}
	mark, err := toDecimal(ticker.MarkPrice)
	if err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
	}
	index, err := toDecimal(ticker.IndexPrice)
	if err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
	}
	rate, err := toDecimal(ticker.FundingRate)
	if err != nil {
		return models.MarkPrice{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
	}
	next, _ := parseMillis(ticker.NextFundingTime)
	return models.MarkPrice{
		Timestamp:       inferTimestamp(ticker, serverTime),
		Price:           mark,
		IndexPrice:      index,
		LastFundingRate: rate,
		NextFundingTime: next,
	}, nil
}

// GetLatestIndexPrice returns the index price from the linear ticker.
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
	return models.IndexPricePoint{Timestamp: inferTimestamp(ticker, serverTime), IndexPrice: index}, nil
}

// GetLatestPremiumIndex derives the premium from the newest closed 1m
// premium candle; Bybit's dedicated premium snapshot endpoint is not
// served in all regions. The returned timestamp is the candle's open time.
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

// GetOpenInterest reads open interest from the linear ticker. Value is
// quote-denominated when the ticker carries openInterestValue and falls
// back to the raw contract count otherwise.
func (s *Source) GetOpenInterest(ctx context.Context, symbol models.Symbol) (models.OpenInterest, error) {
	if err := symbol.Validate(); err != nil {
		return models.OpenInterest{}, err
	}
	ticker, serverTime, err := s.fetchTicker(ctx, symbol)
	if err != nil {
		return models.OpenInterest{}, err
	}
	cell := ticker.OpenInterestValue
	if cell == "" {
		cell = ticker.OpenInterest
	}
	value, err := toDecimal(cell)
	if err != nil {
		return models.OpenInterest{}, errors.Wrap(Name, "unexpected ticker payload structure", err)
	}
	return models.OpenInterest{Timestamp: inferTimestamp(ticker, serverTime), Value: value}, nil
}

// GetInstruments returns every listed USDT linear perpetual contract.
func (s *Source) GetInstruments(ctx context.Context) ([]models.Instrument, error) {
	params := url.Values{}
	params.Set("category", category)
	env, err := s.request(ctx, instrumentsPath, params)
	if err != nil {
		return nil, err
	}
	list, err := extractList(env, "instruments")
	if err != nil {
		return nil, err
	}

	instruments := make([]models.Instrument, 0, len(list))
	for _, raw := range list {
		var entry instrumentEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errors.Wrap(Name, "malformed instruments payload", err)
		}
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

func (s *Source) fetchKlines(ctx context.Context, path string, win models.HistoricalWindow, feed string) ([]models.Kline, error) {
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
	params.Set("category", category)
	params.Set("symbol", win.Symbol.Pair())
	params.Set("interval", vendorInterval)
	params.Set("limit", strconv.Itoa(limit))
	if win.StartTime > 0 {
		params.Set("start", strconv.FormatInt(win.StartTime, 10))
	}
	if win.EndTime > 0 {
		params.Set("end", strconv.FormatInt(win.EndTime, 10))
	}

	env, err := s.request(ctx, path, params)
	if err != nil {
		return nil, err
	}
	list, err := extractList(env, feed)
	if err != nil {
		return nil, err
	}

	klines := make([]models.Kline, 0, len(list))
	for _, raw := range list {
		kline, err := parseKline(raw)
		if err != nil {
			return nil, err
		}
		klines = append(klines, kline)
	}
	// Bybit returns candles newest first.
	slices.Reverse(klines)
	return klines, nil
}

func (s *Source) fetchFunding(ctx context.Context, symbol models.Symbol, limit int, startTime, endTime int64) ([]models.FundingRatePoint, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", symbol.Pair())
	params.Set("limit", strconv.Itoa(limit))
	if startTime > 0 {
		params.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		params.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	env, err := s.request(ctx, fundingHistoryPath, params)
	if err != nil {
		return nil, err
	}
	list, err := extractList(env, "funding rate history")
	if err != nil {
		return nil, err
	}

	points := make([]models.FundingRatePoint, 0, len(list))
	for _, raw := range list {
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
	// Bybit returns settlements newest first.
	slices.Reverse(points)
	return points, nil
}

func (s *Source) fetchTicker(ctx context.Context, symbol models.Symbol) (*tickerEntry, int64, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", symbol.Pair())

	env, err := s.request(ctx, tickersPath, params)
	if err != nil {
		return nil, 0, err
	}
	list, err := extractList(env, "ticker")
	if err != nil {
		return nil, 0, err
	}

	var ticker tickerEntry
	if err := json.Unmarshal(list[0], &ticker); err != nil {
		return nil, 0, errors.Wrap(Name, "malformed ticker payload", err)
	}
	return &ticker, env.Time, nil
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

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, errors.Wrap(Name, "unreadable response", err)
	}
	if resp.StatusCode >= 400 {
		msg := env.RetMsg
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, errors.New(Name, msg)
	}
	if env.RetCode != 0 {
		msg := env.RetMsg
		if msg == "" {
			msg = fmt.Sprintf("error code %d", env.RetCode)
		}
		return nil, errors.New(Name, msg)
	}
	return &env, nil
}

func extractList(env *envelope, name string) ([]json.RawMessage, error) {
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, errors.Newf(Name, "malformed %s payload", name)
	}
	var result listResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return nil, errors.Wrap(Name, fmt.Sprintf("malformed %s payload", name), err)
	}
	if len(result.List) == 0 {
		return nil, errors.Newf(Name, "empty %s payload", name)
	}
	return result.List, nil
}

func convertInterval(interval models.Interval) (string, error) {
	vendor, ok := intervalParams[interval]
	if !ok {
		return "", errors.NewIntervalNotSupported(Name, fmt.Sprintf("interval %s has no Bybit mapping", interval))
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

func parseKline(raw json.RawMessage) (models.Kline, error) {
	var row []string
	if err := json.Unmarshal(raw, &row); err != nil {
		return models.Kline{}, errors.Wrap(Name, "unexpected kline payload structure", err)
	}
	if len(row) < 5 {
		return models.Kline{}, errors.New(Name, "unexpected kline payload structure")
	}
	openTime, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Kline{}, errors.Wrap(Name, "unexpected kline payload structure", err)
	}

	volumeCell := "0"
	if len(row) > 5 {
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

// inferTimestamp picks the freshest timestamp available: the ticker's own
// fields, then the envelope server time, then the local clock.
func inferTimestamp(ticker *tickerEntry, serverTime int64) int64 {
	if ms, ok := parseMillis(ticker.Timestamp); ok {
		return ms
	}
	if ms, ok := parseMillis(ticker.Ts); ok {
		return ms
	}
	if serverTime > 0 {
		return serverTime
	}
	return time.Now().UnixMilli()
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

type listResult struct {
	Category string            `json:"category"`
	List     []json.RawMessage `json:"list"`
}

type fundingEntry struct {
	FundingRate          string `json:"fundingRate"`
	FundingRateTimestamp string `json:"fundingRateTimestamp"`
	Timestamp            string `json:"timestamp"`
}

func (e fundingEntry) toPoint() (models.FundingRatePoint, error) {
	rate, err := toDecimal(e.FundingRate)
	if err != nil {
		return models.FundingRatePoint{}, errors.Wrap(Name, "unexpected funding rate payload structure", err)
	}
	ts, ok := parseMillis(e.FundingRateTimestamp)
	if !ok {
		ts, _ = parseMillis(e.Timestamp)
	}
	return models.FundingRatePoint{FundingTime: ts, Rate: rate}, nil
}

type tickerEntry struct {
	Symbol            string `json:"symbol"`
	LastPrice         string `json:"lastPrice"`
	IndexPrice        string `json:"indexPrice"`
	MarkPrice         string `json:"markPrice"`
	FundingRate       string `json:"fundingRate"`
	NextFundingTime   string `json:"nextFundingTime"`
	OpenInterest      string `json:"openInterest"`
	OpenInterestValue string `json:"openInterestValue"`
	Timestamp         string `json:"timestamp"`
	Ts                string `json:"ts"`
}

type instrumentEntry struct {
	Symbol      string `json:"symbol"`
	BaseCoin    string `json:"baseCoin"`
	QuoteCoin   string `json:"quoteCoin"`
	Status      string `json:"status"`
	PriceFilter struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
	LotSizeFilter struct {
		QtyStep     string `json:"qtyStep"`
		MinOrderQty string `json:"minOrderQty"`
		MaxOrderQty string `json:"maxOrderQty"`
	} `json:"lotSizeFilter"`
}

func (e instrumentEntry) toInstrument() (models.Instrument, error) {
	parse := func(cell string, dst *decimal.Decimal) error {
		value, err := toDecimal(cell)
		if err != nil {
			return errors.Wrap(Name, "unexpected instruments payload structure", err)
		}
		*dst = value
		return nil
	}

	inst := models.Instrument{
		Symbol:     e.Symbol,
		BaseAsset:  e.BaseCoin,
		QuoteAsset: e.QuoteCoin,
		Status:     e.Status,
	}
	if err := parse(e.PriceFilter.TickSize, &inst.TickSize); err != nil {
		return models.Instrument{}, err
	}
	if err := parse(e.LotSizeFilter.QtyStep, &inst.StepSize); err != nil {
		return models.Instrument{}, err
	}
	if err := parse(e.LotSizeFilter.MinOrderQty, &inst.MinQty); err != nil {
		return models.Instrument{}, err
	}
	if err := parse(e.LotSizeFilter.MaxOrderQty, &inst.MaxQty); err != nil {
		return models.Instrument{}, err
	}
	return inst, nil
}
