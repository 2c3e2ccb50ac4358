package perpdata

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/quantfetch/perpdata/models"
)

// Client fronts every registered exchange behind one API. Sources are
// created lazily on first use and reused for the client's lifetime. A
// Client is safe for concurrent use.
type Client struct {
	mu       sync.Mutex
	registry *Registry
	sources  map[models.Exchange]MarketDataSource
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRegistry backs the client with the supplied registry instead of
// DefaultRegistry.
func WithRegistry(registry *Registry) ClientOption {
	return func(c *Client) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithSource seeds a ready source, bypassing the registry for that
// exchange. Useful for tests and custom adapters.
func WithSource(exchange models.Exchange, source MarketDataSource) ClientOption {
	return func(c *Client) {
		if source != nil {
			c.sources[exchange] = source
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client. Without options it serves the four built-in
// exchanges with their default settings.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		sources: make(map[models.Exchange]MarketDataSource),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	return c
}

func (c *Client) source(exchange models.Exchange) (MarketDataSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if src, ok := c.sources[exchange]; ok {
		return src, nil
	}
	src, err := c.registry.Create(exchange)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("market data source created", "exchange", exchange)
	c.sources[exchange] = src
	return src, nil
}

// GetPriceKlines fetches traded-price candles from one exchange.
func (c *Client) GetPriceKlines(ctx context.Context, exchange models.Exchange, win models.HistoricalWindow) ([]models.Kline, error) {
	src, err := c.source(exchange)
	if err != nil {
		return nil, err
	}
	return src.GetPriceKlines(ctx, win)
}

// GetIndexPriceKlines fetches index price candles from one exchange.
func (c *Client) GetIndexPriceKlines(ctx context.Context, exchange models.Exchange, win models.HistoricalWindow) ([]models.Kline, error) {
	src, err := c.source(exchange)
	if err != nil {
		return nil, err
	}
	return src.GetIndexPriceKlines(ctx, win)
}

// GetMarkPriceKlines fetches mark price candles from one exchange.
func (c *Client) GetMarkPriceKlines(ctx context.Context, exchange models.Exchange, win models.HistoricalWindow) ([]models.Kline, error) {
	src, err := c.source(exchange)
	if err != nil {
		return nil, err
	}
	return src.GetMarkPriceKlines(ctx, win)
}

// GetPremiumIndexKlines fetches premium index candles from one exchange.
func (c *Client) GetPremiumIndexKlines(ctx context.Context, exchange models.Exchange, win models.HistoricalWindow) ([]models.Kline, error) {
	src, err := c.source(exchange)
	if err != nil {
		return nil, err
	}
	return src.GetPremiumIndexKlines(ctx, win)
}

// GetFundingRateHistory fetches funding settlements from one exchange.
func (c *Client) GetFundingRateHistory(ctx context.Context, exchange models.Exchange, win models.FundingRateWindow) ([]models.FundingRatePoint, error) {
	src, err := c.source(exchange)
	if err != nil {
		return nil, err
	}
	return src.GetFundingRateHistory(ctx, win)
}

// GetLatestFundingRate fetches the most recent funding settlement.
func (c *Client) GetLatestFundingRate(ctx context.Context, exchange models.Exchange, symbol models.Symbol) (models.FundingRatePoint, error) {
	src, err := c.source(exchange)
	if err != nil {
		return models.FundingRatePoint{}, err
	}
	return src.GetLatestFundingRate(ctx, symbol)
}

// GetLatestPrice fetches the last traded price.
func (c *Client) GetLatestPrice(ctx context.Context, exchange models.Exchange, symbol models.Symbol) (models.PriceTicker, error) {
	src, err := c.source(exchange)
	if err != nil {
		return models.PriceTicker{}, err
	}
	return src.GetLatestPrice(ctx, symbol)
}

// GetLatestMarkPrice fetches the current mark price snapshot.
func (c *Client) GetLatestMarkPrice(ctx context.Context, exchange models.Exchange, symbol models.Symbol) (models.MarkPrice, error) {
	src, err := c.source(exchange)
	if err != nil {
		return models.MarkPrice{}, err
	}
	return src.GetLatestMarkPrice(ctx, symbol)
}

// GetLatestIndexPrice fetches the current index price.
func (c *Client) GetLatestIndexPrice(ctx context.Context, exchange models.Exchange, symbol models.Symbol) (models.IndexPricePoint, error) {
	src, err := c.source(exchange)
	if err != nil {
		return models.IndexPricePoint{}, err
	}
	return src.GetLatestIndexPrice(ctx, symbol)
}

// GetLatestPremiumIndex fetches the current premium index reading.
func (c *Client) GetLatestPremiumIndex(ctx context.Context, exchange models.Exchange, symbol models.Symbol) (models.PremiumIndexPoint, error) {
	src, err := c.source(exchange)
	if err != nil {
		return models.PremiumIndexPoint{}, err
	}
	return src.GetLatestPremiumIndex(ctx, symbol)
}

// GetOpenInterest fetches the current open interest.
func (c *Client) GetOpenInterest(ctx context.Context, exchange models.Exchange, symbol models.Symbol) (models.OpenInterest, error) {
	src, err := c.source(exchange)
	if err != nil {
		return models.OpenInterest{}, err
	}
	return src.GetOpenInterest(ctx, symbol)
}

// GetInstruments fetches the tradable USDT perpetual contracts.
func (c *Client) GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	src, err := c.source(exchange)
	if err != nil {
		return nil, err
	}
	return src.GetInstruments(ctx)
}

// HealthCheck probes one exchange's API.
func (c *Client) HealthCheck(ctx context.Context, exchange models.Exchange) error {
	src, err := c.source(exchange)
	if err != nil {
		return err
	}
	return src.HealthCheck(ctx)
}

// Exchanges lists every exchange this client can serve, sorted.
func (c *Client) Exchanges() []models.Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[models.Exchange]struct{})
	for exchange := range c.sources {
		seen[exchange] = struct{}{}
	}
	for _, exchange := range c.registry.Exchanges() {
		seen[exchange] = struct{}{}
	}
	exchanges := make([]models.Exchange, 0, len(seen))
	for exchange := range seen {
		exchanges = append(exchanges, exchange)
	}
	slices.Sort(exchanges)
	return exchanges
}

// Close releases every source the client has opened. The client must not
// be used afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for exchange, src := range c.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", exchange, err))
		}
	}
	clear(c.sources)
	return stderrors.Join(errs...)
}
