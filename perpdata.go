package perpdata

import (
	"fmt"
	"log/slog"

	"github.com/quantfetch/perpdata/config"
	"github.com/quantfetch/perpdata/exchange/binance"
	"github.com/quantfetch/perpdata/exchange/bitget"
	"github.com/quantfetch/perpdata/exchange/bybit"
	"github.com/quantfetch/perpdata/exchange/okx"
	"github.com/quantfetch/perpdata/models"
)

// Every adapter must satisfy the full source contract.
var (
	_ MarketDataSource = (*binance.Source)(nil)
	_ MarketDataSource = (*bybit.Source)(nil)
	_ MarketDataSource = (*bitget.Source)(nil)
	_ MarketDataSource = (*okx.Source)(nil)
)

// DefaultRegistry returns a fresh registry holding the four built-in
// exchanges with their default settings.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Replace(models.Binance, func() MarketDataSource { return binance.New() })
	r.Replace(models.Bybit, func() MarketDataSource { return bybit.New() })
	r.Replace(models.Bitget, func() MarketDataSource { return bitget.New() })
	r.Replace(models.OKX, func() MarketDataSource { return okx.New() })
	return r
}

// NewClientFromConfig builds a client whose sources honor the supplied
// configuration for base URLs, timeouts and rate limits. A nil config
// falls back to defaults.
func NewClientFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := NewRegistry()
	r.Replace(models.Binance, func() MarketDataSource {
		return binance.New(binanceOptions(cfg, logger)...)
	})
	r.Replace(models.Bybit, func() MarketDataSource {
		return bybit.New(bybitOptions(cfg, logger)...)
	})
	r.Replace(models.Bitget, func() MarketDataSource {
		return bitget.New(bitgetOptions(cfg, logger)...)
	})
	r.Replace(models.OKX, func() MarketDataSource {
		return okx.New(okxOptions(cfg, logger)...)
	})
	return NewClient(WithRegistry(r), WithLogger(logger)), nil
}

// Each adapter defines its own option type, so the per-exchange settings
// expand into four small builders.

func binanceOptions(cfg *config.Config, logger *slog.Logger) []binance.Option {
	name := string(models.Binance)
	opts := []binance.Option{binance.WithLogger(logger)}
	if baseURL := cfg.ExchangeBaseURL(name); baseURL != "" {
		opts = append(opts, binance.WithBaseURL(baseURL))
	}
	if timeout := cfg.ExchangeTimeout(name); timeout > 0 {
		opts = append(opts, binance.WithTimeout(timeout))
	}
	if rps, burst := cfg.ExchangeRateLimit(name); rps > 0 {
		opts = append(opts, binance.WithRateLimit(rps, burst))
	}
	return opts
}

func bybitOptions(cfg *config.Config, logger *slog.Logger) []bybit.Option {
	name := string(models.Bybit)
	opts := []bybit.Option{bybit.WithLogger(logger)}
	if baseURL := cfg.ExchangeBaseURL(name); baseURL != "" {
		opts = append(opts, bybit.WithBaseURL(baseURL))
	}
	if timeout := cfg.ExchangeTimeout(name); timeout > 0 {
		opts = append(opts, bybit.WithTimeout(timeout))
	}
	if rps, burst := cfg.ExchangeRateLimit(name); rps > 0 {
		opts = append(opts, bybit.WithRateLimit(rps, burst))
	}
	return opts
}

func bitgetOptions(cfg *config.Config, logger *slog.Logger) []bitget.Option {
	name := string(models.Bitget)
	opts := []bitget.Option{bitget.WithLogger(logger)}
	if baseURL := cfg.ExchangeBaseURL(name); baseURL != "" {
		opts = append(opts, bitget.WithBaseURL(baseURL))
	}
	if timeout := cfg.ExchangeTimeout(name); timeout > 0 {
		opts = append(opts, bitget.WithTimeout(timeout))
	}
	if rps, burst := cfg.ExchangeRateLimit(name); rps > 0 {
		opts = append(opts, bitget.WithRateLimit(rps, burst))
	}
	return opts
}

func okxOptions(cfg *config.Config, logger *slog.Logger) []okx.Option {
	name := string(models.OKX)
	opts := []okx.Option{okx.WithLogger(logger)}
	if baseURL := cfg.ExchangeBaseURL(name); baseURL != "" {
		opts = append(opts, okx.WithBaseURL(baseURL))
	}
	if timeout := cfg.ExchangeTimeout(name); timeout > 0 {
		opts = append(opts, okx.WithTimeout(timeout))
	}
	if rps, burst := cfg.ExchangeRateLimit(name); rps > 0 {
		opts = append(opts, okx.WithRateLimit(rps, burst))
	}
	return opts
}
