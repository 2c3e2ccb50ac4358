package perpdata

import (
	"maps"
	"slices"
	"sync"

	"github.com/quantfetch/perpdata/errors"
	"github.com/quantfetch/perpdata/models"
)

// SourceFactory constructs a ready-to-use market data source.
type SourceFactory func() MarketDataSource

// Registry maps exchange identifiers to source factories. It is safe for
// concurrent use. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[models.Exchange]SourceFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[models.Exchange]SourceFactory)}
}

// Register adds a factory for an exchange, refusing duplicates.
func (r *Registry) Register(exchange models.Exchange, factory SourceFactory) error {
	if factory == nil {
		return errors.NewInvalidArgument("source factory must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[exchange]; exists {
		return errors.NewInvalidArgumentf("exchange %q already registered", exchange)
	}
	r.factories[exchange] = factory
	return nil
}

// Replace adds or overwrites the factory for an exchange. Nil factories
// are ignored.
func (r *Registry) Replace(exchange models.Exchange, factory SourceFactory) {
	if factory == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[exchange] = factory
}

// Create builds a new source for the exchange.
func (r *Registry) Create(exchange models.Exchange) (MarketDataSource, error) {
	r.mu.RLock()
	factory, ok := r.factories[exchange]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewInvalidArgumentf("no source registered for exchange %q", exchange)
	}
	return factory(), nil
}

// Exchanges lists the registered exchanges in sorted order.
func (r *Registry) Exchanges() []models.Exchange {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exchanges := make([]models.Exchange, 0, len(r.factories))
	for exchange := range r.factories {
		exchanges = append(exchanges, exchange)
	}
	slices.Sort(exchanges)
	return exchanges
}

// Snapshot returns a copy of the factory table. Mutating the copy does not
// affect the registry.
func (r *Registry) Snapshot() map[models.Exchange]SourceFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.factories)
}
