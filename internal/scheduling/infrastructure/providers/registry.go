// Package providers wires calendar provider adapters behind circuit
// breakers and exposes them through a registry keyed by provider id.
package providers

import (
	"log/slog"
	"sync"

	"github.com/recruitflow/scheduler/internal/scheduling/application"
)

// Registry maps provider ids to calendar adapters. Registered providers are
// wrapped with a circuit breaker so one failing upstream cannot stall every
// scheduling request.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]application.CalendarProvider
	cfg       BreakerConfig
	logger    *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(cfg BreakerConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[string]application.CalendarProvider),
		cfg:       cfg,
		logger:    logger,
	}
}

// Register adds a provider adapter, wrapping it with breaker protection.
func (r *Registry) Register(provider application.CalendarProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = NewResilient(provider, r.cfg, r.logger)
}

// ProviderFor implements application.ProviderRegistry.
func (r *Registry) ProviderFor(providerID string) (application.CalendarProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[providerID]
	return p, ok
}

// IDs returns the registered provider ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}
