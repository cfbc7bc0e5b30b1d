package registry

import (
	"fmt"
	"sync"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/ports"
)

// Factory builds a provider adapter from its unified configuration shape.
type Factory func(cfg domain.ProviderConfig) (ports.ProviderAdapter, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes an adapter factory available under its provider type
// (e.g. "openai", "ollama"). Adapters call this from init.
func Register(providerType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[providerType]; exists {
		panic(fmt.Sprintf("adapter factory %s already registered", providerType))
	}
	factories[providerType] = f
}

// Get retrieves the factory for a provider type.
func Get(providerType string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[providerType]
	if !ok {
		return nil, fmt.Errorf("no adapter factory registered for type %q", providerType)
	}
	return f, nil
}

// Types lists the registered provider types.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	return types
}
