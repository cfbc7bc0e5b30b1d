package factory

import (
	"fmt"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/ports"
	"github.com/nulzo/model-hub/internal/registry"
)

// Build creates one adapter instance from its configuration by looking up
// the registered factory for its type.
func Build(cfg domain.ProviderConfig) (ports.ProviderAdapter, error) {
	factoryFunc, err := registry.Get(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("factory lookup failed for type %s: %w", cfg.Type, err)
	}
	return factoryFunc(cfg)
}

// Defaults builds the primary-credential adapter set, one per enabled
// provider config.
func Defaults(cfgs []domain.ProviderConfig) (map[domain.Provider]ports.ProviderAdapter, error) {
	adapters := make(map[domain.Provider]ports.ProviderAdapter, len(cfgs))
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		adapter, err := Build(cfg)
		if err != nil {
			return nil, err
		}
		adapters[cfg.ProviderID()] = adapter
	}
	return adapters, nil
}

// Entitled returns an adapter factory that rebinds a provider's config to
// the credential carried by the call's entitlement. The hub memoizes the
// results per key fingerprint.
func Entitled(cfgs []domain.ProviderConfig) ports.AdapterFactory {
	byProvider := make(map[domain.Provider]domain.ProviderConfig, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.Enabled {
			byProvider[cfg.ProviderID()] = cfg
		}
	}
	return func(provider domain.Provider, entitlement *domain.EntitlementContext) (ports.ProviderAdapter, error) {
		cfg, ok := byProvider[provider]
		if !ok {
			return nil, domain.NewError(domain.ErrValidation, provider, "provider not configured")
		}
		if entitlement != nil && entitlement.APIKey != "" {
			cfg.APIKey = entitlement.APIKey
		}
		return Build(cfg)
	}
}
