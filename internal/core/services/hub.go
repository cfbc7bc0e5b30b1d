package services

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/ports"
	"github.com/nulzo/model-hub/internal/overlay"
)

// HubConfig wires a Hub. Adapters are the default (primary-key) instances;
// Factory builds per-entitlement instances for rotated credentials.
type HubConfig struct {
	Adapters map[domain.Provider]ports.ProviderAdapter
	Factory  ports.AdapterFactory
	KeyPools map[domain.Provider]*KeyPool
	Overlay  *overlay.Overlay
	Registry RegistryOptions
	Logger   *zap.Logger
}

// Hub composes the key pools, registry, router, and stream unifier into the
// per-request orchestration: pick an entitlement, bind an adapter, execute,
// attach cost, and feed qualifying failures back into learned availability.
type Hub struct {
	adapters map[domain.Provider]ports.ProviderAdapter
	keyPools map[domain.Provider]*KeyPool
	registry *Registry
	router   Router
	factory  ports.AdapterFactory
	overlay  *overlay.Overlay
	logger   *zap.Logger

	mu    sync.Mutex
	bound map[string]ports.ProviderAdapter // factory results per key fingerprint
}

func NewHub(cfg HubConfig) (*Hub, error) {
	if len(cfg.Adapters) == 0 && cfg.Factory == nil {
		return nil, domain.ValidationError("at least one provider adapter or a factory is required")
	}
	if cfg.Overlay == nil {
		cfg.Overlay = overlay.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Registry.Logger == nil {
		cfg.Registry.Logger = cfg.Logger
	}
	h := &Hub{
		adapters: cfg.Adapters,
		keyPools: cfg.KeyPools,
		factory:  cfg.Factory,
		overlay:  cfg.Overlay,
		logger:   cfg.Logger,
		bound:    make(map[string]ports.ProviderAdapter),
	}
	h.registry = NewRegistry(cfg.Adapters, cfg.Factory, cfg.Overlay, cfg.Registry)
	return h, nil
}

// Registry exposes the hub's model registry to the transport layer.
func (h *Hub) Registry() ports.ModelRegistry {
	return h.registry
}

func (h *Hub) ListModels(ctx context.Context, opts *domain.ListOptions) ([]domain.ModelMetadata, error) {
	return h.registry.List(ctx, opts)
}

func (h *Hub) ListModelRecords(ctx context.Context, opts *domain.ListOptions) ([]domain.ModelRecord, error) {
	return h.registry.ListRecords(ctx, opts)
}

// Resolve lists records under the caller's entitlement and routes them.
func (h *Hub) Resolve(ctx context.Context, opts *domain.ListOptions, req domain.ResolutionRequest) (domain.ResolvedModel, error) {
	records, err := h.registry.ListRecords(ctx, opts)
	if err != nil {
		return domain.ResolvedModel{}, err
	}
	return h.router.Resolve(records, req)
}

func (h *Hub) Generate(ctx context.Context, in domain.GenerateInput) (domain.GenerateOutput, error) {
	if err := validateGenerateInput(in); err != nil {
		return domain.GenerateOutput{}, err
	}
	adapter, entitlement, err := h.adapterForCall(in.Provider)
	if err != nil {
		return domain.GenerateOutput{}, err
	}
	out, err := adapter.Generate(ctx, in)
	if err != nil {
		h.registry.LearnModelUnavailable(entitlement, in.Provider, in.Model, err)
		return domain.GenerateOutput{}, err
	}
	if cost := EstimateCost(h.overlay.Prices(in.Provider, in.Model), out.Usage); cost != nil {
		out.Cost = cost
	}
	out.KeyFingerprint = entitlement.Scope()
	return out, nil
}

func (h *Hub) StreamGenerate(ctx context.Context, in domain.GenerateInput) (<-chan domain.StreamChunk, error) {
	if err := validateGenerateInput(in); err != nil {
		return nil, err
	}
	adapter, entitlement, err := h.adapterForCall(in.Provider)
	if err != nil {
		return nil, err
	}
	raw, err := adapter.StreamGenerate(ctx, in)
	if err != nil {
		h.registry.LearnModelUnavailable(entitlement, in.Provider, in.Model, err)
		return nil, err
	}
	unified := UnifyStream(ctx, h.overlay.Prices(in.Provider, in.Model), raw)
	return h.observeStream(ctx, entitlement, in, unified), nil
}

// observeStream forwards the unified stream and feeds a terminal error
// chunk from a completed call into learned availability. A cancelled
// context is the caller's doing, not the provider's, and is never learned.
func (h *Hub) observeStream(ctx context.Context, entitlement *domain.EntitlementContext, in domain.GenerateInput, unified <-chan domain.StreamChunk) <-chan domain.StreamChunk {
	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		for chunk := range unified {
			if chunk.Terminal() {
				chunk.KeyFingerprint = entitlement.Scope()
			}
			if chunk.Type == domain.StreamChunkError && chunk.Error != nil && ctx.Err() == nil {
				h.registry.LearnModelUnavailable(entitlement, in.Provider, in.Model, &domain.Error{
					Kind:     chunk.Error.Kind,
					Message:  chunk.Error.Message,
					Provider: in.Provider,
				})
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Optional capability calls. The type assertion is the structural probe:
// support is a property of the adapter value, never of provider identity,
// and absence is answered locally as Unsupported before any network call.

func (h *Hub) GenerateImage(ctx context.Context, in domain.ImageGenerateInput) (domain.ImageGenerateOutput, error) {
	adapter, entitlement, err := h.adapterForCall(in.Provider)
	if err != nil {
		return domain.ImageGenerateOutput{}, err
	}
	gen, ok := adapter.(ports.ImageGenerator)
	if !ok {
		return domain.ImageGenerateOutput{}, domain.UnsupportedError(in.Provider, "image generation")
	}
	out, err := gen.GenerateImage(ctx, in)
	if err != nil {
		h.registry.LearnModelUnavailable(entitlement, in.Provider, in.Model, err)
	}
	out.KeyFingerprint = entitlement.Scope()
	return out, err
}

func (h *Hub) GenerateMesh(ctx context.Context, in domain.MeshGenerateInput) (domain.MeshGenerateOutput, error) {
	adapter, entitlement, err := h.adapterForCall(in.Provider)
	if err != nil {
		return domain.MeshGenerateOutput{}, err
	}
	gen, ok := adapter.(ports.MeshGenerator)
	if !ok {
		return domain.MeshGenerateOutput{}, domain.UnsupportedError(in.Provider, "mesh generation")
	}
	out, err := gen.GenerateMesh(ctx, in)
	if err != nil {
		h.registry.LearnModelUnavailable(entitlement, in.Provider, in.Model, err)
	}
	out.KeyFingerprint = entitlement.Scope()
	return out, err
}

func (h *Hub) Transcribe(ctx context.Context, in domain.TranscribeInput) (domain.TranscribeOutput, error) {
	adapter, entitlement, err := h.adapterForCall(in.Provider)
	if err != nil {
		return domain.TranscribeOutput{}, err
	}
	tr, ok := adapter.(ports.Transcriber)
	if !ok {
		return domain.TranscribeOutput{}, domain.UnsupportedError(in.Provider, "transcription")
	}
	out, err := tr.Transcribe(ctx, in)
	if err != nil {
		h.registry.LearnModelUnavailable(entitlement, in.Provider, in.Model, err)
	}
	out.KeyFingerprint = entitlement.Scope()
	return out, err
}

// adapterForCall picks the entitlement for this call. With a key pool, the
// rotated credential is bound to an adapter through the factory, memoized
// per fingerprint; without one, the default adapter serves the call.
func (h *Hub) adapterForCall(provider domain.Provider) (ports.ProviderAdapter, *domain.EntitlementContext, error) {
	pool := h.keyPools[provider]
	entitlement := pool.Entitlement()
	if entitlement == nil || h.factory == nil {
		adapter, ok := h.adapters[provider]
		if !ok {
			return nil, nil, domain.NewError(domain.ErrValidation, provider, "provider not configured")
		}
		return adapter, entitlement, nil
	}

	h.mu.Lock()
	adapter, ok := h.bound[entitlement.APIKeyFingerprint]
	h.mu.Unlock()
	if ok {
		return adapter, entitlement, nil
	}

	adapter, err := h.factory(provider, entitlement)
	if err != nil {
		return nil, nil, err
	}
	h.mu.Lock()
	h.bound[entitlement.APIKeyFingerprint] = adapter
	h.mu.Unlock()
	return adapter, entitlement, nil
}

func validateGenerateInput(in domain.GenerateInput) error {
	if strings.TrimSpace(in.Model) == "" {
		return domain.ValidationError("model is required")
	}
	if len(in.Messages) == 0 {
		return domain.ValidationError("at least one message is required")
	}
	if in.Provider == "" {
		return domain.ValidationError("provider is required")
	}
	return nil
}
