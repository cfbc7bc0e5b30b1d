package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/ports"
	"github.com/nulzo/model-hub/internal/overlay"
)

const (
	defaultListTTL = 30 * time.Minute
	// Learned downgrades expire well before the listing cache so a key that
	// regains access recovers without a manual refresh.
	defaultLearnedTTL = 15 * time.Minute
)

type cacheKey struct {
	Provider domain.Provider
	Scope    string
}

func (k cacheKey) String() string {
	return string(k.Provider) + "/" + k.Scope
}

type cacheEntry struct {
	data      []domain.ModelMetadata
	fetchedAt time.Time
	expires   time.Time
	degraded  bool
}

type learnedKey struct {
	cacheKey
	ModelID string
}

type learnedEntry struct {
	expires time.Time
	reason  string
}

// RegistryOptions tunes cache behavior; zero values pick defaults.
type RegistryOptions struct {
	ListTTL    time.Duration
	LearnedTTL time.Duration
	Logger     *zap.Logger
}

// Registry caches per-provider listings merged with the curated overlay and
// tracks learned unavailability per entitlement fingerprint. Entries expire
// by timestamp comparison only; stale data is kept as a fallback for
// upstream outages.
type Registry struct {
	adapters map[domain.Provider]ports.ProviderAdapter
	factory  ports.AdapterFactory
	overlay  *overlay.Overlay
	listTTL  time.Duration
	learnTTL time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	cache   map[cacheKey]cacheEntry
	learned map[learnedKey]learnedEntry
	flight  singleflight.Group
}

func NewRegistry(adapters map[domain.Provider]ports.ProviderAdapter, factory ports.AdapterFactory, ov *overlay.Overlay, opts RegistryOptions) *Registry {
	if opts.ListTTL == 0 {
		opts.ListTTL = defaultListTTL
	}
	if opts.LearnedTTL == 0 {
		opts.LearnedTTL = defaultLearnedTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{
		adapters: adapters,
		factory:  factory,
		overlay:  ov,
		listTTL:  opts.ListTTL,
		learnTTL: opts.LearnedTTL,
		logger:   opts.Logger,
		cache:    make(map[cacheKey]cacheEntry),
		learned:  make(map[learnedKey]learnedEntry),
	}
}

func (r *Registry) List(ctx context.Context, opts *domain.ListOptions) ([]domain.ModelMetadata, error) {
	entries := r.entriesForProviders(ctx, opts)
	results := make([]domain.ModelMetadata, 0)
	for _, entry := range entries {
		results = append(results, entry.data...)
	}
	sortMetadata(results)
	return results, nil
}

func (r *Registry) ListRecords(ctx context.Context, opts *domain.ListOptions) ([]domain.ModelRecord, error) {
	entries := r.entriesForProviders(ctx, opts)
	var entitlement *domain.EntitlementContext
	if opts != nil {
		entitlement = opts.Entitlement
	}
	results := make([]domain.ModelRecord, 0)
	for provider, entry := range entries {
		for _, meta := range entry.data {
			results = append(results, r.recordFromMetadata(meta, provider, entry, entitlement))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Provider == results[j].Provider {
			return results[i].DisplayName < results[j].DisplayName
		}
		return results[i].Provider < results[j].Provider
	})
	return results, nil
}

// LearnModelUnavailable records a fingerprint-scoped downgrade when the
// error points at the model itself; anything else is a no-op. The learned
// map is separate from the listing cache so per-fingerprint views stay a
// pure filter at read time.
func (r *Registry) LearnModelUnavailable(entitlement *domain.EntitlementContext, provider domain.Provider, modelID string, err error) {
	reason, ok := learnReason(err)
	if !ok {
		return
	}
	key := learnedKey{
		cacheKey: cacheKey{Provider: provider, Scope: entitlement.Scope()},
		ModelID:  modelID,
	}
	r.mu.Lock()
	r.learned[key] = learnedEntry{
		expires: time.Now().Add(r.learnTTL),
		reason:  reason,
	}
	r.mu.Unlock()
	r.logger.Info("learned model unavailable",
		zap.String("provider", string(provider)),
		zap.String("model", modelID),
		zap.String("scope", entitlement.Scope()),
		zap.String("reason", reason),
	)
}

// learnReason decides whether an error implicates the model itself: a
// classified not-found or validation failure, or an upstream 400/403/404
// referencing the request.
func learnReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var hubErr *domain.Error
	if !errors.As(err, &hubErr) {
		return "", false
	}
	if hubErr.Kind == domain.ErrProviderNotFound || hubErr.Kind == domain.ErrValidation {
		return hubErr.Message, true
	}
	switch hubErr.UpstreamStatus {
	case 400, 403, 404:
		return hubErr.Message, true
	}
	return "", false
}

func (r *Registry) entriesForProviders(ctx context.Context, opts *domain.ListOptions) map[domain.Provider]cacheEntry {
	providers := r.resolveProviders(opts)
	results := make(map[domain.Provider]cacheEntry, len(providers))
	for _, provider := range providers {
		results[provider] = r.entryForProvider(ctx, provider, opts)
	}
	return results
}

func (r *Registry) resolveProviders(opts *domain.ListOptions) []domain.Provider {
	if opts != nil && len(opts.Providers) > 0 {
		return opts.Providers
	}
	if opts != nil && opts.Entitlement != nil && opts.Entitlement.Provider != "" {
		return []domain.Provider{opts.Entitlement.Provider}
	}
	providers := make([]domain.Provider, 0, len(r.adapters))
	for provider := range r.adapters {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

// entryForProvider serves one provider independently: warm cache wins,
// misses coalesce into a single upstream fetch, and a failed fetch degrades
// to the last good cache or an overlay-only listing. It never returns an
// error; degradation is the failure mode.
func (r *Registry) entryForProvider(ctx context.Context, provider domain.Provider, opts *domain.ListOptions) cacheEntry {
	refresh := opts != nil && opts.Refresh
	var entitlement *domain.EntitlementContext
	if opts != nil {
		entitlement = opts.Entitlement
	}
	key := cacheKey{Provider: provider, Scope: entitlement.Scope()}

	if !refresh {
		if entry, ok := r.freshEntry(key); ok {
			return entry
		}
	}

	// Concurrent misses for the same key share one fetch.
	v, err, _ := r.flight.Do(key.String(), func() (interface{}, error) {
		return r.fetchAndCache(ctx, provider, entitlement, key)
	})
	if err == nil {
		return v.(cacheEntry)
	}

	r.logger.Warn("provider listing fetch failed, degrading",
		zap.String("provider", string(provider)),
		zap.Error(err),
	)
	if entry, ok := r.anyEntry(key); ok {
		return entry
	}
	return cacheEntry{
		data:      r.overlay.Listing(provider),
		fetchedAt: time.Time{},
		degraded:  true,
	}
}

func (r *Registry) freshEntry(key cacheKey) (cacheEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return cacheEntry{}, false
	}
	return entry, true
}

// anyEntry returns the last good cache even past its TTL.
func (r *Registry) anyEntry(key cacheKey) (cacheEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	return entry, ok
}

func (r *Registry) fetchAndCache(ctx context.Context, provider domain.Provider, entitlement *domain.EntitlementContext, key cacheKey) (cacheEntry, error) {
	adapter, err := r.adapterFor(provider, entitlement)
	if err != nil {
		return cacheEntry{}, err
	}
	models, err := adapter.ListModels(ctx)
	if err != nil {
		return cacheEntry{}, err
	}
	for i, m := range models {
		models[i] = r.overlay.Apply(m)
	}
	now := time.Now()
	entry := cacheEntry{
		data:      models,
		fetchedAt: now,
		expires:   now.Add(r.listTTL),
	}
	r.mu.Lock()
	r.cache[key] = entry
	r.mu.Unlock()
	return entry, nil
}

func (r *Registry) adapterFor(provider domain.Provider, entitlement *domain.EntitlementContext) (ports.ProviderAdapter, error) {
	if r.factory != nil {
		return r.factory(provider, entitlement)
	}
	if adapter, ok := r.adapters[provider]; ok {
		return adapter, nil
	}
	return nil, domain.NewError(domain.ErrValidation, provider, "provider not configured")
}

func (r *Registry) learnedStatus(provider domain.Provider, entitlement *domain.EntitlementContext, modelID string) (learnedEntry, bool) {
	key := learnedKey{
		cacheKey: cacheKey{Provider: provider, Scope: entitlement.Scope()},
		ModelID:  modelID,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.learned[key]
	if !ok {
		return learnedEntry{}, false
	}
	if time.Now().After(entry.expires) {
		delete(r.learned, key)
		return learnedEntry{}, false
	}
	return entry, true
}

func (r *Registry) recordFromMetadata(meta domain.ModelMetadata, provider domain.Provider, entry cacheEntry, entitlement *domain.EntitlementContext) domain.ModelRecord {
	modalities := domain.ModelModalities{
		Text:     meta.Capabilities.Text,
		Vision:   meta.Capabilities.Vision,
		AudioIn:  meta.Capabilities.AudioIn,
		AudioOut: meta.Capabilities.AudioOut,
		ImageOut: meta.Capabilities.ImageOut,
		VideoIn:  meta.Capabilities.VideoIn,
		VideoOut: meta.Capabilities.VideoOut,
	}
	features := domain.ModelFeatures{
		Tools:      meta.Capabilities.ToolUse,
		JSONMode:   meta.Capabilities.StructuredOutput,
		JSONSchema: meta.Capabilities.StructuredOutput,
		Streaming:  meta.Capabilities.Streaming,
		Batch:      meta.Capabilities.Batch,
	}
	var limits *domain.ModelLimits
	if meta.ContextWindow > 0 || meta.MaxOutput > 0 {
		limits = &domain.ModelLimits{
			ContextTokens:   meta.ContextWindow,
			MaxOutputTokens: meta.MaxOutput,
		}
	}
	var pricing *domain.ModelPricing
	if meta.TokenPrices != nil {
		pricing = &domain.ModelPricing{
			Currency:    "USD",
			InputPer1M:  meta.TokenPrices.Input,
			OutputPer1M: meta.TokenPrices.Output,
			Source:      "overlay",
		}
	}
	var tags []string
	if meta.InPreview {
		tags = append(tags, "preview")
	}
	if meta.Deprecated {
		tags = append(tags, "deprecated")
	}

	confidence := domain.AvailabilityListed
	if entry.degraded || meta.Confidence == domain.AvailabilityInferred {
		confidence = domain.AvailabilityInferred
	}
	availability := domain.ModelAvailability{
		Entitled:   true,
		Confidence: confidence,
	}
	if !entry.fetchedAt.IsZero() {
		availability.LastVerifiedAt = entry.fetchedAt.UTC().Format(time.RFC3339)
	}
	if learned, ok := r.learnedStatus(provider, entitlement, meta.ID); ok {
		availability.Entitled = false
		availability.Confidence = domain.AvailabilityLearned
		availability.Reason = learned.reason
	}

	return domain.ModelRecord{
		ID:              string(provider) + ":" + meta.ID,
		Provider:        provider,
		ProviderModelID: meta.ID,
		DisplayName:     meta.DisplayName,
		Modalities:      modalities,
		Features:        features,
		Limits:          limits,
		Pricing:         pricing,
		Tags:            tags,
		Availability:    availability,
	}
}

func sortMetadata(models []domain.ModelMetadata) {
	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider == models[j].Provider {
			return models[i].DisplayName < models[j].DisplayName
		}
		return models[i].Provider < models[j].Provider
	})
}
