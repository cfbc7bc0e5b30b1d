package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/ports"
	"github.com/nulzo/model-hub/internal/overlay"
)

type fakeAdapter struct {
	provider domain.Provider
	models   []domain.ModelMetadata
	err      error
	fetches  atomic.Int64
	block    chan struct{}
}

func (f *fakeAdapter) Provider() domain.Provider { return f.provider }

func (f *fakeAdapter) ListModels(ctx context.Context) ([]domain.ModelMetadata, error) {
	f.fetches.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.ModelMetadata, len(f.models))
	copy(out, f.models)
	return out, nil
}

func (f *fakeAdapter) Generate(ctx context.Context, in domain.GenerateInput) (domain.GenerateOutput, error) {
	return domain.GenerateOutput{}, errors.New("not implemented")
}

func (f *fakeAdapter) StreamGenerate(ctx context.Context, in domain.GenerateInput) (<-chan domain.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func newTestRegistry(adapter *fakeAdapter, ov *overlay.Overlay, opts RegistryOptions) *Registry {
	adapters := map[domain.Provider]ports.ProviderAdapter{
		adapter.provider: adapter,
	}
	return NewRegistry(adapters, nil, ov, opts)
}

func openaiListing() []domain.ModelMetadata {
	return []domain.ModelMetadata{
		{
			ID:          "gpt-4o",
			DisplayName: "GPT-4o",
			Provider:    domain.ProviderOpenAI,
			Capabilities: domain.ModelCapabilities{
				Text: true, Vision: true, ToolUse: true, Streaming: true,
			},
		},
		{
			ID:          "gpt-4o-mini",
			DisplayName: "GPT-4o mini",
			Provider:    domain.ProviderOpenAI,
			Capabilities: domain.ModelCapabilities{
				Text: true, ToolUse: true, Streaming: true,
			},
		},
	}
}

func TestRegistryCachesListings(t *testing.T) {
	adapter := &fakeAdapter{provider: domain.ProviderOpenAI, models: openaiListing()}
	registry := newTestRegistry(adapter, overlay.New(nil), RegistryOptions{})

	first, err := registry.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := registry.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), adapter.fetches.Load())
}

func TestRegistryRefreshBypassesCache(t *testing.T) {
	adapter := &fakeAdapter{provider: domain.ProviderOpenAI, models: openaiListing()}
	registry := newTestRegistry(adapter, overlay.New(nil), RegistryOptions{})

	_, err := registry.List(context.Background(), nil)
	require.NoError(t, err)

	_, err = registry.List(context.Background(), &domain.ListOptions{Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), adapter.fetches.Load())
}

func TestRegistryCoalescesConcurrentFetches(t *testing.T) {
	adapter := &fakeAdapter{
		provider: domain.ProviderOpenAI,
		models:   openaiListing(),
		block:    make(chan struct{}),
	}
	registry := newTestRegistry(adapter, overlay.New(nil), RegistryOptions{})

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]domain.ModelMetadata, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = registry.List(context.Background(), nil)
		}(i)
	}

	// Let every caller reach the registry before the fetch completes.
	time.Sleep(50 * time.Millisecond)
	close(adapter.block)
	wg.Wait()

	assert.Equal(t, int64(1), adapter.fetches.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 2)
	}
}

func TestRegistryStaleFallbackOnFetchFailure(t *testing.T) {
	adapter := &fakeAdapter{provider: domain.ProviderOpenAI, models: openaiListing()}
	registry := newTestRegistry(adapter, overlay.New(nil), RegistryOptions{
		ListTTL: time.Nanosecond,
	})

	warm, err := registry.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, warm, 2)

	// Cache is expired and the upstream is down; the last good listing
	// still serves.
	time.Sleep(time.Millisecond)
	adapter.err = errors.New("upstream down")

	stale, err := registry.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, warm, stale)
	assert.Equal(t, int64(2), adapter.fetches.Load())
}

func TestRegistryDegradedOverlayFallback(t *testing.T) {
	adapter := &fakeAdapter{
		provider: domain.ProviderOpenAI,
		err:      errors.New("upstream down"),
	}
	ov := overlay.New([]overlay.Entry{
		{
			ID:          "gpt-4o",
			Provider:    domain.ProviderOpenAI,
			DisplayName: "GPT-4o",
			Capabilities: domain.ModelCapabilities{
				Text: true, Vision: true, ToolUse: true, Streaming: true,
			},
			TokenPrices: &domain.TokenPrices{Input: 2.5, Output: 10},
		},
	})
	registry := newTestRegistry(adapter, ov, RegistryOptions{})

	models, err := registry.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "gpt-4o", models[0].ID)
	assert.Equal(t, domain.AvailabilityInferred, models[0].Confidence)

	records, err := registry.ListRecords(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "openai:gpt-4o", records[0].ID)
	assert.Equal(t, domain.AvailabilityInferred, records[0].Availability.Confidence)
	assert.Empty(t, records[0].Availability.LastVerifiedAt)
	require.NotNil(t, records[0].Pricing)
	assert.InDelta(t, 2.5, records[0].Pricing.InputPer1M, 1e-9)
}

func TestRegistryRecordShape(t *testing.T) {
	adapter := &fakeAdapter{provider: domain.ProviderOpenAI, models: openaiListing()}
	ov := overlay.New([]overlay.Entry{
		{
			ID:          "gpt-4o",
			Provider:    domain.ProviderOpenAI,
			TokenPrices: &domain.TokenPrices{Input: 2.5, Output: 10},
		},
	})
	registry := newTestRegistry(adapter, ov, RegistryOptions{})

	records, err := registry.ListRecords(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := make(map[string]domain.ModelRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	full, ok := byID["openai:gpt-4o"]
	require.True(t, ok)
	assert.Equal(t, domain.ProviderOpenAI, full.Provider)
	assert.Equal(t, "gpt-4o", full.ProviderModelID)
	assert.True(t, full.Availability.Entitled)
	assert.Equal(t, domain.AvailabilityListed, full.Availability.Confidence)
	assert.NotEmpty(t, full.Availability.LastVerifiedAt)
	require.NotNil(t, full.Pricing)
	assert.Equal(t, "overlay", full.Pricing.Source)
	assert.Equal(t, "USD", full.Pricing.Currency)

	// No curated entry means no pricing at all, never a zero price.
	mini, ok := byID["openai:gpt-4o-mini"]
	require.True(t, ok)
	assert.Nil(t, mini.Pricing)
}

func TestLearnModelUnavailableScopedToFingerprint(t *testing.T) {
	adapter := &fakeAdapter{provider: domain.ProviderOpenAI, models: openaiListing()}
	registry := newTestRegistry(adapter, overlay.New(nil), RegistryOptions{})

	keyOne := &domain.EntitlementContext{Provider: domain.ProviderOpenAI, APIKey: "sk-one"}
	keyTwo := &domain.EntitlementContext{Provider: domain.ProviderOpenAI, APIKey: "sk-two"}

	notFound := domain.NewError(domain.ErrProviderNotFound, domain.ProviderOpenAI, "model does not exist")
	registry.LearnModelUnavailable(keyOne, domain.ProviderOpenAI, "gpt-4o", notFound)

	recordFor := func(ent *domain.EntitlementContext) domain.ModelRecord {
		records, err := registry.ListRecords(context.Background(), &domain.ListOptions{Entitlement: ent})
		require.NoError(t, err)
		for _, rec := range records {
			if rec.ProviderModelID == "gpt-4o" {
				return rec
			}
		}
		t.Fatal("gpt-4o not listed")
		return domain.ModelRecord{}
	}

	learned := recordFor(keyOne)
	assert.False(t, learned.Availability.Entitled)
	assert.Equal(t, domain.AvailabilityLearned, learned.Availability.Confidence)
	assert.Equal(t, "model does not exist", learned.Availability.Reason)

	// Another credential and the anonymous scope are unaffected.
	assert.True(t, recordFor(keyTwo).Availability.Entitled)
	assert.True(t, recordFor(nil).Availability.Entitled)
}

func TestLearnModelUnavailableExpires(t *testing.T) {
	adapter := &fakeAdapter{provider: domain.ProviderOpenAI, models: openaiListing()}
	registry := newTestRegistry(adapter, overlay.New(nil), RegistryOptions{
		LearnedTTL: time.Nanosecond,
	})

	notFound := domain.NewError(domain.ErrProviderNotFound, domain.ProviderOpenAI, "model does not exist")
	registry.LearnModelUnavailable(nil, domain.ProviderOpenAI, "gpt-4o", notFound)
	time.Sleep(time.Millisecond)

	records, err := registry.ListRecords(context.Background(), nil)
	require.NoError(t, err)
	for _, rec := range records {
		assert.True(t, rec.Availability.Entitled, rec.ID)
	}
}

func TestLearnModelUnavailableIgnoresUnrelatedErrors(t *testing.T) {
	adapter := &fakeAdapter{provider: domain.ProviderOpenAI, models: openaiListing()}
	registry := newTestRegistry(adapter, overlay.New(nil), RegistryOptions{})

	cases := []error{
		nil,
		errors.New("plain failure"),
		domain.NewError(domain.ErrProviderRateLimit, domain.ProviderOpenAI, "slow down"),
		domain.NewError(domain.ErrProviderUnavailable, domain.ProviderOpenAI, "outage"),
		&domain.Error{Kind: domain.ErrUnknown, UpstreamStatus: 500, Message: "boom"},
	}
	for _, err := range cases {
		registry.LearnModelUnavailable(nil, domain.ProviderOpenAI, "gpt-4o", err)
	}

	records, listErr := registry.ListRecords(context.Background(), nil)
	require.NoError(t, listErr)
	for _, rec := range records {
		assert.True(t, rec.Availability.Entitled, rec.ID)
	}
}

func TestLearnModelUnavailableFromUpstreamStatus(t *testing.T) {
	adapter := &fakeAdapter{provider: domain.ProviderOpenAI, models: openaiListing()}
	registry := newTestRegistry(adapter, overlay.New(nil), RegistryOptions{})

	forbidden := &domain.Error{
		Kind:           domain.ErrProviderAuth,
		Provider:       domain.ProviderOpenAI,
		UpstreamStatus: 403,
		Message:        "key lacks access to this model",
	}
	registry.LearnModelUnavailable(nil, domain.ProviderOpenAI, "gpt-4o", forbidden)

	records, err := registry.ListRecords(context.Background(), nil)
	require.NoError(t, err)
	for _, rec := range records {
		if rec.ProviderModelID == "gpt-4o" {
			assert.False(t, rec.Availability.Entitled)
			assert.Equal(t, domain.AvailabilityLearned, rec.Availability.Confidence)
		}
	}
}
