package overlay

import (
	"testing"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() *Overlay {
	return New([]Entry{
		{
			ID:          "gpt-4o",
			Provider:    domain.ProviderOpenAI,
			DisplayName: "GPT-4o",
			Capabilities: domain.ModelCapabilities{
				Text: true, Vision: true, ToolUse: true, Streaming: true,
			},
			ContextWindow: 128000,
			TokenPrices:   &domain.TokenPrices{Input: 2.5, Output: 10},
		},
		{
			ID:          "gpt-4o-mini",
			Provider:    domain.ProviderOpenAI,
			DisplayName: "GPT-4o mini",
			Capabilities: domain.ModelCapabilities{
				Text: true, Vision: true, ToolUse: true, Streaming: true,
			},
			ContextWindow: 128000,
			TokenPrices:   &domain.TokenPrices{Input: 0.15, Output: 0.6},
		},
		{
			ID:       "claude-3-5-sonnet",
			Provider: domain.ProviderAnthropic,
			Capabilities: domain.ModelCapabilities{
				Text: true, ToolUse: true,
			},
		},
	})
}

func TestFindLongestPrefix(t *testing.T) {
	o := fixture()

	// A dated snapshot id must resolve to the most specific curated prefix.
	e := o.Find(domain.ProviderOpenAI, "gpt-4o-mini-2024-07-18")
	require.NotNil(t, e)
	assert.Equal(t, "gpt-4o-mini", e.ID)

	e = o.Find(domain.ProviderOpenAI, "gpt-4o-2024-08-06")
	require.NotNil(t, e)
	assert.Equal(t, "gpt-4o", e.ID)

	// Exact match.
	e = o.Find(domain.ProviderOpenAI, "gpt-4o")
	require.NotNil(t, e)
	assert.Equal(t, "gpt-4o", e.ID)

	// Provider namespace prefix is stripped before matching.
	e = o.Find(domain.ProviderOpenAI, "openai/gpt-4o-mini-2024-07-18")
	require.NotNil(t, e)
	assert.Equal(t, "gpt-4o-mini", e.ID)

	// Provider scoping: an openai id never matches an anthropic entry.
	assert.Nil(t, o.Find(domain.ProviderAnthropic, "gpt-4o"))
	assert.Nil(t, o.Find(domain.ProviderOpenAI, "claude-3-5-sonnet"))
}

func TestApplyMerge(t *testing.T) {
	o := fixture()

	meta := o.Apply(domain.ModelMetadata{
		ID:       "gpt-4o-mini-2024-07-18",
		Provider: domain.ProviderOpenAI,
	})
	assert.Equal(t, "GPT-4o mini", meta.DisplayName)
	assert.Equal(t, 128000, meta.ContextWindow)
	require.NotNil(t, meta.TokenPrices)
	assert.Equal(t, 0.15, meta.TokenPrices.Input)

	// Live-reported fields win over the overlay...
	meta = o.Apply(domain.ModelMetadata{
		ID:            "gpt-4o",
		Provider:      domain.ProviderOpenAI,
		DisplayName:   "GPT-4o (upstream)",
		ContextWindow: 256000,
	})
	assert.Equal(t, "GPT-4o (upstream)", meta.DisplayName)
	assert.Equal(t, 256000, meta.ContextWindow)

	// ...except pricing, which is always overlay-sourced.
	require.NotNil(t, meta.TokenPrices)
	assert.Equal(t, 2.5, meta.TokenPrices.Input)

	// Unknown model passes through untouched.
	raw := domain.ModelMetadata{ID: "mystery-model", Provider: domain.ProviderOpenAI}
	assert.Equal(t, raw, o.Apply(raw))
}

func TestDegradedListing(t *testing.T) {
	o := fixture()

	listing := o.Listing(domain.ProviderOpenAI)
	require.Len(t, listing, 2)
	for _, m := range listing {
		assert.Equal(t, domain.AvailabilityInferred, m.Confidence)
		assert.Equal(t, domain.ProviderOpenAI, m.Provider)
	}

	assert.Empty(t, o.Listing(domain.ProviderXAI))
}

func TestDefaultOverlayLoads(t *testing.T) {
	o := Default()
	require.NotNil(t, o)

	e := o.Find(domain.ProviderOpenAI, "gpt-4o-mini-2024-07-18")
	require.NotNil(t, e)
	assert.Equal(t, "gpt-4o-mini", e.ID)
}
