package services

import (
	"net/http"
	"testing"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entitledRecord(id string, mutate func(*domain.ModelRecord)) domain.ModelRecord {
	r := domain.ModelRecord{
		ID:              "openai:" + id,
		Provider:        domain.ProviderOpenAI,
		ProviderModelID: id,
		DisplayName:     id,
		Modalities:      domain.ModelModalities{Text: true},
		Features:        domain.ModelFeatures{Streaming: true},
		Availability: domain.ModelAvailability{
			Entitled:   true,
			Confidence: domain.AvailabilityListed,
		},
	}
	if mutate != nil {
		mutate(&r)
	}
	return r
}

func TestResolveDropsNonEntitled(t *testing.T) {
	records := []domain.ModelRecord{
		entitledRecord("gpt-4o", func(r *domain.ModelRecord) {
			r.Availability.Entitled = false
			r.Availability.Confidence = domain.AvailabilityLearned
		}),
		entitledRecord("gpt-4o-mini", nil),
	}

	resolved, err := Router{}.Resolve(records, domain.ResolutionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", resolved.Primary.ProviderModelID)
	assert.Empty(t, resolved.Fallback)

	assert.True(t, resolved.Primary.Availability.Entitled)
	for _, r := range resolved.Fallback {
		assert.True(t, r.Availability.Entitled)
	}
}

func TestResolveFeatureConstraints(t *testing.T) {
	records := []domain.ModelRecord{
		entitledRecord("plain", nil),
		entitledRecord("tooled", func(r *domain.ModelRecord) { r.Features.Tools = true }),
		entitledRecord("json", func(r *domain.ModelRecord) { r.Features.JSONMode = true }),
		entitledRecord("seeing", func(r *domain.ModelRecord) { r.Modalities.Vision = true }),
	}

	resolved, err := Router{}.Resolve(records, domain.ResolutionRequest{
		Constraints: domain.ModelConstraints{RequireTools: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "tooled", resolved.Primary.ProviderModelID)
	assert.Empty(t, resolved.Fallback)

	resolved, err = Router{}.Resolve(records, domain.ResolutionRequest{
		Constraints: domain.ModelConstraints{RequireJSON: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "json", resolved.Primary.ProviderModelID)

	resolved, err = Router{}.Resolve(records, domain.ResolutionRequest{
		Constraints: domain.ModelConstraints{RequireVision: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "seeing", resolved.Primary.ProviderModelID)
}

func TestResolveVideoRequiresOutput(t *testing.T) {
	records := []domain.ModelRecord{
		entitledRecord("watcher", func(r *domain.ModelRecord) { r.Modalities.VideoIn = true }),
		entitledRecord("maker", func(r *domain.ModelRecord) { r.Modalities.VideoOut = true }),
	}

	// Video input alone does not satisfy the constraint.
	resolved, err := Router{}.Resolve(records, domain.ResolutionRequest{
		Constraints: domain.ModelConstraints{RequireVideo: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "maker", resolved.Primary.ProviderModelID)
	assert.Empty(t, resolved.Fallback)
}

func TestResolveMaxCost(t *testing.T) {
	records := []domain.ModelRecord{
		entitledRecord("pricey", func(r *domain.ModelRecord) {
			r.Pricing = &domain.ModelPricing{Currency: "USD", InputPer1M: 15, OutputPer1M: 75}
		}),
		entitledRecord("cheap", func(r *domain.ModelRecord) {
			r.Pricing = &domain.ModelPricing{Currency: "USD", InputPer1M: 0.5, OutputPer1M: 1.5}
		}),
		entitledRecord("unpriced", nil),
	}

	resolved, err := Router{}.Resolve(records, domain.ResolutionRequest{
		Constraints: domain.ModelConstraints{MaxCostUSD: 2},
	})
	require.NoError(t, err)

	all := append([]domain.ModelRecord{resolved.Primary}, resolved.Fallback...)
	require.Len(t, all, 2)
	for _, r := range all {
		if r.Pricing != nil {
			assert.LessOrEqual(t, r.Pricing.InputPer1M, 2.0)
			assert.LessOrEqual(t, r.Pricing.OutputPer1M, 2.0)
		}
	}
	// Missing pricing satisfies the constraint and scores 0, sorting first.
	assert.Equal(t, "unpriced", resolved.Primary.ProviderModelID)
	assert.Equal(t, "cheap", resolved.Fallback[0].ProviderModelID)
}

func TestResolvePreferredIsHardAllowList(t *testing.T) {
	records := []domain.ModelRecord{
		entitledRecord("gpt-4o", nil),
		entitledRecord("gpt-4o-mini", nil),
		entitledRecord("o3", nil),
	}

	resolved, err := Router{}.Resolve(records, domain.ResolutionRequest{
		PreferredModels: []string{"o3", "openai:gpt-4o"},
	})
	require.NoError(t, err)

	// Order follows the preferred list, and nothing unlisted survives.
	assert.Equal(t, "o3", resolved.Primary.ProviderModelID)
	require.Len(t, resolved.Fallback, 1)
	assert.Equal(t, "gpt-4o", resolved.Fallback[0].ProviderModelID)
}

func TestResolvePreviewFilter(t *testing.T) {
	records := []domain.ModelRecord{
		entitledRecord("stable", nil),
		entitledRecord("experimental", func(r *domain.ModelRecord) { r.Tags = []string{"preview"} }),
	}

	// Preview allowed by default.
	resolved, err := Router{}.Resolve(records, domain.ResolutionRequest{})
	require.NoError(t, err)
	assert.Len(t, resolved.Fallback, 1)

	no := false
	resolved, err = Router{}.Resolve(records, domain.ResolutionRequest{
		Constraints: domain.ModelConstraints{AllowPreview: &no},
	})
	require.NoError(t, err)
	assert.Equal(t, "stable", resolved.Primary.ProviderModelID)
	assert.Empty(t, resolved.Fallback)
}

func TestResolvePriceOrdering(t *testing.T) {
	records := []domain.ModelRecord{
		entitledRecord("mid", func(r *domain.ModelRecord) {
			r.Pricing = &domain.ModelPricing{Currency: "USD", InputPer1M: 3, OutputPer1M: 15}
		}),
		entitledRecord("cheap", func(r *domain.ModelRecord) {
			r.Pricing = &domain.ModelPricing{Currency: "USD", InputPer1M: 0.15, OutputPer1M: 0.6}
		}),
		entitledRecord("pricey", func(r *domain.ModelRecord) {
			r.Pricing = &domain.ModelPricing{Currency: "USD", InputPer1M: 10, OutputPer1M: 40}
		}),
	}

	resolved, err := Router{}.Resolve(records, domain.ResolutionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "cheap", resolved.Primary.ProviderModelID)
	require.Len(t, resolved.Fallback, 2)
	assert.Equal(t, "mid", resolved.Fallback[0].ProviderModelID)
	assert.Equal(t, "pricey", resolved.Fallback[1].ProviderModelID)
}

func TestResolveDisplayNameTieBreak(t *testing.T) {
	records := []domain.ModelRecord{
		entitledRecord("zeta", nil),
		entitledRecord("alpha", nil),
	}
	resolved, err := Router{}.Resolve(records, domain.ResolutionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "alpha", resolved.Primary.ProviderModelID)
}

func TestResolveNoCandidates(t *testing.T) {
	_, err := Router{}.Resolve(nil, domain.ResolutionRequest{})
	assert.ErrorIs(t, err, ErrNoCandidates)

	records := []domain.ModelRecord{entitledRecord("plain", nil)}
	_, err = Router{}.Resolve(records, domain.ResolutionRequest{
		Constraints: domain.ModelConstraints{RequireVideo: true},
	})
	assert.ErrorIs(t, err, ErrNoCandidates)

	_, err = Router{}.Resolve(records, domain.ResolutionRequest{
		PreferredModels: []string{"something-else"},
	})
	assert.ErrorIs(t, err, ErrNoCandidates)

	// Classified so the transport layer answers 404, not 500.
	assert.Equal(t, domain.ErrProviderNotFound, domain.KindOf(err))
	assert.Equal(t, http.StatusNotFound, ErrNoCandidates.HTTPStatus())
}

func TestResolveIsPure(t *testing.T) {
	records := []domain.ModelRecord{
		entitledRecord("b", nil),
		entitledRecord("a", nil),
	}
	before := append([]domain.ModelRecord(nil), records...)

	first, err := Router{}.Resolve(records, domain.ResolutionRequest{})
	require.NoError(t, err)
	second, err := Router{}.Resolve(records, domain.ResolutionRequest{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, records)
}
