package xai

import (
	"context"

	"github.com/nulzo/model-hub/internal/adapters/providers/openai"
	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/ports"
	"github.com/nulzo/model-hub/internal/registry"
)

func init() {
	registry.Register("xai", NewAdapter)
}

// Adapter speaks to the xAI API, which is OpenAI-compatible for listing,
// generation, and streaming.
type Adapter struct {
	openai *openai.Adapter
}

func NewAdapter(config domain.ProviderConfig) (ports.ProviderAdapter, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.x.ai"
	}
	return &Adapter{
		openai: openai.New(config, domain.ProviderXAI),
	}, nil
}

func (a *Adapter) Provider() domain.Provider { return domain.ProviderXAI }

func (a *Adapter) ListModels(ctx context.Context) ([]domain.ModelMetadata, error) {
	models, err := a.openai.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	// Grok models all carry vision-capable variants in the listing but the
	// discovery endpoint does not flag them; the overlay fills that in.
	return models, nil
}

func (a *Adapter) Generate(ctx context.Context, in domain.GenerateInput) (domain.GenerateOutput, error) {
	in.Provider = domain.ProviderXAI
	return a.openai.Generate(ctx, in)
}

func (a *Adapter) StreamGenerate(ctx context.Context, in domain.GenerateInput) (<-chan domain.StreamChunk, error) {
	in.Provider = domain.ProviderXAI
	return a.openai.StreamGenerate(ctx, in)
}
