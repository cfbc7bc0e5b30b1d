package ollama

import (
	"context"
	"strings"

	"github.com/nulzo/model-hub/internal/adapters/providers/openai"
	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/ports"
	"github.com/nulzo/model-hub/internal/registry"
)

func init() {
	registry.Register("ollama", NewAdapter)
}

// Adapter talks to a local Ollama daemon through its OpenAI-compatible
// endpoints. Listings report no pricing; the curated overlay contributes
// none either, so local models route with a zero price score.
type Adapter struct {
	openai *openai.Adapter
}

func NewAdapter(config domain.ProviderConfig) (ports.ProviderAdapter, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "http://localhost:11434"
	}
	return &Adapter{
		openai: openai.New(config, domain.ProviderOllama),
	}, nil
}

func (a *Adapter) Provider() domain.Provider { return domain.ProviderOllama }

func (a *Adapter) ListModels(ctx context.Context) ([]domain.ModelMetadata, error) {
	return a.openai.ListModels(ctx)
}

func (a *Adapter) Generate(ctx context.Context, in domain.GenerateInput) (domain.GenerateOutput, error) {
	in.Provider = domain.ProviderOllama
	return a.openai.Generate(ctx, in)
}

func (a *Adapter) StreamGenerate(ctx context.Context, in domain.GenerateInput) (<-chan domain.StreamChunk, error) {
	in.Provider = domain.ProviderOllama
	return a.openai.StreamGenerate(ctx, in)
}
