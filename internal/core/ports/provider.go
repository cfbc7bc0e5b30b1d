package ports

import (
	"context"

	"github.com/nulzo/model-hub/internal/core/domain"
)

// ProviderAdapter is the contract every vendor translator must implement.
// Adapters are pure data mapping over the vendor's wire protocol; they hold
// no shared state beyond their HTTP client and credential.
type ProviderAdapter interface {
	Provider() domain.Provider

	ListModels(ctx context.Context) ([]domain.ModelMetadata, error)
	Generate(ctx context.Context, in domain.GenerateInput) (domain.GenerateOutput, error)
	// StreamGenerate returns a channel of raw canonical chunks. The adapter
	// closes the channel when the upstream stream ends; terminal-chunk
	// discipline is enforced by the stream unifier, not here.
	StreamGenerate(ctx context.Context, in domain.GenerateInput) (<-chan domain.StreamChunk, error)
}

// Optional capability surfaces. Detection is structural: the orchestrator
// probes with a type assertion, so a new capability-bearing adapter needs
// no registry changes. A missing interface surfaces as an Unsupported error
// before any network call.

type ImageGenerator interface {
	GenerateImage(ctx context.Context, in domain.ImageGenerateInput) (domain.ImageGenerateOutput, error)
}

type MeshGenerator interface {
	GenerateMesh(ctx context.Context, in domain.MeshGenerateInput) (domain.MeshGenerateOutput, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, in domain.TranscribeInput) (domain.TranscribeOutput, error)
}

// AdapterFactory binds a rotated credential to an adapter instance for one
// call. Implementations may memoize per credential fingerprint.
type AdapterFactory func(provider domain.Provider, entitlement *domain.EntitlementContext) (ProviderAdapter, error)
