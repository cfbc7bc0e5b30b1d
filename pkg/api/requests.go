package api

import "github.com/nulzo/model-hub/internal/core/domain"

// GenerateRequest is the transport shape for text generation. Stream flips
// the response into SSE.
type GenerateRequest struct {
	domain.GenerateInput
	Stream bool `json:"stream,omitempty"`
}

// ResolveRequest asks the hub for the best model under the given constraints.
type ResolveRequest struct {
	Providers       []string                `json:"providers,omitempty"`
	Refresh         bool                    `json:"refresh,omitempty"`
	Constraints     domain.ModelConstraints `json:"constraints"`
	PreferredModels []string                `json:"preferred_models,omitempty"`
}

// ImageRequest is the transport shape for image generation.
type ImageRequest struct {
	domain.ImageGenerateInput
}

// TranscribeRequest is the transport shape for audio transcription.
type TranscribeRequest struct {
	domain.TranscribeInput
}
