package domain

// Provider identifies one upstream inference backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderXAI       Provider = "xai"
	ProviderOllama    Provider = "ollama"
	ProviderBedrock   Provider = "bedrock"
	ProviderLocal     Provider = "local"
)

// ModelCapabilities is the raw capability surface reported (or inferred)
// for one model at the listing boundary.
type ModelCapabilities struct {
	Text             bool `json:"text"`
	Vision           bool `json:"vision,omitempty"`
	AudioIn          bool `json:"audio_in,omitempty"`
	AudioOut         bool `json:"audio_out,omitempty"`
	ImageOut         bool `json:"image_out,omitempty"`
	VideoIn          bool `json:"video_in,omitempty"`
	VideoOut         bool `json:"video_out,omitempty"`
	ToolUse          bool `json:"tool_use,omitempty"`
	StructuredOutput bool `json:"structured_output,omitempty"`
	Streaming        bool `json:"streaming,omitempty"`
	Batch            bool `json:"batch,omitempty"`
}

// TokenPrices holds USD prices per one million tokens.
type TokenPrices struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// ModelMetadata is a single model as reported by one provider's discovery
// endpoint, before any merge into routing records. IDs are provider-scoped.
type ModelMetadata struct {
	ID            string            `json:"id"`
	DisplayName   string            `json:"display_name"`
	Provider      Provider          `json:"provider"`
	Family        string            `json:"family,omitempty"`
	Capabilities  ModelCapabilities `json:"capabilities"`
	ContextWindow int               `json:"context_window,omitempty"`
	MaxOutput     int               `json:"max_output,omitempty"`
	TokenPrices   *TokenPrices      `json:"token_prices,omitempty"`
	Deprecated    bool              `json:"deprecated,omitempty"`
	InPreview     bool              `json:"in_preview,omitempty"`

	// Confidence marks listings that were not confirmed by a live
	// discovery call (overlay-only degraded results).
	Confidence AvailabilityConfidence `json:"confidence,omitempty"`
}
