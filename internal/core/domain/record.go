package domain

// ModelModalities describes what a model can consume and produce.
type ModelModalities struct {
	Text     bool `json:"text"`
	Vision   bool `json:"vision,omitempty"`
	AudioIn  bool `json:"audio_in,omitempty"`
	AudioOut bool `json:"audio_out,omitempty"`
	ImageOut bool `json:"image_out,omitempty"`
	VideoIn  bool `json:"video_in,omitempty"`
	VideoOut bool `json:"video_out,omitempty"`
}

// ModelFeatures describes request-shaping features a model supports.
type ModelFeatures struct {
	Tools      bool `json:"tools,omitempty"`
	JSONMode   bool `json:"json_mode,omitempty"`
	JSONSchema bool `json:"json_schema,omitempty"`
	Streaming  bool `json:"streaming,omitempty"`
	Batch      bool `json:"batch,omitempty"`
}

type ModelLimits struct {
	ContextTokens   int `json:"context_tokens,omitempty"`
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`
}

// ModelPricing is overlay-sourced; provider discovery endpoints never
// report price, so a nil pricing means "unknown", not "free".
type ModelPricing struct {
	Currency         string  `json:"currency"`
	InputPer1M       float64 `json:"input_per_1m,omitempty"`
	CachedInputPer1M float64 `json:"cached_input_per_1m,omitempty"`
	OutputPer1M      float64 `json:"output_per_1m,omitempty"`
	Source           string  `json:"source,omitempty"`
}

// AvailabilityConfidence says how the availability verdict was reached.
type AvailabilityConfidence string

const (
	// AvailabilityListed means the provider's discovery endpoint returned it.
	AvailabilityListed AvailabilityConfidence = "listed"
	// AvailabilityInferred means the entry came from the curated overlay only.
	AvailabilityInferred AvailabilityConfidence = "inferred"
	// AvailabilityLearned means a runtime failure downgraded the model.
	AvailabilityLearned AvailabilityConfidence = "learned"
)

type ModelAvailability struct {
	Entitled       bool                   `json:"entitled"`
	Confidence     AvailabilityConfidence `json:"confidence,omitempty"`
	LastVerifiedAt string                 `json:"last_verified_at,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
}

// ModelRecord is the merged, routable view of one model: listing data plus
// overlay capabilities and pricing, annotated with per-entitlement
// availability. This is the unit the router operates on.
type ModelRecord struct {
	ID              string            `json:"id"` // provider-qualified, e.g. "openai:gpt-4o"
	Provider        Provider          `json:"provider"`
	ProviderModelID string            `json:"provider_model_id"`
	DisplayName     string            `json:"display_name,omitempty"`
	Modalities      ModelModalities   `json:"modalities"`
	Features        ModelFeatures     `json:"features"`
	Limits          *ModelLimits      `json:"limits,omitempty"`
	Pricing         *ModelPricing     `json:"pricing,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	Availability    ModelAvailability `json:"availability"`
}

// HasTag reports whether the record carries the given tag.
func (m ModelRecord) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
