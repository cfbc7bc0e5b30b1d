package domain

// ModelConstraints narrows the candidate set during resolution. Boolean
// requirements drop any model that does not support the feature; MaxCostUSD
// drops models whose declared per-million price on either axis exceeds it
// (a missing price satisfies the constraint).
type ModelConstraints struct {
	RequireTools  bool    `json:"require_tools,omitempty"`
	RequireJSON   bool    `json:"require_json,omitempty"`
	RequireVision bool    `json:"require_vision,omitempty"`
	RequireVideo  bool    `json:"require_video,omitempty"`
	MaxCostUSD    float64 `json:"max_cost_usd,omitempty"`
	AllowPreview  *bool   `json:"allow_preview,omitempty"` // nil means true
}

// ResolutionRequest asks the router to pick a model. PreferredModels is an
// ordered hard allow-list: when non-empty, only listed models survive.
type ResolutionRequest struct {
	Constraints     ModelConstraints `json:"constraints,omitempty"`
	PreferredModels []string         `json:"preferred_models,omitempty"`
}

// ResolvedModel is the router's answer: the best candidate plus the
// remaining candidates in resolution order, for caller-driven fallback.
type ResolvedModel struct {
	Primary  ModelRecord   `json:"primary"`
	Fallback []ModelRecord `json:"fallback,omitempty"`
}

// ListOptions controls a registry listing call.
type ListOptions struct {
	Providers   []Provider
	Refresh     bool
	Entitlement *EntitlementContext
}
