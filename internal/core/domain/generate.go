package domain

// ContentPart is one piece of a message: text or an image reference.
type ContentPart struct {
	Type  string        `json:"type"`
	Text  string        `json:"text,omitempty"`
	Image *ImageContent `json:"image,omitempty"`
}

type ImageContent struct {
	URL       string `json:"url,omitempty"`
	Base64    string `json:"base64,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

type Message struct {
	Role       string        `json:"role"`
	Content    []ContentPart `json:"content"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	Name       string        `json:"name,omitempty"`
}

type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type ToolChoice struct {
	Type string `json:"type"` // "auto", "none", or "tool"
	Name string `json:"name,omitempty"`
}

type JSONSchemaFormat struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
	Strict bool                   `json:"strict"`
}

type ResponseFormat struct {
	Type       string            `json:"type"` // "text", "json_object", "json_schema"
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
}

// GenerateInput is the provider-agnostic request shape fed to an adapter.
type GenerateInput struct {
	Provider       Provider          `json:"provider"`
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	Tools          []ToolDefinition  `json:"tools,omitempty"`
	ToolChoice     *ToolChoice       `json:"tool_choice,omitempty"`
	ResponseFormat *ResponseFormat   `json:"response_format,omitempty"`
	Temperature    *float64          `json:"temperature,omitempty"`
	TopP           *float64          `json:"top_p,omitempty"`
	MaxTokens      *int              `json:"max_tokens,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type ToolCall struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ArgumentsJSON string `json:"arguments_json"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
	TotalTokens  int `json:"total_tokens,omitempty"`
}

// CostBreakdown is derived from Usage and pricing at the end of a call.
// It is computed in exactly one place and never stored.
type CostBreakdown struct {
	InputCostUSD      float64      `json:"input_cost_usd,omitempty"`
	OutputCostUSD     float64      `json:"output_cost_usd,omitempty"`
	TotalCostUSD      float64      `json:"total_cost_usd,omitempty"`
	PricingPerMillion *TokenPrices `json:"pricing_per_million,omitempty"`
}

type GenerateOutput struct {
	Text         string         `json:"text,omitempty"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty"`
	Usage        *Usage         `json:"usage,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Cost         *CostBreakdown `json:"cost,omitempty"`

	// KeyFingerprint names the credential scope that served the call. It is
	// carried for request logging and never serialized to clients.
	KeyFingerprint string `json:"-"`
}

// Optional-capability payloads. Adapters that cannot serve these surface
// an Unsupported error from the capability probe, before any network call.

type ImageInput struct {
	URL       string `json:"url,omitempty"`
	Base64    string `json:"base64,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

type ImageGenerateInput struct {
	Provider    Provider               `json:"provider"`
	Model       string                 `json:"model"`
	Prompt      string                 `json:"prompt"`
	Size        string                 `json:"size,omitempty"`
	InputImages []ImageInput           `json:"input_images,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type ImageGenerateOutput struct {
	Mime string `json:"mime"`
	Data string `json:"data"` // base64

	KeyFingerprint string `json:"-"`
}

type MeshGenerateInput struct {
	Provider    Provider     `json:"provider"`
	Model       string       `json:"model"`
	Prompt      string       `json:"prompt"`
	InputImages []ImageInput `json:"input_images,omitempty"`
	Format      string       `json:"format,omitempty"`
}

type MeshGenerateOutput struct {
	Data   string `json:"data"`
	Format string `json:"format,omitempty"`

	KeyFingerprint string `json:"-"`
}

type AudioInput struct {
	URL       string `json:"url,omitempty"`
	Base64    string `json:"base64,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	FileName  string `json:"file_name,omitempty"`
}

type TranscribeInput struct {
	Provider Provider   `json:"provider"`
	Model    string     `json:"model"`
	Audio    AudioInput `json:"audio"`
	Language string     `json:"language,omitempty"`
	Prompt   string     `json:"prompt,omitempty"`
}

type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type TranscribeOutput struct {
	Text     string              `json:"text,omitempty"`
	Language string              `json:"language,omitempty"`
	Duration float64             `json:"duration,omitempty"`
	Segments []TranscriptSegment `json:"segments,omitempty"`

	KeyFingerprint string `json:"-"`
}
