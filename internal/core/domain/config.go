package domain

// ProviderConfig is the unified configuration shape for one provider
// integration. Type selects the adapter implementation; ID names this
// particular credentialed instance.
type ProviderConfig struct {
	ID       string            `json:"id" yaml:"id" mapstructure:"id"`
	Type     string            `json:"type" yaml:"type" mapstructure:"type"`
	Name     string            `json:"name" yaml:"name" mapstructure:"name"`
	APIKey   string            `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	APIKeys  []string          `json:"api_keys" yaml:"api_keys" mapstructure:"api_keys"` // extra keys rotated behind APIKey
	BaseURL  string            `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Config   map[string]string `json:"config" yaml:"config" mapstructure:"config"`
	Enabled  bool              `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// ProviderID returns the Provider enum value this config targets.
func (c ProviderConfig) ProviderID() Provider {
	return Provider(c.Type)
}
