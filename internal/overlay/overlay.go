package overlay

import (
	_ "embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/nulzo/model-hub/internal/core/domain"
)

//go:embed curated_models.json
var curatedRaw []byte

// Entry is one curated record: a provider plus a model-id prefix and the
// metadata discovery endpoints do not report. Immutable after load.
type Entry struct {
	ID            string                   `json:"id"`
	Provider      domain.Provider          `json:"provider"`
	DisplayName   string                   `json:"display_name,omitempty"`
	Family        string                   `json:"family,omitempty"`
	Capabilities  domain.ModelCapabilities `json:"capabilities"`
	ContextWindow int                      `json:"context_window,omitempty"`
	MaxOutput     int                      `json:"max_output,omitempty"`
	TokenPrices   *domain.TokenPrices      `json:"token_prices,omitempty"`
	Deprecated    bool                     `json:"deprecated,omitempty"`
	InPreview     bool                     `json:"in_preview,omitempty"`
}

// Overlay is a read-only index of curated entries. Construct one at startup
// and hand it to the registry; tests substitute a fixture via New.
type Overlay struct {
	byProvider map[domain.Provider][]Entry
}

func New(entries []Entry) *Overlay {
	idx := make(map[domain.Provider][]Entry)
	for _, e := range entries {
		idx[e.Provider] = append(idx[e.Provider], e)
	}
	return &Overlay{byProvider: idx}
}

var (
	defaultOnce    sync.Once
	defaultOverlay *Overlay
)

// Default returns the process-wide overlay loaded from the embedded curated
// snapshot. Loaded at most once; a broken snapshot yields an empty overlay.
func Default() *Overlay {
	defaultOnce.Do(func() {
		var entries []Entry
		if err := json.Unmarshal(curatedRaw, &entries); err != nil {
			entries = nil
		}
		defaultOverlay = New(entries)
	})
	return defaultOverlay
}

// normalizeID strips a leading "provider/" namespace from a raw model id.
func normalizeID(provider domain.Provider, modelID string) string {
	return strings.TrimPrefix(modelID, string(provider)+"/")
}

// Find returns the curated entry whose id is the longest prefix of the raw
// model id for the given provider, or nil. An exact match wins outright.
func (o *Overlay) Find(provider domain.Provider, modelID string) *Entry {
	if o == nil {
		return nil
	}
	normalized := normalizeID(provider, modelID)
	var best *Entry
	entries := o.byProvider[provider]
	for i := range entries {
		e := &entries[i]
		if e.ID == normalized {
			return e
		}
		if strings.HasPrefix(normalized, e.ID) {
			if best == nil || len(e.ID) > len(best.ID) {
				best = e
			}
		}
	}
	return best
}

// Apply merges curated metadata into a live listing. Live-reported fields
// win; the overlay fills gaps. Pricing is the exception: discovery
// endpoints never report price, so it is always overlay-sourced.
func (o *Overlay) Apply(meta domain.ModelMetadata) domain.ModelMetadata {
	e := o.Find(meta.Provider, meta.ID)
	if e == nil {
		return meta
	}
	if meta.DisplayName == "" {
		meta.DisplayName = e.DisplayName
	}
	if meta.Family == "" {
		meta.Family = e.Family
	}
	if meta.Capabilities == (domain.ModelCapabilities{}) {
		meta.Capabilities = e.Capabilities
	}
	if meta.ContextWindow == 0 {
		meta.ContextWindow = e.ContextWindow
	}
	if meta.MaxOutput == 0 {
		meta.MaxOutput = e.MaxOutput
	}
	meta.TokenPrices = e.TokenPrices
	meta.Deprecated = meta.Deprecated || e.Deprecated
	meta.InPreview = meta.InPreview || e.InPreview
	return meta
}

// Listing builds an overlay-only degraded listing for a provider, used when
// a live fetch fails and no cache exists. Confidence is marked inferred.
func (o *Overlay) Listing(provider domain.Provider) []domain.ModelMetadata {
	if o == nil {
		return nil
	}
	entries := o.byProvider[provider]
	out := make([]domain.ModelMetadata, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.ModelMetadata{
			ID:            e.ID,
			DisplayName:   e.DisplayName,
			Provider:      provider,
			Family:        e.Family,
			Capabilities:  e.Capabilities,
			ContextWindow: e.ContextWindow,
			MaxOutput:     e.MaxOutput,
			TokenPrices:   e.TokenPrices,
			Deprecated:    e.Deprecated,
			InPreview:     e.InPreview,
			Confidence:    domain.AvailabilityInferred,
		})
	}
	return out
}

// Prices returns the curated token prices for a model, or nil.
func (o *Overlay) Prices(provider domain.Provider, modelID string) *domain.TokenPrices {
	e := o.Find(provider, modelID)
	if e == nil {
		return nil
	}
	return e.TokenPrices
}
