package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// EntitlementContext carries the credential identity one call runs under.
// It exists for the duration of a single call (or one learned-unavailability
// record keyed by its fingerprint) and is never persisted.
type EntitlementContext struct {
	Provider          Provider `json:"provider,omitempty"`
	APIKey            string   `json:"-"`
	APIKeyFingerprint string   `json:"api_key_fingerprint,omitempty"`
	AccountID         string   `json:"account_id,omitempty"`
	Region            string   `json:"region,omitempty"`
	Environment       string   `json:"environment,omitempty"`
	TenantID          string   `json:"tenant_id,omitempty"`
}

// DefaultScope is the availability scope used for calls that carry no
// entitlement at all.
const DefaultScope = "default"

// Scope returns the fingerprint this entitlement is tracked under. Safe to
// call on a nil receiver.
func (e *EntitlementContext) Scope() string {
	if e == nil {
		return DefaultScope
	}
	if fp := strings.TrimSpace(e.APIKeyFingerprint); fp != "" {
		return fp
	}
	if fp := FingerprintAPIKey(e.APIKey); fp != "" {
		return fp
	}
	return DefaultScope
}

// FingerprintAPIKey derives a stable one-way identifier for a credential so
// that logs and learned-unavailability records never hold the raw secret.
func FingerprintAPIKey(apiKey string) string {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(sum[:])
}
