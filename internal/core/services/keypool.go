package services

import (
	"strings"
	"sync/atomic"

	"github.com/nulzo/model-hub/internal/core/domain"
)

// KeyPool rotates a provider's credentials. Rotation is a monotonic atomic
// advance: fairness under concurrent callers is best-effort, and callers
// must not assume strict round-robin ordering.
type KeyPool struct {
	provider domain.Provider
	keys     []string
	counter  uint64
}

// NewKeyPool builds a pool from a primary key plus extras, de-duplicated
// and order-preserving. Returns nil when no usable key remains; a nil pool
// yields no entitlement and the caller falls back to the default adapter.
func NewKeyPool(provider domain.Provider, primary string, extras []string) *KeyPool {
	keys := normalizeKeys(primary, extras)
	if len(keys) == 0 {
		return nil
	}
	return &KeyPool{provider: provider, keys: keys}
}

// Size returns the number of distinct credentials. Safe on nil.
func (p *KeyPool) Size() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Next returns the credential at the rotating index. Safe on nil.
func (p *KeyPool) Next() string {
	if p == nil || len(p.keys) == 0 {
		return ""
	}
	if len(p.keys) == 1 {
		return p.keys[0]
	}
	idx := atomic.AddUint64(&p.counter, 1) - 1
	return p.keys[idx%uint64(len(p.keys))]
}

// Entitlement rotates to the next credential and wraps it in a per-call
// entitlement context. Returns nil for an empty pool.
func (p *KeyPool) Entitlement() *domain.EntitlementContext {
	key := p.Next()
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return &domain.EntitlementContext{
		Provider:          p.provider,
		APIKey:            key,
		APIKeyFingerprint: domain.FingerprintAPIKey(key),
	}
}

func normalizeKeys(primary string, extras []string) []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(raw string) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return
		}
		if _, ok := seen[trimmed]; ok {
			return
		}
		seen[trimmed] = struct{}{}
		keys = append(keys, trimmed)
	}
	add(primary)
	for _, k := range extras {
		add(k)
	}
	return keys
}
