package ports

import (
	"context"

	"github.com/nulzo/model-hub/internal/core/domain"
)

// ModelRegistry caches adapter listings, merges them with the curated
// overlay, and tracks learned unavailability per entitlement fingerprint.
type ModelRegistry interface {
	// List returns merged raw metadata for the requested providers
	// (default: all configured). One provider failing degrades only that
	// provider's slice, never the whole call.
	List(ctx context.Context, opts *domain.ListOptions) ([]domain.ModelMetadata, error)

	// ListRecords is List projected into routable records, filtered by the
	// calling entitlement's learned-unavailability state.
	ListRecords(ctx context.Context, opts *domain.ListOptions) ([]domain.ModelRecord, error)

	// LearnModelUnavailable records a short-lived downgrade when err
	// indicates the model itself was the cause. Any other error is a no-op.
	LearnModelUnavailable(entitlement *domain.EntitlementContext, provider domain.Provider, modelID string, err error)
}
