package store

import (
	"context"

	"github.com/nulzo/model-hub/internal/store/model"
)

// Repository is the main contract for the data layer.
type Repository interface {
	Requests() RequestRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type RequestRepository interface {
	// Log stores a completed inference call.
	Log(ctx context.Context, log *model.RequestLog) error
	// GetByID returns a single request log by ID.
	GetByID(ctx context.Context, id string) (*model.RequestLog, error)
	// GetRecent returns the last N logs for a provider. An empty provider
	// returns logs across all providers.
	GetRecent(ctx context.Context, provider string, limit int) ([]model.RequestLog, error)
	// GetDailyStats returns aggregated stats grouped by day.
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
}
