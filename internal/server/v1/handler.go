package v1

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nulzo/model-hub/internal/analytics"
	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/services"
	"github.com/nulzo/model-hub/internal/store"
	"github.com/nulzo/model-hub/internal/store/model"
)

// Handler bundles the v1 endpoints around the hub. The ingestor and repo
// are optional; without them, request logging and the stats endpoints are
// disabled.
type Handler struct {
	hub      *services.Hub
	ingestor analytics.Ingestor
	repo     store.Repository
	logger   *zap.Logger
}

func NewHandler(hub *services.Hub, ingestor analytics.Ingestor, repo store.Repository, logger *zap.Logger) *Handler {
	return &Handler{
		hub:      hub,
		ingestor: ingestor,
		repo:     repo,
		logger:   logger,
	}
}

// record builds and enqueues one analytics entry for a finished call. The
// fingerprint names the credential scope the hub served the call with and
// is empty when the call failed before a credential was picked.
func (h *Handler) record(provider domain.Provider, modelID, operation, fingerprint string, start time.Time, status int, streamed bool, usage *domain.Usage, cost *domain.CostBreakdown, finishReason string, callErr error) {
	if h.ingestor == nil {
		return
	}

	entry := &model.RequestLog{
		ID:             uuid.New().String(),
		Provider:       string(provider),
		ModelID:        modelID,
		Operation:      operation,
		KeyFingerprint: fingerprint,
		FinishReason:   finishReason,
		LatencyMS:      time.Since(start).Milliseconds(),
		StatusCode:     status,
		IsStreamed:     streamed,
		CreatedAt:      time.Now().UTC(),
	}
	if usage != nil {
		entry.InputTokens = usage.InputTokens
		entry.OutputTokens = usage.OutputTokens
		entry.TotalTokens = usage.TotalTokens
	}
	if cost != nil {
		entry.TotalCostMicros = model.CostToMicros(cost.TotalCostUSD)
	}
	if callErr != nil {
		entry.ErrorKind = sql.NullString{String: string(domain.KindOf(callErr)), Valid: true}
	}

	h.ingestor.Log(entry)
}
