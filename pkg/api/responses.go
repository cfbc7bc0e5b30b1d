package api

import "github.com/nulzo/model-hub/internal/core/domain"

// ModelList is the "/v1/models" envelope.
type ModelList struct {
	Object string                 `json:"object"` // always "list"
	Data   []domain.ModelMetadata `json:"data"`
}

// RecordList is the "/v1/models/records" envelope.
type RecordList struct {
	Object string               `json:"object"`
	Data   []domain.ModelRecord `json:"data"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
