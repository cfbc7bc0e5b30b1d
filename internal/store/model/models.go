package model

import (
	"database/sql"
	"time"
)

// RequestLog captures one completed inference call. Costs are stored in
// micro-dollars to keep the column integral.
type RequestLog struct {
	ID              string         `db:"id" json:"id"`
	Provider        string         `db:"provider" json:"provider"`
	ModelID         string         `db:"model_id" json:"model_id"`
	Operation       string         `db:"operation" json:"operation"` // generate, stream, image, mesh, transcribe
	KeyFingerprint  string         `db:"key_fingerprint" json:"key_fingerprint"`
	FinishReason    string         `db:"finish_reason" json:"finish_reason"`
	InputTokens     int            `db:"input_tokens" json:"input_tokens"`
	OutputTokens    int            `db:"output_tokens" json:"output_tokens"`
	TotalTokens     int            `db:"total_tokens" json:"total_tokens"`
	LatencyMS       int64          `db:"latency_ms" json:"latency_ms"`
	StatusCode      int            `db:"status_code" json:"status_code"`
	TotalCostMicros int64          `db:"total_cost_micros" json:"total_cost_micros"`
	IsStreamed      bool           `db:"is_streamed" json:"is_streamed"`
	ErrorKind       sql.NullString `db:"error_kind" json:"error_kind,omitempty"`
	UpstreamID      sql.NullString `db:"upstream_id" json:"upstream_id,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// DailyStats represents aggregated usage data for a specific day.
type DailyStats struct {
	Date            string  `db:"date" json:"date"`
	TotalRequests   int     `db:"total_requests" json:"total_requests"`
	TotalTokens     int     `db:"total_tokens" json:"total_tokens"`
	TotalCostMicros int64   `db:"total_cost_micros" json:"total_cost_micros"`
	AverageLatency  float64 `db:"avg_latency" json:"avg_latency"`
}

// CostToMicros converts a dollar amount into the stored integral unit.
func CostToMicros(usd float64) int64 {
	return int64(usd * 1_000_000)
}
