package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nulzo/model-hub/internal/store"
	"github.com/nulzo/model-hub/internal/store/model"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &SqliteRepository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		// attempt rollback, but prioritize original error
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) Requests() store.RequestRepository {
	return &requestRepo{db: r.executor}
}

type requestRepo struct {
	db DB
}

func (r *requestRepo) Log(ctx context.Context, log *model.RequestLog) error {
	query := `
	INSERT INTO request_logs (
		id, provider, model_id, operation, key_fingerprint, finish_reason,
		input_tokens, output_tokens, total_tokens,
		latency_ms, status_code, total_cost_micros, is_streamed,
		error_kind, upstream_id, created_at
	) VALUES (
		:id, :provider, :model_id, :operation, :key_fingerprint, :finish_reason,
		:input_tokens, :output_tokens, :total_tokens,
		:latency_ms, :status_code, :total_cost_micros, :is_streamed,
		:error_kind, :upstream_id, :created_at
	)`
	_, err := r.db.NamedExecContext(ctx, query, log)
	return err
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*model.RequestLog, error) {
	var log model.RequestLog
	if err := r.db.GetContext(ctx, &log, `SELECT * FROM request_logs WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *requestRepo) GetRecent(ctx context.Context, provider string, limit int) ([]model.RequestLog, error) {
	var logs []model.RequestLog
	if provider == "" {
		err := r.db.SelectContext(ctx, &logs, `SELECT * FROM request_logs ORDER BY created_at DESC LIMIT ?`, limit)
		return logs, err
	}
	err := r.db.SelectContext(ctx, &logs, `SELECT * FROM request_logs WHERE provider = ? ORDER BY created_at DESC LIMIT ?`, provider, limit)
	return logs, err
}

func (r *requestRepo) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	var stats []model.DailyStats
	query := `
		SELECT
			DATE(created_at) as date,
			COUNT(*) as total_requests,
			SUM(total_tokens) as total_tokens,
			SUM(total_cost_micros) as total_cost_micros,
			AVG(latency_ms) as avg_latency
		FROM request_logs
		WHERE created_at >= DATE('now', ?)
		GROUP BY date
		ORDER BY date DESC
	`
	// SQLite date offset format is '-7 days'
	err := r.db.SelectContext(ctx, &stats, query, fmt.Sprintf("-%d days", days))
	return stats, err
}
