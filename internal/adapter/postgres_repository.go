package adapter

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrHealthNotFound is returned when no health row exists for a source.
var ErrHealthNotFound = errors.New("adapter health not found")

// PostgresLogRepository is a PostgreSQL implementation of LogRepository.
type PostgresLogRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresLogRepository creates a new PostgreSQL response log repository.
func NewPostgresLogRepository(pool *pgxpool.Pool) *PostgresLogRepository {
	return &PostgresLogRepository{pool: pool}
}

// Insert writes one response log row.
func (r *PostgresLogRepository) Insert(ctx context.Context, row ResponseLog) error {
	params, err := json.Marshal(row.Params)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO raw_response_log
			(source, endpoint, params, status_code, response_time_ms,
			 response_body, is_error, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.pool.Exec(ctx, query,
		row.Source, row.Endpoint, params, row.StatusCode, row.ResponseTimeMs,
		row.Body, row.IsError, row.ErrorMessage, row.CreatedAt,
	)
	return err
}

// ListBySource returns the most recent rows for a source, newest first.
func (r *PostgresLogRepository) ListBySource(ctx context.Context, source string, limit int) ([]ResponseLog, error) {
	query := `
		SELECT source, endpoint, params, status_code, response_time_ms,
		       response_body, is_error, error_message, created_at
		FROM raw_response_log
		WHERE source = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ResponseLog
	for rows.Next() {
		var row ResponseLog
		var params []byte
		if err := rows.Scan(
			&row.Source, &row.Endpoint, &params, &row.StatusCode, &row.ResponseTimeMs,
			&row.Body, &row.IsError, &row.ErrorMessage, &row.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &row.Params); err != nil {
				return nil, err
			}
		}
		logs = append(logs, row)
	}

	return logs, rows.Err()
}

// PostgresHealthRepository is a PostgreSQL implementation of
// HealthRepository.
type PostgresHealthRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresHealthRepository creates a new PostgreSQL adapter health
// repository.
func NewPostgresHealthRepository(pool *pgxpool.Pool) *PostgresHealthRepository {
	return &PostgresHealthRepository{pool: pool}
}

// Upsert writes the health record for a source.
func (r *PostgresHealthRepository) Upsert(ctx context.Context, h Health) error {
	query := `
		INSERT INTO adapter_health
			(source, is_active, last_success_at, last_failure_at,
			 consecutive_failures, total_requests, total_failures,
			 status_message, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			last_success_at = EXCLUDED.last_success_at,
			last_failure_at = EXCLUDED.last_failure_at,
			consecutive_failures = EXCLUDED.consecutive_failures,
			total_requests = EXCLUDED.total_requests,
			total_failures = EXCLUDED.total_failures,
			status_message = EXCLUDED.status_message,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		h.Source, h.IsActive, h.LastSuccessAt, h.LastFailureAt,
		h.ConsecutiveFailures, h.TotalRequests, h.TotalFailures,
		h.StatusMessage, h.UpdatedAt,
	)
	return err
}

// Get returns the stored record for a source.
func (r *PostgresHealthRepository) Get(ctx context.Context, source string) (*Health, error) {
	query := `
		SELECT source, is_active, last_success_at, last_failure_at,
		       consecutive_failures, total_requests, total_failures,
		       status_message, updated_at
		FROM adapter_health
		WHERE source = $1
	`

	var h Health
	err := r.pool.QueryRow(ctx, query, source).Scan(
		&h.Source, &h.IsActive, &h.LastSuccessAt, &h.LastFailureAt,
		&h.ConsecutiveFailures, &h.TotalRequests, &h.TotalFailures,
		&h.StatusMessage, &h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHealthNotFound
		}
		return nil, err
	}

	return &h, nil
}

// List returns all stored health records.
func (r *PostgresHealthRepository) List(ctx context.Context) ([]Health, error) {
	query := `
		SELECT source, is_active, last_success_at, last_failure_at,
		       consecutive_failures, total_requests, total_failures,
		       status_message, updated_at
		FROM adapter_health
		ORDER BY source
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Health
	for rows.Next() {
		var h Health
		if err := rows.Scan(
			&h.Source, &h.IsActive, &h.LastSuccessAt, &h.LastFailureAt,
			&h.ConsecutiveFailures, &h.TotalRequests, &h.TotalFailures,
			&h.StatusMessage, &h.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, h)
	}

	return records, rows.Err()
}
