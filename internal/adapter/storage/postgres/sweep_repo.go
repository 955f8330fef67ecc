package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"
)

// SweepRepo implements ports.SweepRepository. Records are never updated.
type SweepRepo struct {
	pool Pool
}

// NewSweepRepo creates a new SweepRepo.
func NewSweepRepo(pool Pool) *SweepRepo {
	return &SweepRepo{pool: pool}
}

// Create appends a sweep record.
func (r *SweepRepo) Create(ctx context.Context, rec *domain.SweepRecord) error {
	query := `INSERT INTO sweep_records (id, from_address, to_address, amount, signature, status,
		failure_reason, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.FromAddress, rec.ToAddress, rec.Amount, rec.Signature, rec.Status,
		rec.FailureReason, rec.CreatedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sweep record: %w", err)
	}
	return nil
}

// List returns sweep records newest first.
func (r *SweepRepo) List(ctx context.Context, params ports.SweepListParams) ([]domain.SweepRecord, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Address != "" {
		conditions = append(conditions, fmt.Sprintf("from_address = $%d", argIdx))
		args = append(args, params.Address)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT id, from_address, to_address, amount, signature, status,
		failure_reason, created_at, completed_at
		FROM sweep_records %s ORDER BY created_at DESC LIMIT $%d`, where, argIdx)
	args = append(args, params.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sweep records: %w", err)
	}
	defer rows.Close()

	var records []domain.SweepRecord
	for rows.Next() {
		var rec domain.SweepRecord
		err := rows.Scan(
			&rec.ID, &rec.FromAddress, &rec.ToAddress, &rec.Amount, &rec.Signature, &rec.Status,
			&rec.FailureReason, &rec.CreatedAt, &rec.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sweep record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweep records: %w", err)
	}
	return records, nil
}

// Stats aggregates sweep attempts created at or after since.
func (r *SweepRepo) Stats(ctx context.Context, since *time.Time) (*domain.SweepStats, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		COUNT(*) FILTER (WHERE status = 'failed') AS failed,
		COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0) AS swept
		FROM sweep_records WHERE ($1::timestamptz IS NULL OR created_at >= $1)`

	stats := &domain.SweepStats{}
	err := r.pool.QueryRow(ctx, query, since).Scan(&stats.Completed, &stats.Failed, &stats.SweptLamports)
	if err != nil {
		return nil, fmt.Errorf("get sweep stats: %w", err)
	}
	return stats, nil
}
