package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-custody-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const paymentColumns = `id, amount::text, currency, address, status, merchant_id, order_id,
	metadata, transaction_signature, created_at, updated_at, completed_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new payment.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (id, amount, currency, address, status, merchant_id, order_id,
		metadata, transaction_signature, created_at, updated_at, completed_at)
		VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	var metadata []byte
	if len(p.Metadata) > 0 {
		metadata = p.Metadata
	}

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Amount.String(), p.Currency, p.Address, p.Status,
		p.MerchantID, p.OrderID, metadata, p.TransactionSignature,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment by UUID. Returns nil, nil when not found.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, id))
}

// GetByAddress fetches the most recent payment for a receiving address.
func (r *PaymentRepo) GetByAddress(ctx context.Context, address string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE address = $1
		ORDER BY created_at DESC LIMIT 1`
	return scanPayment(r.pool.QueryRow(ctx, query, address))
}

// MarkCompleted moves a pending payment to completed. Returns false if the
// payment was not pending.
func (r *PaymentRepo) MarkCompleted(ctx context.Context, id uuid.UUID, signature *string, completedAt time.Time) (bool, error) {
	query := `UPDATE payments
		SET status = 'completed', transaction_signature = COALESCE($2, transaction_signature),
			completed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.pool.Exec(ctx, query, id, signature, completedAt)
	if err != nil {
		return false, fmt.Errorf("mark payment completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed moves a pending payment to failed. Returns false if the
// payment was not pending.
func (r *PaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE payments SET status = 'failed', updated_at = $2
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Stats aggregates payments created at or after since.
func (r *PaymentRepo) Stats(ctx context.Context, since *time.Time) (*domain.PaymentStats, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		COUNT(*) FILTER (WHERE status = 'failed') AS failed,
		COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0)::text AS volume
		FROM payments WHERE ($1::timestamptz IS NULL OR created_at >= $1)`

	stats := &domain.PaymentStats{}
	var volume string
	err := r.pool.QueryRow(ctx, query, since).Scan(&stats.Pending, &stats.Completed, &stats.Failed, &volume)
	if err != nil {
		return nil, fmt.Errorf("get payment stats: %w", err)
	}
	if stats.CompletedVolume, err = decimal.NewFromString(volume); err != nil {
		return nil, fmt.Errorf("parse payment volume %q: %w", volume, err)
	}
	return stats, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	var amount string
	var metadata []byte
	err := row.Scan(
		&p.ID, &amount, &p.Currency, &p.Address, &p.Status, &p.MerchantID, &p.OrderID,
		&metadata, &p.TransactionSignature, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse payment amount %q: %w", amount, err)
	}
	if len(metadata) > 0 {
		p.Metadata = metadata
	}
	return p, nil
}
