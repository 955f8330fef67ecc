package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-custody-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AddressRepo implements ports.AddressRepository.
type AddressRepo struct {
	pool Pool
}

// NewAddressRepo creates a new AddressRepo.
func NewAddressRepo(pool Pool) *AddressRepo {
	return &AddressRepo{pool: pool}
}

// Create inserts a tracked address.
func (r *AddressRepo) Create(ctx context.Context, a *domain.TrackedAddress) error {
	query := `INSERT INTO tracked_addresses (address, key_ref, balance, is_active, last_swept_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		a.Address, a.KeyRef, a.Balance, a.IsActive, a.LastSweptAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tracked address: %w", err)
	}
	return nil
}

// GetByAddress fetches a tracked address. Returns nil, nil when not found.
func (r *AddressRepo) GetByAddress(ctx context.Context, address string) (*domain.TrackedAddress, error) {
	query := `SELECT address, key_ref, balance, is_active, last_swept_at, created_at, updated_at
		FROM tracked_addresses WHERE address = $1`

	a := &domain.TrackedAddress{}
	err := r.pool.QueryRow(ctx, query, address).Scan(
		&a.Address, &a.KeyRef, &a.Balance, &a.IsActive, &a.LastSweptAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tracked address: %w", err)
	}
	return a, nil
}

// SetBalance overwrites the recorded balance of an active address.
func (r *AddressRepo) SetBalance(ctx context.Context, address string, lamports int64) (bool, error) {
	query := `UPDATE tracked_addresses SET balance = $2, updated_at = NOW()
		WHERE address = $1 AND is_active`

	tag, err := r.pool.Exec(ctx, query, address, lamports)
	if err != nil {
		return false, fmt.Errorf("set address balance: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementBalance atomically adds lamports to an active address and
// returns the new balance.
func (r *AddressRepo) IncrementBalance(ctx context.Context, address string, lamports int64) (int64, bool, error) {
	query := `UPDATE tracked_addresses SET balance = balance + $2, updated_at = NOW()
		WHERE address = $1 AND is_active
		RETURNING balance`

	var balance int64
	err := r.pool.QueryRow(ctx, query, address, lamports).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("increment address balance: %w", err)
	}
	return balance, true, nil
}

// MarkSwept zeroes the balance and records the sweep time.
func (r *AddressRepo) MarkSwept(ctx context.Context, address string, at time.Time) error {
	query := `UPDATE tracked_addresses SET balance = 0, last_swept_at = $2, updated_at = $2
		WHERE address = $1`

	tag, err := r.pool.Exec(ctx, query, address, at)
	if err != nil {
		return fmt.Errorf("mark address swept: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tracked address not found: %s", address)
	}
	return nil
}

// Deactivate stops crediting and sweeping an address. Returns false if the
// address is unknown.
func (r *AddressRepo) Deactivate(ctx context.Context, address string) (bool, error) {
	query := `UPDATE tracked_addresses SET is_active = FALSE, updated_at = NOW() WHERE address = $1`

	tag, err := r.pool.Exec(ctx, query, address)
	if err != nil {
		return false, fmt.Errorf("deactivate address: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
