package postgres

import (
	"context"
	"errors"
	"fmt"

	"solana-custody-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// KeyPartRepo implements ports.KeyPartRepository.
type KeyPartRepo struct {
	pool Pool
}

// NewKeyPartRepo creates a new KeyPartRepo.
func NewKeyPartRepo(pool Pool) *KeyPartRepo {
	return &KeyPartRepo{pool: pool}
}

// Upsert stores the fragment at part.Index, replacing any previous one.
func (r *KeyPartRepo) Upsert(ctx context.Context, part *domain.KeyPart) error {
	query := `INSERT INTO key_parts (part_index, encrypted_part, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (part_index) DO UPDATE
		SET encrypted_part = EXCLUDED.encrypted_part, updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query, part.Index, part.EncryptedPart, part.CreatedAt, part.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert key part: %w", err)
	}
	return nil
}

// Get fetches the fragment at index. Returns nil, nil when not found.
func (r *KeyPartRepo) Get(ctx context.Context, index int) (*domain.KeyPart, error) {
	query := `SELECT part_index, encrypted_part, created_at, updated_at FROM key_parts WHERE part_index = $1`

	p := &domain.KeyPart{}
	err := r.pool.QueryRow(ctx, query, index).Scan(&p.Index, &p.EncryptedPart, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get key part: %w", err)
	}
	return p, nil
}
