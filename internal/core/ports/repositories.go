package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"solana-custody-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// PaymentRepository defines persistence operations for payments.
// State changes are conditional single-row updates; the bool result reports
// whether this caller effected the transition.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByAddress(ctx context.Context, address string) (*domain.Payment, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, signature *string, completedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// Stats aggregates payments created at or after since; nil means all time.
	Stats(ctx context.Context, since *time.Time) (*domain.PaymentStats, error)
}

// AddressRepository defines persistence operations for tracked addresses.
// Balance mutations only apply to active addresses.
type AddressRepository interface {
	Create(ctx context.Context, addr *domain.TrackedAddress) error
	GetByAddress(ctx context.Context, address string) (*domain.TrackedAddress, error)
	SetBalance(ctx context.Context, address string, lamports int64) (bool, error)
	IncrementBalance(ctx context.Context, address string, lamports int64) (newBalance int64, ok bool, err error)
	MarkSwept(ctx context.Context, address string, at time.Time) error
	Deactivate(ctx context.Context, address string) (bool, error)
}

// SweepRepository is the append-only sweep audit trail.
type SweepRepository interface {
	Create(ctx context.Context, record *domain.SweepRecord) error
	List(ctx context.Context, params SweepListParams) ([]domain.SweepRecord, error)
	Stats(ctx context.Context, since *time.Time) (*domain.SweepStats, error)
}

// SweepListParams filters the sweep history. Empty Address lists all.
type SweepListParams struct {
	Address string
	Status  *domain.SweepStatus
	Limit   int
}

// KeyPartRepository stores the durable master key fragment.
type KeyPartRepository interface {
	Upsert(ctx context.Context, part *domain.KeyPart) error
	Get(ctx context.Context, index int) (*domain.KeyPart, error)
}

// AuditRepository persists operator audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
