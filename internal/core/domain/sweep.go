package domain

import (
	"time"

	"github.com/google/uuid"
)

// SweepStatus is the outcome of a sweep attempt.
type SweepStatus string

const (
	SweepStatusCompleted SweepStatus = "completed"
	SweepStatusFailed    SweepStatus = "failed"
)

// SweepRecord is an append-only audit entry, one per sweep attempt.
type SweepRecord struct {
	ID            uuid.UUID   `json:"id"`
	FromAddress   string      `json:"from_address"`
	ToAddress     string      `json:"to_address"`
	Amount        int64       `json:"amount"` // Lamports moved; 0 on failure
	Signature     string      `json:"signature"`
	Status        SweepStatus `json:"status"`
	FailureReason *string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// ConfirmationStatus is the network's view of a submitted transaction.
type ConfirmationStatus string

const (
	ConfirmationUnknown   ConfirmationStatus = "unknown" // not yet seen by the node
	ConfirmationProcessed ConfirmationStatus = "processed"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationFinalized ConfirmationStatus = "finalized"
	ConfirmationFailed    ConfirmationStatus = "failed"
)

// IsConfirmed returns true once the transaction reached at least confirmed commitment.
func (s ConfirmationStatus) IsConfirmed() bool {
	return s == ConfirmationConfirmed || s == ConfirmationFinalized
}
