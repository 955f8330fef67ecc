package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is a request to receive a fixed amount on a one-time address.
type Payment struct {
	ID                   uuid.UUID       `json:"id"`
	Amount               decimal.Decimal `json:"amount"` // In ledger currency units (SOL)
	Currency             string          `json:"currency"`
	Address              string          `json:"address"`
	Status               PaymentStatus   `json:"status"`
	MerchantID           *string         `json:"merchant_id,omitempty"`
	OrderID              *string         `json:"order_id,omitempty"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
	TransactionSignature *string         `json:"transaction_signature,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the payment can no longer change state.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}

// IsPending returns true while the payment still awaits funds.
func (p *Payment) IsPending() bool {
	return p.Status == PaymentStatusPending
}

// IsCoveredBy reports whether an observed transfer of lamports satisfies the
// requested amount.
func (p *Payment) IsCoveredBy(lamports uint64) bool {
	return LamportsToSOL(lamports).GreaterThanOrEqual(p.Amount)
}
