package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"

	"github.com/shopspring/decimal"
)

// LoginRequest is the request body for operator login.
type LoginRequest struct {
	Operator string `json:"operator" binding:"required,safe_id,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	Expiry    int64  `json:"expiry"` // Unix timestamp
}

// CreatePaymentRequest is the request body for payment creation.
type CreatePaymentRequest struct {
	Amount     *decimal.Decimal `json:"amount" binding:"required"`
	Currency   string           `json:"currency" binding:"omitempty,max=10"`
	MerchantID *string          `json:"merchant_id,omitempty" binding:"omitempty,safe_id,max=100"`
	OrderID    *string          `json:"order_id,omitempty" binding:"omitempty,safe_id,max=100"`
	Metadata   json.RawMessage  `json:"metadata,omitempty"`
}

// PaymentResponse is the public view of a payment.
type PaymentResponse struct {
	ID                   string          `json:"id"`
	Address              string          `json:"address"`
	Amount               string          `json:"amount"`
	Currency             string          `json:"currency"`
	Status               string          `json:"status"`
	MerchantID           *string         `json:"merchant_id,omitempty"`
	OrderID              *string         `json:"order_id,omitempty"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
	TransactionSignature *string         `json:"transaction_signature,omitempty"`
	CreatedAt            string          `json:"created_at"`
	CompletedAt          *string         `json:"completed_at,omitempty"`
}

// PaymentStatusResponse answers a status query by receiving address.
type PaymentStatusResponse struct {
	Payment        PaymentResponse `json:"payment"`
	CurrentBalance string          `json:"current_balance"`
	IsPaid         bool            `json:"is_paid"`
}

// NewPaymentResponse converts a domain.Payment to its response DTO.
func NewPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                   p.ID.String(),
		Address:              p.Address,
		Amount:               p.Amount.String(),
		Currency:             p.Currency,
		Status:               string(p.Status),
		MerchantID:           p.MerchantID,
		OrderID:              p.OrderID,
		Metadata:             p.Metadata,
		TransactionSignature: p.TransactionSignature,
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
	}
	if p.CompletedAt != nil {
		s := p.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

// NewPaymentStatusResponse converts a status view to its response DTO.
func NewPaymentStatusResponse(v *ports.PaymentStatusView) PaymentStatusResponse {
	return PaymentStatusResponse{
		Payment:        NewPaymentResponse(v.Payment),
		CurrentBalance: v.CurrentBalance.String(),
		IsPaid:         v.IsPaid,
	}
}

// MasterKeyRequest provisions the master key. An empty PrivateKey asks the
// gateway to generate one.
type MasterKeyRequest struct {
	PrivateKey string `json:"private_key"`
	Parts      int    `json:"parts" binding:"omitempty,min=2,max=64"`
}

// MasterKeyResponse reports the master public address. Key material is never
// returned.
type MasterKeyResponse struct {
	Address string `json:"address"`
	Parts   int    `json:"parts,omitempty"`
}

// SweepResponse is the response body for a manual sweep.
type SweepResponse struct {
	Address   string `json:"address"`
	Signature string `json:"signature,omitempty"`
	Amount    int64  `json:"amount"`
	Skipped   bool   `json:"skipped"`
	Reason    string `json:"reason,omitempty"`
}

// NewSweepResponse converts a sweep result to its response DTO.
func NewSweepResponse(r *ports.SweepResult) SweepResponse {
	return SweepResponse{
		Address:   r.Address,
		Signature: r.Signature,
		Amount:    r.Amount,
		Skipped:   r.Skipped,
		Reason:    r.Reason,
	}
}

// SweepListQuery binds the sweep history filters.
type SweepListQuery struct {
	Address string `form:"address" binding:"omitempty,solana_address"`
	Status  string `form:"status" binding:"omitempty,oneof=completed failed"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// Params converts the query to repository list parameters.
func (q SweepListQuery) Params() ports.SweepListParams {
	p := ports.SweepListParams{Address: q.Address, Limit: q.Limit}
	if q.Status != "" {
		s := domain.SweepStatus(q.Status)
		p.Status = &s
	}
	return p
}

// --- Helius enhanced-transaction webhook ---

// HeliusNativeTransfer is one SOL movement in a Helius transaction.
type HeliusNativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          uint64 `json:"amount"` // lamports
}

// HeliusTransaction is the subset of the Helius enhanced transaction the
// gateway consumes.
type HeliusTransaction struct {
	Signature       string                 `json:"signature"`
	Type            string                 `json:"type"`
	Source          string                 `json:"source"`
	Timestamp       int64                  `json:"timestamp"`
	NativeTransfers []HeliusNativeTransfer `json:"nativeTransfers"`
}

// ErrEmptyWebhookBody is returned for an empty delivery.
var ErrEmptyWebhookBody = errors.New("empty webhook body")

// DecodeHeliusPayload accepts either the array Helius delivers or a single
// transaction object.
func DecodeHeliusPayload(body []byte) ([]HeliusTransaction, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyWebhookBody
	}

	if trimmed[0] == '[' {
		var txs []HeliusTransaction
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			return nil, err
		}
		return txs, nil
	}

	var tx HeliusTransaction
	if err := json.Unmarshal(trimmed, &tx); err != nil {
		return nil, err
	}
	return []HeliusTransaction{tx}, nil
}

// ToTransferEvents converts Helius transactions to domain transfer events.
func ToTransferEvents(txs []HeliusTransaction) []domain.TransferEvent {
	events := make([]domain.TransferEvent, 0, len(txs))
	for _, tx := range txs {
		ev := domain.TransferEvent{
			Signature: tx.Signature,
			Type:      tx.Type,
			Transfers: make([]domain.NativeTransfer, 0, len(tx.NativeTransfers)),
		}
		if tx.Timestamp > 0 {
			ev.Timestamp = time.Unix(tx.Timestamp, 0).UTC()
		}
		for _, nt := range tx.NativeTransfers {
			ev.Transfers = append(ev.Transfers, domain.NativeTransfer{
				FromAddress: nt.FromUserAccount,
				ToAddress:   nt.ToUserAccount,
				Lamports:    nt.Amount,
			})
		}
		events = append(events, ev)
	}
	return events
}
