package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"encoding/json"
	"time"

	"solana-custody-gateway/internal/core/domain"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EncryptionService handles authenticated encryption of key material.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

// SignatureService signs merchant notification bodies.
type SignatureService interface {
	// Sign returns the signature header value for body sent at ts.
	Sign(secret string, ts time.Time, body []byte) string
	Verify(secret, header string, body []byte, now time.Time, tolerance time.Duration) error
}

// HashService hashes and verifies operator passwords.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
}

// TokenService handles operator JWT tokens.
type TokenService interface {
	Generate(operator string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Operator string
}

// --- Volatile store ports (Redis) ---

// FragmentStore holds expiring key material addressed by domain.KeyID.
type FragmentStore interface {
	Put(ctx context.Context, id domain.KeyID, value string, ttl time.Duration) error
	// Get returns ok=false when the entry is missing or expired.
	Get(ctx context.Context, id domain.KeyID) (value string, ok bool, err error)
	Delete(ctx context.Context, id domain.KeyID) error
}

// CorrelationIndex maps receiving addresses to the payment that requested them.
type CorrelationIndex interface {
	Track(ctx context.Context, address string, paymentID uuid.UUID, ttl time.Duration) error
	Lookup(ctx context.Context, address string) (uuid.UUID, bool, error)
}

// TransferDeduper suppresses duplicate deliveries of the same transfer.
type TransferDeduper interface {
	// Claim returns true if the key was not seen before.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// --- External collaborators ---

// ChainClient is the subset of the Solana RPC the gateway depends on.
type ChainClient interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (domain.ConfirmationStatus, error)
}

// AddressWatcher subscribes an address to the upstream transfer feed.
type AddressWatcher interface {
	Watch(ctx context.Context, address string) error
}

// --- Service Ports (Business Logic) ---

// KeyCustodyService splits, encrypts, stores and reconstructs signing keys.
type KeyCustodyService interface {
	StoreMasterKey(ctx context.Context, key solana.PrivateKey, parts int) (string, error)
	RetrieveMasterKey(ctx context.Context) (solana.PrivateKey, error)
	StoreAddressKey(ctx context.Context, address string, key solana.PrivateKey) error
	RetrieveAddressKey(ctx context.Context, address string) (solana.PrivateKey, error)
	DeleteAddressKey(ctx context.Context, address string) error
}

// AddressService provisions receiving addresses.
type AddressService interface {
	GenerateAddress(ctx context.Context) (*domain.TrackedAddress, solana.PrivateKey, error)
	Deactivate(ctx context.Context, address string) error
}

// PaymentService is the payment ledger state machine.
type PaymentService interface {
	Create(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	StatusByAddress(ctx context.Context, address string) (*PaymentStatusView, error)
	Complete(ctx context.Context, id uuid.UUID, observedLamports uint64, signature string) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

// CreatePaymentRequest holds validated input for payment creation.
type CreatePaymentRequest struct {
	Amount     decimal.Decimal
	Currency   string
	MerchantID *string
	OrderID    *string
	Metadata   json.RawMessage
}

// PaymentStatusView is the status query answer for a receiving address.
type PaymentStatusView struct {
	Payment        *domain.Payment
	CurrentBalance decimal.Decimal
	IsPaid         bool
}

// SweepService moves an address's balance to the cold wallet.
type SweepService interface {
	Sweep(ctx context.Context, address string) (*SweepResult, error)
	History(ctx context.Context, params SweepListParams) ([]domain.SweepRecord, error)
}

// SweepResult describes a sweep call. Skipped is true for no-ops.
type SweepResult struct {
	Address   string
	Signature string
	Amount    int64
	Skipped   bool
	Reason    string
}

// WebhookProcessor ingests notified transfers.
type WebhookProcessor interface {
	Process(ctx context.Context, events []domain.TransferEvent) (*ProcessResult, error)
}

// ProcessResult counts transfer outcomes for one batch.
type ProcessResult struct {
	Transfers     int `json:"transfers"`
	Completed     int `json:"completed"`
	Underpaid     int `json:"underpaid"`
	Credited      int `json:"credited"`
	Ignored       int `json:"ignored"`
	Duplicates    int `json:"duplicates"`
	Swept         int `json:"swept"`
	SweepFailures int `json:"sweep_failures"`
}

// PaymentMonitor polls a payment's address as a fallback to webhooks.
type PaymentMonitor interface {
	Watch(paymentID uuid.UUID, address string) error
	Cancel(paymentID uuid.UUID) bool
}

// Notifier informs the merchant about settled payments.
type Notifier interface {
	NotifyPaymentCompleted(ctx context.Context, payment *domain.Payment) error
}

// OperatorAuthService exchanges operator credentials for a bearer token.
type OperatorAuthService interface {
	Login(ctx context.Context, operator, password string) (string, time.Time, error)
}

// ReportingService aggregates ledger and sweep activity for operators.
type ReportingService interface {
	Stats(ctx context.Context, period string) (*domain.LedgerStats, error)
}

// AuditService records operator actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
