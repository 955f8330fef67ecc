package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Security (SEC) ----

func ErrInvalidWebhookSecret() *AppError {
	return New("SEC_001", "Invalid webhook secret", http.StatusUnauthorized)
}

// ---- Payment Ledger (PAY) ----

func ErrPaymentNotPending() *AppError {
	return New("PAY_001", "Payment is not pending", http.StatusConflict)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrUnsupportedCurrency(currency string) *AppError {
	return New("PAY_003", fmt.Sprintf("Unsupported currency %q", currency), http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Key Custody (KEY) ----

func ErrNoKeyProvisioned(err error) *AppError {
	return Wrap("KEY_001", "No master key provisioned", http.StatusNotFound, err)
}

func ErrInsufficientFragments(err error) *AppError {
	return Wrap("KEY_002", "Insufficient key fragments", http.StatusInternalServerError, err)
}

func ErrIntegrity(err error) *AppError {
	return Wrap("KEY_003", "Key material failed integrity check", http.StatusInternalServerError, err)
}

func ErrEncryptionUnavailable(err error) *AppError {
	return Wrap("KEY_004", "Encryption is not configured", http.StatusServiceUnavailable, err)
}

func ErrNoUsableKey(err error) *AppError {
	return Wrap("KEY_005", "No usable key for address", http.StatusInternalServerError, err)
}

func ErrInvalidKeyMaterial(err error) *AppError {
	return Wrap("KEY_006", "Invalid key material", http.StatusBadRequest, err)
}

// ---- Sweep Engine (SWP) ----

func ErrColdWalletNotConfigured(err error) *AppError {
	return Wrap("SWP_001", "Cold wallet is not configured", http.StatusServiceUnavailable, err)
}

func ErrSweepFailed(err error) *AppError {
	return Wrap("SWP_002", "Sweep failed", http.StatusBadGateway, err)
}

// ---- Chain (CHAIN) ----

func ErrChainUnavailable(err error) *AppError {
	return Wrap("CHAIN_001", "Solana RPC unavailable", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidCredentials() *AppError {
	return New("AUTH_002", "Invalid operator credentials", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrCacheError(err error) *AppError {
	return Wrap("SYS_002", "Cache unavailable", http.StatusServiceUnavailable, err)
}

func ErrPayloadTooLarge() *AppError {
	return New("SYS_003", "Request body too large", http.StatusRequestEntityTooLarge)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
