package domain

import "errors"

// Key custody errors. Callers distinguish them with errors.Is.
var (
	ErrEncryptionUnavailable   = errors.New("encryption secret is not configured")
	ErrIntegrity               = errors.New("ciphertext failed integrity check")
	ErrNoKeyProvisioned        = errors.New("no master key provisioned")
	ErrInsufficientFragments   = errors.New("insufficient key fragments")
	ErrNoUsableKey             = errors.New("no usable key for address")
	ErrInvalidFragmentCount    = errors.New("fragment count must be at least 2")
	ErrInvalidKeyMaterial      = errors.New("reconstructed key material is invalid")
	ErrColdWalletNotConfigured = errors.New("cold wallet address is not configured")
)

// Chain errors.
var (
	ErrConfirmationTimeout = errors.New("transaction not confirmed in time")
	ErrTransactionFailed   = errors.New("transaction failed on chain")
)
