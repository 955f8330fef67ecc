package service

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/pkg/apperror"

	"github.com/gagliardetto/solana-go"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"
)

const (
	// DefaultFragmentCount is used when StoreMasterKey is called with n == 0.
	DefaultFragmentCount = 3
	// maxFragmentIndex bounds the volatile fragment scan.
	maxFragmentIndex = 64
)

// KeyCustodyServiceImpl implements ports.KeyCustodyService.
type KeyCustodyServiceImpl struct {
	cipher    ports.EncryptionService
	keyParts  ports.KeyPartRepository
	fragments ports.FragmentStore
	clock     clock.Clock
	log       zerolog.Logger
}

// NewKeyCustodyService creates a new KeyCustodyServiceImpl.
func NewKeyCustodyService(
	cipher ports.EncryptionService,
	keyParts ports.KeyPartRepository,
	fragments ports.FragmentStore,
	clk clock.Clock,
	log zerolog.Logger,
) *KeyCustodyServiceImpl {
	return &KeyCustodyServiceImpl{
		cipher:    cipher,
		keyParts:  keyParts,
		fragments: fragments,
		clock:     clk,
		log:       log,
	}
}

// StoreMasterKey splits the master key into n encrypted fragments. Fragment 0
// goes to the durable store, the rest to the volatile store. Returns the
// master public address.
func (s *KeyCustodyServiceImpl) StoreMasterKey(ctx context.Context, key solana.PrivateKey, n int) (string, error) {
	if n == 0 {
		n = DefaultFragmentCount
	}
	if n < minFragments || n > maxFragmentIndex {
		return "", apperror.Validation(fmt.Sprintf("fragment count must be between %d and %d", minFragments, maxFragmentIndex))
	}
	if !isConsistentKeypair(key) {
		return "", apperror.ErrInvalidKeyMaterial(domain.ErrInvalidKeyMaterial)
	}

	parts, err := SplitSecret(key, n)
	if err != nil {
		return "", custodyError(err)
	}

	encrypted := make([]string, len(parts))
	for i, p := range parts {
		encrypted[i], err = s.cipher.Encrypt(p)
		if err != nil {
			return "", custodyError(fmt.Errorf("encrypt fragment %d: %w", i, err))
		}
	}

	now := s.clock.Now().UTC()
	if err := s.keyParts.Upsert(ctx, &domain.KeyPart{
		Index:         0,
		EncryptedPart: encrypted[0],
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		return "", apperror.ErrDatabaseError(fmt.Errorf("upsert key part 0: %w", err))
	}

	for i := 1; i < n; i++ {
		if err := s.fragments.Put(ctx, domain.FragmentKeyID(i), encrypted[i], domain.KeyFragmentTTL); err != nil {
			return "", apperror.ErrCacheError(fmt.Errorf("store fragment %d: %w", i, err))
		}
	}

	// A previous provisioning may have used more fragments.
	for i := n; i < maxFragmentIndex; i++ {
		id := domain.FragmentKeyID(i)
		_, ok, err := s.fragments.Get(ctx, id)
		if err != nil {
			return "", apperror.ErrCacheError(fmt.Errorf("probe stale fragment %d: %w", i, err))
		}
		if !ok {
			break
		}
		if err := s.fragments.Delete(ctx, id); err != nil {
			return "", apperror.ErrCacheError(fmt.Errorf("delete stale fragment %d: %w", i, err))
		}
	}

	address := key.PublicKey().String()
	s.log.Info().Str("address", address).Int("fragments", n).Msg("master key provisioned")
	return address, nil
}

// RetrieveMasterKey reassembles the master key from fragment 0 and the
// contiguous run of volatile fragments starting at index 1.
func (s *KeyCustodyServiceImpl) RetrieveMasterKey(ctx context.Context) (solana.PrivateKey, error) {
	part0, err := s.keyParts.Get(ctx, 0)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get key part 0: %w", err))
	}
	if part0 == nil {
		return nil, apperror.ErrNoKeyProvisioned(domain.ErrNoKeyProvisioned)
	}

	first, err := s.cipher.Decrypt(part0.EncryptedPart)
	if err != nil {
		return nil, custodyError(fmt.Errorf("decrypt fragment 0: %w", err))
	}
	parts := []string{first}

	for i := 1; i < maxFragmentIndex; i++ {
		enc, ok, err := s.fragments.Get(ctx, domain.FragmentKeyID(i))
		if err != nil {
			return nil, apperror.ErrCacheError(fmt.Errorf("get fragment %d: %w", i, err))
		}
		if !ok {
			break
		}
		p, err := s.cipher.Decrypt(enc)
		if err != nil {
			return nil, custodyError(fmt.Errorf("decrypt fragment %d: %w", i, err))
		}
		parts = append(parts, p)
	}

	secret, err := ReconstructSecret(parts)
	if err != nil && !errors.Is(err, domain.ErrInvalidKeyMaterial) {
		return nil, custodyError(err)
	}
	// Every fragment that was present decrypted, so a set that does not
	// reassemble into the keypair is missing a volatile fragment.
	if err != nil || !isConsistentKeypair(secret) {
		s.log.Warn().Int("fragments", len(parts)).Msg("master key fragments incomplete")
		return nil, apperror.ErrInsufficientFragments(
			fmt.Errorf("reconstructed %d fragments: %w", len(parts), domain.ErrInsufficientFragments))
	}

	return solana.PrivateKey(secret), nil
}

// StoreAddressKey encrypts and stores the full private key of a receiving address.
func (s *KeyCustodyServiceImpl) StoreAddressKey(ctx context.Context, address string, key solana.PrivateKey) error {
	if !isConsistentKeypair(key) || key.PublicKey().String() != address {
		return apperror.ErrInvalidKeyMaterial(domain.ErrInvalidKeyMaterial)
	}

	enc, err := s.cipher.Encrypt(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		return custodyError(fmt.Errorf("encrypt address key: %w", err))
	}

	if err := s.fragments.Put(ctx, domain.AddressKeyID(address), enc, domain.KeyFragmentTTL); err != nil {
		return apperror.ErrCacheError(fmt.Errorf("store address key: %w", err))
	}
	return nil
}

// RetrieveAddressKey returns the signing key for address. A missing entry,
// undecryptable entry or key that does not match the address all yield
// domain.ErrNoUsableKey; the cause is logged.
func (s *KeyCustodyServiceImpl) RetrieveAddressKey(ctx context.Context, address string) (solana.PrivateKey, error) {
	enc, ok, err := s.fragments.Get(ctx, domain.AddressKeyID(address))
	if err != nil {
		return nil, apperror.ErrCacheError(fmt.Errorf("get address key: %w", err))
	}
	if !ok {
		s.log.Warn().Str("address", address).Msg("address key missing or expired")
		return nil, apperror.ErrNoUsableKey(domain.ErrNoUsableKey)
	}

	plain, err := s.cipher.Decrypt(enc)
	if err != nil {
		s.log.Error().Err(err).Str("address", address).Msg("address key failed to decrypt")
		return nil, apperror.ErrNoUsableKey(domain.ErrNoUsableKey)
	}

	raw, err := base64.StdEncoding.DecodeString(plain)
	if err != nil || !isConsistentKeypair(raw) {
		s.log.Error().Str("address", address).Msg("address key is malformed")
		return nil, apperror.ErrNoUsableKey(domain.ErrNoUsableKey)
	}

	key := solana.PrivateKey(raw)
	if key.PublicKey().String() != address {
		s.log.Error().Str("address", address).Str("derived", key.PublicKey().String()).Msg("address key does not match address")
		return nil, apperror.ErrNoUsableKey(domain.ErrNoUsableKey)
	}
	return key, nil
}

// DeleteAddressKey removes the stored key for address.
func (s *KeyCustodyServiceImpl) DeleteAddressKey(ctx context.Context, address string) error {
	if err := s.fragments.Delete(ctx, domain.AddressKeyID(address)); err != nil {
		return apperror.ErrCacheError(fmt.Errorf("delete address key: %w", err))
	}
	return nil
}

// isConsistentKeypair reports whether b is a 64-byte ed25519 private key whose
// public half matches its seed.
func isConsistentKeypair(b []byte) bool {
	if len(b) != ed25519.PrivateKeySize {
		return false
	}
	return bytes.Equal(ed25519.NewKeyFromSeed(b[:ed25519.SeedSize]), b)
}

// custodyError maps key custody sentinels onto application errors.
func custodyError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEncryptionUnavailable):
		return apperror.ErrEncryptionUnavailable(err)
	case errors.Is(err, domain.ErrIntegrity):
		return apperror.ErrIntegrity(err)
	case errors.Is(err, domain.ErrInsufficientFragments):
		return apperror.ErrInsufficientFragments(err)
	case errors.Is(err, domain.ErrInvalidKeyMaterial):
		return apperror.ErrInvalidKeyMaterial(err)
	case errors.Is(err, domain.ErrInvalidFragmentCount):
		return apperror.Wrap("PAY_002", "Invalid fragment count", http.StatusBadRequest, err)
	default:
		return apperror.InternalError(err)
	}
}
