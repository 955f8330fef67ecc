package service

import (
	"context"
	"fmt"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/pkg/apperror"

	"github.com/gagliardetto/solana-go"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"
)

// AddressServiceImpl implements ports.AddressService.
type AddressServiceImpl struct {
	custody ports.KeyCustodyService
	repo    ports.AddressRepository
	watcher ports.AddressWatcher // optional
	clock   clock.Clock
	log     zerolog.Logger
}

// NewAddressService creates a new AddressServiceImpl. watcher may be nil.
func NewAddressService(
	custody ports.KeyCustodyService,
	repo ports.AddressRepository,
	watcher ports.AddressWatcher,
	clk clock.Clock,
	log zerolog.Logger,
) *AddressServiceImpl {
	return &AddressServiceImpl{
		custody: custody,
		repo:    repo,
		watcher: watcher,
		clock:   clk,
		log:     log,
	}
}

// GenerateAddress creates a fresh keypair, stores its key and starts tracking
// the address. The address is usable only if both writes succeed.
func (s *AddressServiceImpl) GenerateAddress(ctx context.Context) (*domain.TrackedAddress, solana.PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("generate keypair: %w", err))
	}
	address := key.PublicKey().String()

	if err := s.custody.StoreAddressKey(ctx, address, key); err != nil {
		return nil, nil, err
	}

	now := s.clock.Now().UTC()
	tracked := &domain.TrackedAddress{
		Address:   address,
		KeyRef:    domain.AddressKeyID(address).String(),
		Balance:   0,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, tracked); err != nil {
		if delErr := s.custody.DeleteAddressKey(ctx, address); delErr != nil {
			s.log.Error().Err(delErr).Str("address", address).Msg("failed to remove key of unprovisioned address")
		}
		return nil, nil, apperror.ErrDatabaseError(fmt.Errorf("create tracked address: %w", err))
	}

	if s.watcher != nil {
		if err := s.watcher.Watch(ctx, address); err != nil {
			s.log.Warn().Err(err).Str("address", address).Msg("failed to subscribe address to webhook feed")
		}
	}

	s.log.Info().Str("address", address).Msg("address provisioned")
	return tracked, key, nil
}

// Deactivate stops balance tracking for address.
func (s *AddressServiceImpl) Deactivate(ctx context.Context, address string) error {
	ok, err := s.repo.Deactivate(ctx, address)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("deactivate address: %w", err))
	}
	if !ok {
		return apperror.ErrNotFound("Address")
	}
	s.log.Info().Str("address", address).Msg("address deactivated")
	return nil
}
