package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/internal/metrics"
	"solana-custody-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"
)

const correlationTTL = time.Hour

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	repo        ports.PaymentRepository
	addressRepo ports.AddressRepository
	addresses   ports.AddressService
	correlation ports.CorrelationIndex
	chain       ports.ChainClient
	metrics     *metrics.Metrics
	clock       clock.Clock
	log         zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	repo ports.PaymentRepository,
	addressRepo ports.AddressRepository,
	addresses ports.AddressService,
	correlation ports.CorrelationIndex,
	chain ports.ChainClient,
	m *metrics.Metrics,
	clk clock.Clock,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		repo:        repo,
		addressRepo: addressRepo,
		addresses:   addresses,
		correlation: correlation,
		chain:       chain,
		metrics:     m,
		clock:       clk,
		log:         log,
	}
}

// Create validates the request, provisions a receiving address and records
// a pending payment against it.
func (s *PaymentServiceImpl) Create(ctx context.Context, req ports.CreatePaymentRequest) (*domain.Payment, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.NativeCurrency
	}
	if currency != domain.NativeCurrency {
		return nil, apperror.ErrUnsupportedCurrency(req.Currency)
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if _, err := domain.SOLToLamports(req.Amount); err != nil {
		return nil, apperror.Validation("amount must have at most 9 decimal places")
	}

	tracked, _, err := s.addresses.GenerateAddress(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	now := s.clock.Now().UTC()
	payment := &domain.Payment{
		ID:         id,
		Amount:     req.Amount,
		Currency:   currency,
		Address:    tracked.Address,
		Status:     domain.PaymentStatusPending,
		MerchantID: req.MerchantID,
		OrderID:    req.OrderID,
		Metadata:   req.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create payment: %w", err))
	}

	// Indexed only once the row exists, so a lookup never resolves to a
	// missing payment.
	if err := s.correlation.Track(ctx, tracked.Address, id, correlationTTL); err != nil {
		// The durable row still links address and payment.
		s.log.Warn().Err(err).Str("address", tracked.Address).Str("payment_id", id.String()).
			Msg("failed to index payment address in redis")
	}

	s.metrics.PaymentCreated()
	s.log.Info().
		Str("payment_id", id.String()).
		Str("address", tracked.Address).
		Str("amount", req.Amount.String()).
		Msg("payment created")

	return payment, nil
}

// Get returns the payment by id.
func (s *PaymentServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get payment: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Payment")
	}
	return p, nil
}

// StatusByAddress reports the payment behind address together with the live
// balance. When the RPC is unavailable the last recorded balance is used.
func (s *PaymentServiceImpl) StatusByAddress(ctx context.Context, address string) (*ports.PaymentStatusView, error) {
	p, err := s.repo.GetByAddress(ctx, address)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get payment by address: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Payment")
	}

	lamports, err := s.chain.GetBalance(ctx, address)
	if err != nil {
		s.log.Warn().Err(err).Str("address", address).Msg("balance query failed, using recorded balance")
		lamports = 0
		tracked, repoErr := s.addressRepo.GetByAddress(ctx, address)
		if repoErr != nil {
			return nil, apperror.ErrChainUnavailable(err)
		}
		if tracked != nil && tracked.Balance > 0 {
			lamports = uint64(tracked.Balance)
		}
	}

	return &ports.PaymentStatusView{
		Payment:        p,
		CurrentBalance: domain.LamportsToSOL(lamports),
		IsPaid:         p.Status == domain.PaymentStatusCompleted || p.IsCoveredBy(lamports),
	}, nil
}

// Complete moves a pending payment to completed when observedLamports covers
// the requested amount. Returns true only for the caller that made the transition.
func (s *PaymentServiceImpl) Complete(ctx context.Context, id uuid.UUID, observedLamports uint64, signature string) (bool, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("get payment: %w", err))
	}
	if p == nil {
		return false, apperror.ErrNotFound("Payment")
	}
	if !p.IsPending() || !p.IsCoveredBy(observedLamports) {
		return false, nil
	}

	var sig *string
	if signature != "" {
		sig = &signature
	}

	won, err := s.repo.MarkCompleted(ctx, id, sig, s.clock.Now().UTC())
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("mark payment completed: %w", err))
	}
	if !won {
		return false, nil
	}

	s.metrics.PaymentCompleted()
	s.log.Info().
		Str("payment_id", id.String()).
		Str("address", p.Address).
		Str("signature", signature).
		Uint64("lamports", observedLamports).
		Msg("payment completed")
	return true, nil
}

// Cancel fails a pending payment. Returns false if it was no longer pending.
func (s *PaymentServiceImpl) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("get payment: %w", err))
	}
	if p == nil {
		return false, apperror.ErrNotFound("Payment")
	}
	if !p.IsPending() {
		return false, nil
	}

	ok, err := s.repo.MarkFailed(ctx, id, s.clock.Now().UTC())
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("mark payment failed: %w", err))
	}
	if ok {
		s.log.Info().Str("payment_id", id.String()).Str("address", p.Address).Msg("payment cancelled")
	}
	return ok, nil
}
