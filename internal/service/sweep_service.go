package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/internal/metrics"
	"solana-custody-gateway/pkg/apperror"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultFeeReserve is the lamports left behind to pay the transfer fee.
	DefaultFeeReserve uint64 = 5000

	defaultSendRetries     = 3
	defaultRetryInterval   = 500 * time.Millisecond
	defaultConfirmAttempts = 30
	defaultConfirmInterval = 2 * time.Second

	// confirmSlack bounds the RPC and bookkeeping time on top of the
	// confirmation polls once a transfer has been submitted.
	confirmSlack = 30 * time.Second
	// recordTimeout bounds writing a sweep record.
	recordTimeout = 10 * time.Second

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SweepConfig tunes the sweep engine. Zero values select defaults.
type SweepConfig struct {
	ColdWallet      string
	FeeReserve      uint64
	SendRetries     int
	RetryInterval   time.Duration
	ConfirmAttempts int
	ConfirmInterval time.Duration
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.FeeReserve == 0 {
		c.FeeReserve = DefaultFeeReserve
	}
	if c.SendRetries <= 0 {
		c.SendRetries = defaultSendRetries
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.ConfirmAttempts <= 0 {
		c.ConfirmAttempts = defaultConfirmAttempts
	}
	if c.ConfirmInterval <= 0 {
		c.ConfirmInterval = defaultConfirmInterval
	}
	return c
}

// settleTimeout bounds confirmation and bookkeeping of a submitted transfer.
func (c SweepConfig) settleTimeout() time.Duration {
	return time.Duration(c.ConfirmAttempts)*c.ConfirmInterval + confirmSlack
}

// SweepServiceImpl implements ports.SweepService.
type SweepServiceImpl struct {
	cfg         SweepConfig
	custody     ports.KeyCustodyService
	chain       ports.ChainClient
	addressRepo ports.AddressRepository
	sweepRepo   ports.SweepRepository
	metrics     *metrics.Metrics
	clock       clock.Clock
	log         zerolog.Logger

	inflight singleflight.Group
}

// NewSweepService creates a new SweepServiceImpl.
func NewSweepService(
	cfg SweepConfig,
	custody ports.KeyCustodyService,
	chain ports.ChainClient,
	addressRepo ports.AddressRepository,
	sweepRepo ports.SweepRepository,
	m *metrics.Metrics,
	clk clock.Clock,
	log zerolog.Logger,
) *SweepServiceImpl {
	return &SweepServiceImpl{
		cfg:         cfg.withDefaults(),
		custody:     custody,
		chain:       chain,
		addressRepo: addressRepo,
		sweepRepo:   sweepRepo,
		metrics:     m,
		clock:       clk,
		log:         log,
	}
}

// Sweep transfers the address balance minus the fee reserve to the cold
// wallet. Concurrent calls for the same address share one execution.
func (s *SweepServiceImpl) Sweep(ctx context.Context, address string) (*ports.SweepResult, error) {
	v, err, shared := s.inflight.Do(address, func() (interface{}, error) {
		return s.sweep(ctx, address)
	})
	if shared {
		s.log.Debug().Str("address", address).Msg("joined in-flight sweep")
	}
	if err != nil {
		return nil, err
	}
	return v.(*ports.SweepResult), nil
}

func (s *SweepServiceImpl) sweep(ctx context.Context, address string) (*ports.SweepResult, error) {
	tracked, err := s.addressRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get tracked address: %w", err))
	}
	if tracked == nil {
		return skipped(address, "address is not tracked"), nil
	}
	if !tracked.IsActive {
		return skipped(address, "address is inactive"), nil
	}

	balance, err := s.chain.GetBalance(ctx, address)
	if err != nil {
		return nil, apperror.ErrChainUnavailable(fmt.Errorf("get balance: %w", err))
	}
	if balance <= s.cfg.FeeReserve {
		return skipped(address, "balance does not exceed fee reserve"), nil
	}
	amount := balance - s.cfg.FeeReserve

	log := s.log.With().Str("address", address).Uint64("lamports", amount).Logger()

	if s.cfg.ColdWallet == "" {
		s.recordFailure(ctx, address, "", domain.ErrColdWalletNotConfigured)
		log.Warn().Msg("sweep skipped, cold wallet is not configured")
		return nil, apperror.ErrColdWalletNotConfigured(domain.ErrColdWalletNotConfigured)
	}
	cold, err := solana.PublicKeyFromBase58(s.cfg.ColdWallet)
	if err != nil {
		s.recordFailure(ctx, address, "", err)
		return nil, apperror.ErrColdWalletNotConfigured(fmt.Errorf("parse cold wallet: %w", err))
	}

	key, err := s.custody.RetrieveAddressKey(ctx, address)
	if err != nil {
		s.recordFailure(ctx, address, "", err)
		log.Error().Err(err).Msg("no usable key, funds are stuck on address")
		return nil, err
	}

	blockhash, err := s.chain.GetLatestBlockhash(ctx)
	if err != nil {
		s.recordFailure(ctx, address, "", err)
		return nil, apperror.ErrChainUnavailable(fmt.Errorf("get blockhash: %w", err))
	}

	tx, err := buildTransfer(key, cold, amount, blockhash)
	if err != nil {
		s.recordFailure(ctx, address, "", err)
		return nil, apperror.ErrSweepFailed(err)
	}

	sig, err := s.submit(ctx, tx)
	if err != nil {
		s.recordFailure(ctx, address, "", err)
		log.Error().Err(err).Msg("sweep submission failed")
		return nil, apperror.ErrSweepFailed(err)
	}

	// The transfer is in flight: confirmation and records no longer follow
	// the caller's cancellation, only the engine's own bound.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.settleTimeout())
	defer cancel()

	if err := s.awaitConfirmation(ctx, sig); err != nil {
		s.recordFailure(ctx, address, sig.String(), err)
		log.Error().Err(err).Str("signature", sig.String()).Msg("sweep not confirmed")
		return nil, apperror.ErrSweepFailed(err)
	}

	now := s.clock.Now().UTC()
	record := &domain.SweepRecord{
		ID:          uuid.New(),
		FromAddress: address,
		ToAddress:   s.cfg.ColdWallet,
		Amount:      int64(amount),
		Signature:   sig.String(),
		Status:      domain.SweepStatusCompleted,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	// The transfer is final; bookkeeping failures must not report a failed sweep.
	if err := s.sweepRepo.Create(ctx, record); err != nil {
		log.Error().Err(err).Str("signature", sig.String()).Msg("failed to record completed sweep")
	}
	if err := s.addressRepo.MarkSwept(ctx, address, now); err != nil {
		log.Error().Err(err).Str("signature", sig.String()).Msg("failed to reset swept address balance")
	}
	s.metrics.Sweep(string(domain.SweepStatusCompleted), int64(amount))

	log.Info().Str("signature", sig.String()).Str("to", s.cfg.ColdWallet).Msg("address swept")

	return &ports.SweepResult{
		Address:   address,
		Signature: sig.String(),
		Amount:    int64(amount),
	}, nil
}

// submit sends the same signed transaction up to SendRetries times.
func (s *SweepServiceImpl) submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.SendRetries; attempt++ {
		sig, err := s.chain.SendTransaction(ctx, tx)
		if err == nil {
			return sig, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt).Msg("send transaction failed")

		if attempt < s.cfg.SendRetries {
			select {
			case <-s.clock.TickAfter(s.cfg.RetryInterval):
			case <-ctx.Done():
				return solana.Signature{}, ctx.Err()
			}
		}
	}
	return solana.Signature{}, fmt.Errorf("send transaction after %d attempts: %w", s.cfg.SendRetries, lastErr)
}

// awaitConfirmation polls the signature status a bounded number of times.
func (s *SweepServiceImpl) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	for attempt := 1; attempt <= s.cfg.ConfirmAttempts; attempt++ {
		status, err := s.chain.GetSignatureStatus(ctx, sig)
		switch {
		case err != nil:
			s.log.Debug().Err(err).Str("signature", sig.String()).Msg("signature status query failed")
		case status == domain.ConfirmationFailed:
			return domain.ErrTransactionFailed
		case status.IsConfirmed():
			return nil
		}

		if attempt < s.cfg.ConfirmAttempts {
			select {
			case <-s.clock.TickAfter(s.cfg.ConfirmInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return domain.ErrConfirmationTimeout
}

func (s *SweepServiceImpl) recordFailure(ctx context.Context, address, signature string, cause error) {
	reason := cause.Error()
	var appErr *apperror.AppError
	if errors.As(cause, &appErr) {
		reason = appErr.Message
		if appErr.Err != nil {
			reason = appErr.Err.Error()
		}
	}

	record := &domain.SweepRecord{
		ID:            uuid.New(),
		FromAddress:   address,
		ToAddress:     s.cfg.ColdWallet,
		Amount:        0,
		Signature:     signature,
		Status:        domain.SweepStatusFailed,
		FailureReason: &reason,
		CreatedAt:     s.clock.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.sweepRepo.Create(ctx, record); err != nil {
		s.log.Error().Err(err).Str("address", address).Msg("failed to record failed sweep")
	}
	s.metrics.Sweep(string(domain.SweepStatusFailed), 0)
}

// History lists sweep records, newest first.
func (s *SweepServiceImpl) History(ctx context.Context, params ports.SweepListParams) ([]domain.SweepRecord, error) {
	if params.Limit <= 0 {
		params.Limit = defaultHistoryLimit
	}
	if params.Limit > maxHistoryLimit {
		params.Limit = maxHistoryLimit
	}

	records, err := s.sweepRepo.List(ctx, params)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list sweeps: %w", err))
	}
	return records, nil
}

func buildTransfer(key solana.PrivateKey, to solana.PublicKey, lamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	from := key.PublicKey()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("build transfer: %w", err)
	}

	if _, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(from) {
			return &key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transfer: %w", err)
	}
	return tx, nil
}

func skipped(address, reason string) *ports.SweepResult {
	return &ports.SweepResult{Address: address, Skipped: true, Reason: reason}
}
