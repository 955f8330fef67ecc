package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	transferDedupeTTL = 24 * time.Hour

	// DefaultSweepThreshold is 0.1 SOL.
	DefaultSweepThreshold uint64 = 100_000_000
)

// WebhookProcessorImpl implements ports.WebhookProcessor.
type WebhookProcessorImpl struct {
	payments    ports.PaymentService
	paymentRepo ports.PaymentRepository
	addressRepo ports.AddressRepository
	sweeper     ports.SweepService
	chain       ports.ChainClient
	deduper     ports.TransferDeduper
	correlation ports.CorrelationIndex
	notifier    ports.Notifier // optional
	threshold   uint64
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewWebhookProcessor creates a new WebhookProcessorImpl. A zero sweepThreshold
// selects DefaultSweepThreshold; notifier may be nil.
func NewWebhookProcessor(
	payments ports.PaymentService,
	paymentRepo ports.PaymentRepository,
	addressRepo ports.AddressRepository,
	sweeper ports.SweepService,
	chain ports.ChainClient,
	deduper ports.TransferDeduper,
	correlation ports.CorrelationIndex,
	notifier ports.Notifier,
	sweepThreshold uint64,
	m *metrics.Metrics,
	log zerolog.Logger,
) *WebhookProcessorImpl {
	if sweepThreshold == 0 {
		sweepThreshold = DefaultSweepThreshold
	}
	return &WebhookProcessorImpl{
		payments:    payments,
		paymentRepo: paymentRepo,
		addressRepo: addressRepo,
		sweeper:     sweeper,
		chain:       chain,
		deduper:     deduper,
		correlation: correlation,
		notifier:    notifier,
		threshold:   sweepThreshold,
		metrics:     m,
		log:         log,
	}
}

// Process applies every native transfer in events. A failing transfer does
// not stop the batch; all failures are joined into the returned error so the
// provider redelivers.
func (p *WebhookProcessorImpl) Process(ctx context.Context, events []domain.TransferEvent) (*ports.ProcessResult, error) {
	res := &ports.ProcessResult{}
	var errs []error

	for _, ev := range events {
		for i, t := range ev.Transfers {
			res.Transfers++
			if err := p.processTransfer(ctx, ev.Signature, i, t, res); err != nil {
				p.metrics.Transfer(metrics.OutcomeError)
				errs = append(errs, err)
			}
		}
	}

	return res, errors.Join(errs...)
}

func (p *WebhookProcessorImpl) processTransfer(ctx context.Context, signature string, index int, t domain.NativeTransfer, res *ports.ProcessResult) error {
	if t.ToAddress == "" || t.Lamports == 0 {
		res.Ignored++
		p.metrics.Transfer(metrics.OutcomeIgnored)
		return nil
	}

	key := domain.TransferKey(signature, index, t)
	claimed, err := p.deduper.Claim(ctx, key, transferDedupeTTL)
	degraded := err != nil
	if degraded {
		// Ledger transitions stay conditional, so processing without dedupe is safe.
		p.log.Warn().Err(err).Str("transfer", key).Msg("transfer dedupe unavailable, processing anyway")
		claimed = true
	}
	if !claimed {
		res.Duplicates++
		p.metrics.Transfer(metrics.OutcomeDuplicate)
		p.log.Debug().Str("transfer", key).Msg("duplicate transfer delivery skipped")
		return nil
	}

	if err := p.apply(ctx, signature, t, res); err != nil {
		if !degraded {
			if relErr := p.deduper.Release(ctx, key); relErr != nil {
				p.log.Warn().Err(relErr).Str("transfer", key).Msg("failed to release transfer claim")
			}
		}
		return fmt.Errorf("transfer %s: %w", key, err)
	}
	return nil
}

func (p *WebhookProcessorImpl) apply(ctx context.Context, signature string, t domain.NativeTransfer, res *ports.ProcessResult) error {
	payment, err := p.pendingPayment(ctx, t.ToAddress)
	if err != nil {
		return err
	}
	if payment != nil {
		return p.applyToPayment(ctx, payment, signature, t, res)
	}
	return p.applyToTrackedAddress(ctx, t, res)
}

// pendingPayment resolves the pending payment waiting on address, if any.
func (p *WebhookProcessorImpl) pendingPayment(ctx context.Context, address string) (*domain.Payment, error) {
	id, found, err := p.correlation.Lookup(ctx, address)
	if err != nil {
		p.log.Warn().Err(err).Str("address", address).Msg("payment index unavailable, falling back to database")
		payment, dbErr := p.paymentRepo.GetByAddress(ctx, address)
		if dbErr != nil {
			return nil, fmt.Errorf("get payment by address: %w", dbErr)
		}
		if payment == nil || !payment.IsPending() {
			return nil, nil
		}
		return payment, nil
	}
	if !found {
		return nil, nil
	}

	payment, err := p.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment == nil || !payment.IsPending() {
		return nil, nil
	}
	return payment, nil
}

func (p *WebhookProcessorImpl) applyToPayment(ctx context.Context, payment *domain.Payment, signature string, t domain.NativeTransfer, res *ports.ProcessResult) error {
	log := p.log.With().
		Str("payment_id", payment.ID.String()).
		Str("address", t.ToAddress).
		Str("signature", signature).
		Logger()

	if !payment.IsCoveredBy(t.Lamports) {
		res.Underpaid++
		p.metrics.Transfer(metrics.OutcomeUnderpaid)
		log.Info().
			Str("received", domain.LamportsToSOL(t.Lamports).String()).
			Str("requested", payment.Amount.String()).
			Msg("underpayment received, payment stays pending")
		return nil
	}

	won, err := p.payments.Complete(ctx, payment.ID, t.Lamports, signature)
	if err != nil {
		return err
	}
	if !won {
		// Another delivery completed it first.
		res.Duplicates++
		p.metrics.Transfer(metrics.OutcomeDuplicate)
		return nil
	}
	res.Completed++
	p.metrics.Transfer(metrics.OutcomeCompleted)

	// Past this point the completion is committed; nothing below may fail the transfer.
	observed := p.observedBalance(ctx, t)
	if _, err := p.addressRepo.SetBalance(ctx, t.ToAddress, observed); err != nil {
		log.Error().Err(err).Msg("failed to record address balance after completion")
	}

	p.sweep(ctx, t.ToAddress, res)
	p.notify(ctx, payment.ID)
	return nil
}

func (p *WebhookProcessorImpl) applyToTrackedAddress(ctx context.Context, t domain.NativeTransfer, res *ports.ProcessResult) error {
	tracked, err := p.addressRepo.GetByAddress(ctx, t.ToAddress)
	if err != nil {
		return fmt.Errorf("get tracked address: %w", err)
	}
	if !tracked.CanReceive() {
		res.Ignored++
		p.metrics.Transfer(metrics.OutcomeIgnored)
		return nil
	}

	var (
		balance int64
		ok      bool
	)
	chainBalance, chainErr := p.chain.GetBalance(ctx, t.ToAddress)
	if chainErr == nil {
		balance = int64(chainBalance)
		ok, err = p.addressRepo.SetBalance(ctx, t.ToAddress, balance)
	} else {
		p.log.Warn().Err(chainErr).Str("address", t.ToAddress).Msg("balance query failed, crediting transfer amount")
		balance, ok, err = p.addressRepo.IncrementBalance(ctx, t.ToAddress, int64(t.Lamports))
	}
	if err != nil {
		return fmt.Errorf("update address balance: %w", err)
	}
	if !ok {
		// Deactivated concurrently.
		res.Ignored++
		p.metrics.Transfer(metrics.OutcomeIgnored)
		return nil
	}

	res.Credited++
	p.metrics.Transfer(metrics.OutcomeCredited)
	p.log.Info().
		Str("address", t.ToAddress).
		Uint64("lamports", t.Lamports).
		Int64("balance", balance).
		Msg("tracked address credited")

	if balance >= 0 && uint64(balance) >= p.threshold {
		p.sweep(ctx, t.ToAddress, res)
	}
	return nil
}

// observedBalance prefers the live chain balance over the transfer amount.
func (p *WebhookProcessorImpl) observedBalance(ctx context.Context, t domain.NativeTransfer) int64 {
	balance, err := p.chain.GetBalance(ctx, t.ToAddress)
	if err != nil || balance < t.Lamports {
		return int64(t.Lamports)
	}
	return int64(balance)
}

// sweep runs the sweep engine; failures are logged and counted only.
func (p *WebhookProcessorImpl) sweep(ctx context.Context, address string, res *ports.ProcessResult) {
	result, err := p.sweeper.Sweep(ctx, address)
	if err != nil {
		res.SweepFailures++
		p.log.Error().Err(err).Str("address", address).Msg("sweep after transfer failed")
		return
	}
	if !result.Skipped {
		res.Swept++
	}
}

func (p *WebhookProcessorImpl) notify(ctx context.Context, id uuid.UUID) {
	if p.notifier == nil {
		return
	}
	payment, err := p.paymentRepo.GetByID(ctx, id)
	if err != nil || payment == nil {
		p.log.Warn().Err(err).Str("payment_id", id.String()).Msg("cannot load completed payment for notification")
		return
	}
	if err := p.notifier.NotifyPaymentCompleted(ctx, payment); err != nil {
		p.log.Warn().Err(err).Str("payment_id", id.String()).Msg("failed to enqueue merchant notification")
	}
}
