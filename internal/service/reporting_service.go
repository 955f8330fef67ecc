package service

import (
	"context"
	"fmt"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/pkg/apperror"

	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/sync/errgroup"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	paymentRepo ports.PaymentRepository
	sweepRepo   ports.SweepRepository
	clock       clock.Clock
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	paymentRepo ports.PaymentRepository,
	sweepRepo ports.SweepRepository,
	clk clock.Clock,
) ports.ReportingService {
	return &reportingService{
		paymentRepo: paymentRepo,
		sweepRepo:   sweepRepo,
		clock:       clk,
	}
}

// Stats returns payment and sweep aggregates for the period: day, week,
// month or all (the default).
func (s *reportingService) Stats(ctx context.Context, period string) (*domain.LedgerStats, error) {
	var since *time.Time
	now := s.clock.Now()

	switch period {
	case "day":
		t := now.AddDate(0, 0, -1)
		since = &t
	case "week":
		t := now.AddDate(0, 0, -7)
		since = &t
	case "month":
		t := now.AddDate(0, -1, 0)
		since = &t
	case "all", "":
		period = "all"
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	out := &domain.LedgerStats{Period: period}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.paymentRepo.Stats(gctx, since)
		if err != nil {
			return fmt.Errorf("payment stats: %w", err)
		}
		out.Payments = *stats
		return nil
	})
	g.Go(func() error {
		stats, err := s.sweepRepo.Stats(gctx, since)
		if err != nil {
			return fmt.Errorf("sweep stats: %w", err)
		}
		out.Sweeps = *stats
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	return out, nil
}
