package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory implementations of the postgres repositories. They keep the
// conditional-update semantics of the SQL so races resolve the same way.

// --- Payments ---

type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (r *inMemoryPaymentRepo) Create(_ context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.Address == p.Address {
			return fmt.Errorf("duplicate payment address %s", p.Address)
		}
	}
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) GetByAddress(_ context.Context, address string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.Address == address {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentRepo) transition(id uuid.UUID, to domain.PaymentStatus, at time.Time, apply func(*domain.Payment)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false
	}
	p.Status = to
	p.UpdatedAt = at
	if apply != nil {
		apply(p)
	}
	return true
}

func (r *inMemoryPaymentRepo) MarkCompleted(_ context.Context, id uuid.UUID, signature *string, at time.Time) (bool, error) {
	return r.transition(id, domain.PaymentStatusCompleted, at, func(p *domain.Payment) {
		p.TransactionSignature = signature
		p.CompletedAt = &at
	}), nil
}

func (r *inMemoryPaymentRepo) MarkFailed(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(id, domain.PaymentStatusFailed, at, nil), nil
}

func (r *inMemoryPaymentRepo) Stats(_ context.Context, since *time.Time) (*domain.PaymentStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &domain.PaymentStats{CompletedVolume: decimal.Zero}
	for _, p := range r.payments {
		if since != nil && p.CreatedAt.Before(*since) {
			continue
		}
		switch p.Status {
		case domain.PaymentStatusPending:
			out.Pending++
		case domain.PaymentStatusCompleted:
			out.Completed++
			out.CompletedVolume = out.CompletedVolume.Add(p.Amount)
		case domain.PaymentStatusFailed:
			out.Failed++
		}
	}
	return out, nil
}

// --- Tracked addresses ---

type inMemoryAddressRepo struct {
	mu        sync.RWMutex
	addresses map[string]*domain.TrackedAddress
}

func newInMemoryAddressRepo() *inMemoryAddressRepo {
	return &inMemoryAddressRepo{addresses: make(map[string]*domain.TrackedAddress)}
}

func (r *inMemoryAddressRepo) Create(_ context.Context, a *domain.TrackedAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.addresses[a.Address]; ok {
		return fmt.Errorf("address %s already tracked", a.Address)
	}
	cp := *a
	r.addresses[a.Address] = &cp
	return nil
}

func (r *inMemoryAddressRepo) GetByAddress(_ context.Context, address string) (*domain.TrackedAddress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.addresses[address]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAddressRepo) SetBalance(_ context.Context, address string, lamports int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addresses[address]
	if !ok || !a.IsActive {
		return false, nil
	}
	a.Balance = lamports
	return true, nil
}

func (r *inMemoryAddressRepo) IncrementBalance(_ context.Context, address string, lamports int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addresses[address]
	if !ok || !a.IsActive {
		return 0, false, nil
	}
	a.Balance += lamports
	return a.Balance, true, nil
}

func (r *inMemoryAddressRepo) MarkSwept(_ context.Context, address string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addresses[address]
	if !ok {
		return fmt.Errorf("address %s not tracked", address)
	}
	a.Balance = 0
	a.LastSweptAt = &at
	return nil
}

func (r *inMemoryAddressRepo) Deactivate(_ context.Context, address string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.addresses[address]
	if !ok {
		return false, nil
	}
	a.IsActive = false
	return true, nil
}

// --- Sweeps ---

type inMemorySweepRepo struct {
	mu      sync.RWMutex
	records []domain.SweepRecord
}

func (r *inMemorySweepRepo) Create(_ context.Context, rec *domain.SweepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

func (r *inMemorySweepRepo) List(_ context.Context, params ports.SweepListParams) ([]domain.SweepRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.SweepRecord{}
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if params.Address != "" && rec.FromAddress != params.Address {
			continue
		}
		if params.Status != nil && rec.Status != *params.Status {
			continue
		}
		out = append(out, rec)
		if params.Limit > 0 && len(out) == params.Limit {
			break
		}
	}
	return out, nil
}

func (r *inMemorySweepRepo) Stats(_ context.Context, since *time.Time) (*domain.SweepStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &domain.SweepStats{}
	for _, rec := range r.records {
		if since != nil && rec.CreatedAt.Before(*since) {
			continue
		}
		if rec.Status == domain.SweepStatusCompleted {
			out.Completed++
			out.SweptLamports += rec.Amount
			continue
		}
		out.Failed++
	}
	return out, nil
}

func (r *inMemorySweepRepo) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// --- Key parts ---

type inMemoryKeyPartRepo struct {
	mu    sync.RWMutex
	parts map[int]domain.KeyPart
}

func newInMemoryKeyPartRepo() *inMemoryKeyPartRepo {
	return &inMemoryKeyPartRepo{parts: make(map[int]domain.KeyPart)}
}

func (r *inMemoryKeyPartRepo) Upsert(_ context.Context, part *domain.KeyPart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parts[part.Index] = *part
	return nil
}

func (r *inMemoryKeyPartRepo) Get(_ context.Context, index int) (*domain.KeyPart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parts[index]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// --- Audit ---

type inMemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *inMemoryAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryAuditRepo) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}
