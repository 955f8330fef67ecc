package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu        sync.RWMutex
	payments  map[uuid.UUID]*domain.Payment
	createErr error
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (r *inMemoryPaymentRepo) Create(_ context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
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
	var latest *domain.Payment
	for _, p := range r.payments {
		if p.Address == address && (latest == nil || p.CreatedAt.After(latest.CreatedAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *inMemoryPaymentRepo) MarkCompleted(_ context.Context, id uuid.UUID, signature *string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = domain.PaymentStatusCompleted
	p.TransactionSignature = signature
	p.CompletedAt = &at
	p.UpdatedAt = at
	return true, nil
}

func (r *inMemoryPaymentRepo) MarkFailed(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = domain.PaymentStatusFailed
	p.UpdatedAt = at
	return true, nil
}

func (r *inMemoryPaymentRepo) Stats(_ context.Context, since *time.Time) (*domain.PaymentStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &domain.PaymentStats{CompletedVolume: decimal.Zero}
	for _, p := range r.payments {
		if since != nil && p.CreatedAt.Before(*since) {
			continue
		}
		switch p.Status {
		case domain.PaymentStatusPending:
			stats.Pending++
		case domain.PaymentStatusCompleted:
			stats.Completed++
			stats.CompletedVolume = stats.CompletedVolume.Add(p.Amount)
		case domain.PaymentStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (r *inMemoryPaymentRepo) get(id uuid.UUID) *domain.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// --- In-Memory Address Repo ---

type inMemoryAddressRepo struct {
	mu        sync.RWMutex
	addresses map[string]*domain.TrackedAddress
	createErr error
}

func newInMemoryAddressRepo() *inMemoryAddressRepo {
	return &inMemoryAddressRepo{addresses: make(map[string]*domain.TrackedAddress)}
}

func (r *inMemoryAddressRepo) Create(_ context.Context, a *domain.TrackedAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.addresses[a.Address]; ok {
		return fmt.Errorf("address already tracked")
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
		return fmt.Errorf("address not found")
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

// --- In-Memory Sweep Repo ---

type inMemorySweepRepo struct {
	mu      sync.RWMutex
	records []domain.SweepRecord
}

func newInMemorySweepRepo() *inMemorySweepRepo {
	return &inMemorySweepRepo{}
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
	var out []domain.SweepRecord
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
	stats := &domain.SweepStats{}
	for _, rec := range r.records {
		if since != nil && rec.CreatedAt.Before(*since) {
			continue
		}
		if rec.Status == domain.SweepStatusCompleted {
			stats.Completed++
			stats.SweptLamports += rec.Amount
		} else {
			stats.Failed++
		}
	}
	return stats, nil
}

func (r *inMemorySweepRepo) all() []domain.SweepRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.SweepRecord(nil), r.records...)
}

// --- In-Memory Key Part Repo ---

type inMemoryKeyPartRepo struct {
	mu    sync.RWMutex
	parts map[int]*domain.KeyPart
}

func newInMemoryKeyPartRepo() *inMemoryKeyPartRepo {
	return &inMemoryKeyPartRepo{parts: make(map[int]*domain.KeyPart)}
}

func (r *inMemoryKeyPartRepo) Upsert(_ context.Context, part *domain.KeyPart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *part
	r.parts[part.Index] = &cp
	return nil
}

func (r *inMemoryKeyPartRepo) Get(_ context.Context, index int) (*domain.KeyPart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parts[index]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *inMemoryAuditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *log)
	return nil
}

// --- In-Memory Volatile Stores ---

type fragmentEntry struct {
	value string
	ttl   time.Duration
}

type inMemoryFragmentStore struct {
	mu      sync.RWMutex
	entries map[string]fragmentEntry
}

func newInMemoryFragmentStore() *inMemoryFragmentStore {
	return &inMemoryFragmentStore{entries: make(map[string]fragmentEntry)}
}

func (s *inMemoryFragmentStore) Put(_ context.Context, id domain.KeyID, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id.String()] = fragmentEntry{value: value, ttl: ttl}
	return nil
}

func (s *inMemoryFragmentStore) Get(_ context.Context, id domain.KeyID) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id.String()]
	return e.value, ok, nil
}

func (s *inMemoryFragmentStore) Delete(_ context.Context, id domain.KeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id.String())
	return nil
}

func (s *inMemoryFragmentStore) expire(id domain.KeyID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id.String())
}

type inMemoryCorrelationIndex struct {
	mu      sync.RWMutex
	entries map[string]uuid.UUID
}

func newInMemoryCorrelationIndex() *inMemoryCorrelationIndex {
	return &inMemoryCorrelationIndex{entries: make(map[string]uuid.UUID)}
}

func (c *inMemoryCorrelationIndex) Track(_ context.Context, address string, id uuid.UUID, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[address] = id
	return nil
}

func (c *inMemoryCorrelationIndex) Lookup(_ context.Context, address string) (uuid.UUID, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[address]
	return id, ok, nil
}

type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newInMemoryDeduper() *inMemoryDeduper {
	return &inMemoryDeduper{seen: make(map[string]bool)}
}

func (d *inMemoryDeduper) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

// --- Fake Chain ---

// fakeChain simulates the RPC. Confirmed transfers move lamports from the
// source balance to the destination.
type fakeChain struct {
	mu         sync.Mutex
	balances   map[string]uint64
	sent       []*solana.Transaction
	balanceErr error
	sendErr    error
	status     domain.ConfirmationStatus
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances: make(map[string]uint64),
		status:   domain.ConfirmationFinalized,
	}
}

func (c *fakeChain) setBalance(address string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address] = lamports
}

func (c *fakeChain) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeChain) GetBalance(_ context.Context, address string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balanceErr != nil {
		return 0, c.balanceErr
	}
	return c.balances[address], nil
}

func (c *fakeChain) GetLatestBlockhash(_ context.Context) (solana.Hash, error) {
	return solana.Hash{1, 2, 3}, nil
}

func (c *fakeChain) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return solana.Signature{}, c.sendErr
	}
	c.sent = append(c.sent, tx)

	keys := tx.Message.AccountKeys
	if len(keys) >= 2 && len(tx.Message.Instructions) > 0 {
		from, to := keys[0].String(), keys[1].String()
		data := tx.Message.Instructions[0].Data
		if len(data) >= 12 {
			var lamports uint64
			for i := 0; i < 8; i++ {
				lamports |= uint64(data[4+i]) << (8 * i)
			}
			c.balances[from] -= lamports
			c.balances[to] += lamports
		}
	}
	return tx.Signatures[0], nil
}

func (c *fakeChain) GetSignatureStatus(_ context.Context, _ solana.Signature) (domain.ConfirmationStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, nil
}
