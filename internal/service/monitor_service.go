package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"solana-custody-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/rs/zerolog"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultWatchExpiry  = time.Hour
	pollTimeout         = 30 * time.Second
)

// ErrMonitorStopped is returned when watching after Stop or before Start.
var ErrMonitorStopped = errors.New("payment monitor is not running")

// WatchOutcome describes why a watch ended.
type WatchOutcome string

const (
	WatchSettled   WatchOutcome = "settled"
	WatchExpired   WatchOutcome = "expired"
	WatchCancelled WatchOutcome = "cancelled"
	WatchStopped   WatchOutcome = "stopped"
)

// MonitorConfig tunes the polling monitor. Zero values select defaults.
type MonitorConfig struct {
	PollInterval time.Duration
	Expiry       time.Duration
}

// Watch is a single polling task for one payment.
type Watch struct {
	PaymentID uuid.UUID
	Address   string

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
	outcome    WatchOutcome
}

// Done is closed when the watch has ended.
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Outcome is valid once Done is closed.
func (w *Watch) Outcome() WatchOutcome {
	<-w.done
	return w.outcome
}

func (w *Watch) stop() {
	w.cancelOnce.Do(func() { close(w.cancel) })
}

// MonitorService implements ports.PaymentMonitor. Each watch polls the
// payment's address until the payment settles, the watch expires or it is
// cancelled.
type MonitorService struct {
	cfg      MonitorConfig
	payments ports.PaymentService
	sweeper  ports.SweepService
	chain    ports.ChainClient
	clock    clock.Clock
	log      zerolog.Logger

	// newTicker is swapped in tests for ticker.NewForce.
	newTicker func(time.Duration) ticker.Ticker

	started atomic.Bool
	stopped atomic.Bool

	mu      sync.Mutex
	watches map[uuid.UUID]*Watch

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(
	cfg MonitorConfig,
	payments ports.PaymentService,
	sweeper ports.SweepService,
	chain ports.ChainClient,
	clk clock.Clock,
	log zerolog.Logger,
) *MonitorService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = defaultWatchExpiry
	}
	return &MonitorService{
		cfg:      cfg,
		payments: payments,
		sweeper:  sweeper,
		chain:    chain,
		clock:    clk,
		log:      log,
		newTicker: func(d time.Duration) ticker.Ticker {
			return ticker.New(d)
		},
		watches: make(map[uuid.UUID]*Watch),
		quit:    make(chan struct{}),
	}
}

// Start allows watches to be added.
func (m *MonitorService) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}
	m.log.Info().
		Dur("poll_interval", m.cfg.PollInterval).
		Dur("expiry", m.cfg.Expiry).
		Msg("payment monitor started")
	return nil
}

// Stop ends all watches and waits for them to exit.
func (m *MonitorService) Stop() error {
	if !m.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(m.quit)
	m.wg.Wait()
	m.log.Info().Msg("payment monitor stopped")
	return nil
}

// Watch starts polling address for payment id.
func (m *MonitorService) Watch(paymentID uuid.UUID, address string) error {
	_, err := m.Add(paymentID, address)
	return err
}

// Add starts polling and returns the watch handle. Adding an already watched
// payment returns the existing handle.
func (m *MonitorService) Add(paymentID uuid.UUID, address string) (*Watch, error) {
	if !m.started.Load() || m.stopped.Load() {
		return nil, ErrMonitorStopped
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.watches[paymentID]; ok {
		return w, nil
	}

	w := &Watch{
		PaymentID: paymentID,
		Address:   address,
		cancel:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	m.watches[paymentID] = w

	m.wg.Add(1)
	go m.run(w)

	return w, nil
}

// Cancel stops the watch for paymentID. Returns false if none was running.
func (m *MonitorService) Cancel(paymentID uuid.UUID) bool {
	m.mu.Lock()
	w, ok := m.watches[paymentID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	w.stop()
	return true
}

// Active returns the number of running watches.
func (m *MonitorService) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}

func (m *MonitorService) run(w *Watch) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.watches, w.PaymentID)
		m.mu.Unlock()
		close(w.done)
	}()

	log := m.log.With().
		Str("payment_id", w.PaymentID.String()).
		Str("address", w.Address).
		Logger()

	t := m.newTicker(m.cfg.PollInterval)
	t.Resume()
	defer t.Stop()

	expiry := m.clock.TickAfter(m.cfg.Expiry)

	for {
		select {
		case <-t.Ticks():
			if m.poll(w, log) {
				w.outcome = WatchSettled
				return
			}

		case <-expiry:
			w.outcome = WatchExpired
			log.Info().Msg("payment watch expired")
			return

		case <-w.cancel:
			w.outcome = WatchCancelled
			log.Debug().Msg("payment watch cancelled")
			return

		case <-m.quit:
			w.outcome = WatchStopped
			return
		}
	}
}

// poll returns true once the payment is no longer pending.
func (m *MonitorService) poll(w *Watch, log zerolog.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	payment, err := m.payments.Get(ctx, w.PaymentID)
	if err != nil {
		log.Warn().Err(err).Msg("monitor failed to load payment")
		return false
	}
	if payment.IsTerminal() {
		return true
	}

	balance, err := m.chain.GetBalance(ctx, w.Address)
	if err != nil {
		log.Debug().Err(err).Msg("monitor balance query failed")
		return false
	}
	if !payment.IsCoveredBy(balance) {
		return false
	}

	won, err := m.payments.Complete(ctx, w.PaymentID, balance, "")
	if err != nil {
		log.Warn().Err(err).Msg("monitor failed to complete payment")
		return false
	}
	if !won {
		return true
	}

	log.Info().Uint64("lamports", balance).Msg("payment completed by balance monitor")
	if _, err := m.sweeper.Sweep(ctx, w.Address); err != nil {
		log.Error().Err(err).Msg("sweep after monitored completion failed")
	}
	return true
}
