package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog"
)

// EventPaymentCompleted is the only event merchants are notified about.
const EventPaymentCompleted = "PAYMENT_COMPLETED"

// HeaderSignature carries "t=<unix>,v1=<hmac>" on every notification.
const HeaderSignature = "X-Signature"

// defaultNotifyRetryIntervals are the waits between delivery attempts.
var defaultNotifyRetryIntervals = []time.Duration{
	15 * time.Second,
	time.Minute,
	2 * time.Minute,
	5 * time.Minute,
}

// NotificationPayload is the JSON body POSTed to the merchant endpoint.
type NotificationPayload struct {
	EventType string                  `json:"event_type"`
	Data      NotificationPaymentData `json:"data"`
}

// NotificationPaymentData holds the settled payment details.
type NotificationPaymentData struct {
	PaymentID            string  `json:"payment_id"`
	Address              string  `json:"address"`
	Amount               string  `json:"amount"`
	Currency             string  `json:"currency"`
	Status               string  `json:"status"`
	MerchantID           *string `json:"merchant_id,omitempty"`
	OrderID              *string `json:"order_id,omitempty"`
	TransactionSignature *string `json:"transaction_signature,omitempty"`
	CompletedAt          int64   `json:"completed_at"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NotificationConfig configures merchant notifications.
type NotificationConfig struct {
	URL            string
	Secret         string
	RetryIntervals []time.Duration
}

// NotificationService implements ports.Notifier with signed HTTP callbacks.
type NotificationService struct {
	cfg        NotificationConfig
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	clock      clock.Clock
	log        zerolog.Logger

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// NewNotificationService creates a new notification service. A nil
// retry schedule selects the default.
func NewNotificationService(
	cfg NotificationConfig,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	clk clock.Clock,
	log zerolog.Logger,
) *NotificationService {
	if cfg.RetryIntervals == nil {
		cfg.RetryIntervals = defaultNotifyRetryIntervals
	}
	return &NotificationService{
		cfg:        cfg,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		clock:      clk,
		log:        log,
		quit:       make(chan struct{}),
	}
}

// NotifyPaymentCompleted enqueues a PAYMENT_COMPLETED callback. Delivery
// happens in the background; the returned error only covers payload
// construction.
func (s *NotificationService) NotifyPaymentCompleted(_ context.Context, payment *domain.Payment) error {
	if s.cfg.URL == "" {
		return nil
	}
	if payment == nil {
		return fmt.Errorf("notify: nil payment")
	}

	completedAt := s.clock.Now()
	if payment.CompletedAt != nil {
		completedAt = *payment.CompletedAt
	}

	body, err := json.Marshal(NotificationPayload{
		EventType: EventPaymentCompleted,
		Data: NotificationPaymentData{
			PaymentID:            payment.ID.String(),
			Address:              payment.Address,
			Amount:               payment.Amount.String(),
			Currency:             payment.Currency,
			Status:               string(payment.Status),
			MerchantID:           payment.MerchantID,
			OrderID:              payment.OrderID,
			TransactionSignature: payment.TransactionSignature,
			CompletedAt:          completedAt.Unix(),
		},
	})
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	signature := s.sigSvc.Sign(s.cfg.Secret, s.clock.Now(), body)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliverWithRetries(body, signature, payment.ID.String())
	}()

	return nil
}

// Close stops pending retries and waits for in-flight deliveries.
func (s *NotificationService) Close() {
	s.once.Do(func() { close(s.quit) })
	s.wg.Wait()
}

func (s *NotificationService) deliverWithRetries(body []byte, signature, paymentID string) {
	log := s.log.With().Str("payment_id", paymentID).Logger()

	for attempt := 0; attempt <= len(s.cfg.RetryIntervals); attempt++ {
		if attempt > 0 {
			select {
			case <-s.clock.TickAfter(s.cfg.RetryIntervals[attempt-1]):
			case <-s.quit:
				log.Warn().Int("attempt", attempt).Msg("notify: shutting down, delivery abandoned")
				return
			}
		}

		status, err := s.deliver(body, signature)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("notify: delivery failed")
			continue
		}
		if status >= 200 && status < 300 {
			log.Info().Int("attempt", attempt+1).Int("status", status).Msg("notify: delivered")
			return
		}
		log.Warn().Int("attempt", attempt+1).Int("status", status).Msg("notify: non-2xx response, retrying")
	}

	log.Error().Msg("notify: all retry attempts exhausted")
}

func (s *NotificationService) deliver(body []byte, signature string) (int, error) {
	req, err := http.NewRequest(http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
