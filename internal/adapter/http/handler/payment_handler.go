package handler

import (
	"solana-custody-gateway/internal/adapter/http/dto"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/pkg/apperror"
	"solana-custody-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentHandler handles the public payment endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
	monitor    ports.PaymentMonitor // nil = webhook-only settlement
	log        zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService, monitor ports.PaymentMonitor, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, monitor: monitor, log: log}
}

// Create handles POST /api/v1/payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	payment, err := h.paymentSvc.Create(c.Request.Context(), ports.CreatePaymentRequest{
		Amount:     *req.Amount,
		Currency:   req.Currency,
		MerchantID: req.MerchantID,
		OrderID:    req.OrderID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.monitor != nil {
		if err := h.monitor.Watch(payment.ID, payment.Address); err != nil {
			// The webhook path still settles the payment.
			h.log.Warn().Err(err).
				Str("payment_id", payment.ID.String()).
				Str("address", payment.Address).
				Msg("failed to start payment monitor")
		}
	}

	response.Created(c, dto.NewPaymentResponse(payment))
}

// Get handles GET /api/v1/payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid payment id"))
		return
	}

	payment, err := h.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPaymentResponse(payment))
}

// Status handles GET /api/v1/payments/status/:address.
func (h *PaymentHandler) Status(c *gin.Context) {
	address := c.Param("address")
	if !dto.IsSolanaAddress(address) {
		response.Error(c, apperror.Validation("invalid address"))
		return
	}

	view, err := h.paymentSvc.StatusByAddress(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPaymentStatusResponse(view))
}
