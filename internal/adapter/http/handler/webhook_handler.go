package handler

import (
	"io"

	"solana-custody-gateway/internal/adapter/http/dto"
	"solana-custody-gateway/internal/adapter/http/middleware"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/pkg/apperror"
	"solana-custody-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler ingests Helius enhanced-transaction deliveries.
type WebhookHandler struct {
	processor ports.WebhookProcessor
	log       zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(processor ports.WebhookProcessor, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, log: log}
}

// Helius handles POST /api/v1/webhooks/helius. Any transfer failure answers
// 500 so the provider redelivers; already applied transfers are deduplicated
// on redelivery.
func (h *WebhookHandler) Helius(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return
		}
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	txs, err := dto.DecodeHeliusPayload(body)
	if err != nil {
		response.Error(c, apperror.Validation("invalid webhook payload"))
		return
	}

	result, err := h.processor.Process(c.Request.Context(), dto.ToTransferEvents(txs))
	if err != nil {
		h.log.Error().Err(err).Interface("result", result).Msg("webhook batch failed")
		response.Error(c, apperror.InternalError(err))
		return
	}

	h.log.Debug().Interface("result", result).Msg("webhook batch processed")
	response.OK(c, result)
}
