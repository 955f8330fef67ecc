package handler

import (
	"errors"
	"io"

	"solana-custody-gateway/internal/adapter/http/dto"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/pkg/apperror"
	"solana-custody-gateway/pkg/response"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the operator endpoints.
type AdminHandler struct {
	custody   ports.KeyCustodyService
	sweeper   ports.SweepService
	payments  ports.PaymentService
	addresses ports.AddressService
	reporting ports.ReportingService
	monitor   ports.PaymentMonitor // optional
}

// AdminDeps groups the services behind the operator endpoints.
type AdminDeps struct {
	Custody   ports.KeyCustodyService
	Sweeper   ports.SweepService
	Payments  ports.PaymentService
	Addresses ports.AddressService
	Reporting ports.ReportingService
	Monitor   ports.PaymentMonitor
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	return &AdminHandler{
		custody:   deps.Custody,
		sweeper:   deps.Sweeper,
		payments:  deps.Payments,
		addresses: deps.Addresses,
		reporting: deps.Reporting,
		monitor:   deps.Monitor,
	}
}

// ProvisionMasterKey handles POST /api/v1/admin/master-key. Without a
// private key in the body a fresh keypair is generated.
func (h *AdminHandler) ProvisionMasterKey(c *gin.Context) {
	var req dto.MasterKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	var key solana.PrivateKey
	if req.PrivateKey == "" {
		generated, err := solana.NewRandomPrivateKey()
		if err != nil {
			response.Error(c, apperror.InternalError(err))
			return
		}
		key = generated
	} else {
		parsed, err := solana.PrivateKeyFromBase58(req.PrivateKey)
		if err != nil {
			response.Error(c, apperror.ErrInvalidKeyMaterial(err))
			return
		}
		key = parsed
	}

	address, err := h.custody.StoreMasterKey(c.Request.Context(), key, req.Parts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.MasterKeyResponse{Address: address, Parts: req.Parts})
}

// GetMasterKey handles GET /api/v1/admin/master-key. It proves the key can
// be reconstructed and reports its public address.
func (h *AdminHandler) GetMasterKey(c *gin.Context) {
	key, err := h.custody.RetrieveMasterKey(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.MasterKeyResponse{Address: key.PublicKey().String()})
}

// Sweep handles POST /api/v1/admin/sweeps/:address.
func (h *AdminHandler) Sweep(c *gin.Context) {
	address := c.Param("address")
	if !dto.IsSolanaAddress(address) {
		response.Error(c, apperror.Validation("invalid address"))
		return
	}

	result, err := h.sweeper.Sweep(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewSweepResponse(result))
}

// ListSweeps handles GET /api/v1/admin/sweeps.
func (h *AdminHandler) ListSweeps(c *gin.Context) {
	var q dto.SweepListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	records, err := h.sweeper.History(c.Request.Context(), q.Params())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// CancelPayment handles POST /api/v1/admin/payments/:id/cancel.
func (h *AdminHandler) CancelPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid payment id"))
		return
	}

	ok, err := h.payments.Cancel(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.Error(c, apperror.ErrPaymentNotPending())
		return
	}
	if h.monitor != nil {
		h.monitor.Cancel(id)
	}

	response.OK(c, gin.H{"id": id.String(), "status": "failed"})
}

// DeactivateAddress handles POST /api/v1/admin/addresses/:address/deactivate.
func (h *AdminHandler) DeactivateAddress(c *gin.Context) {
	address := c.Param("address")
	if err := h.addresses.Deactivate(c.Request.Context(), address); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"address": address, "is_active": false})
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.reporting.Stats(c.Request.Context(), c.DefaultQuery("period", "all"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
