package handler

import (
	"solana-custody-gateway/internal/adapter/http/dto"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/pkg/apperror"
	"solana-custody-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// OperatorHandler exchanges operator credentials for bearer tokens.
type OperatorHandler struct {
	authSvc ports.OperatorAuthService
}

// NewOperatorHandler creates a new OperatorHandler.
func NewOperatorHandler(authSvc ports.OperatorAuthService) *OperatorHandler {
	return &OperatorHandler{authSvc: authSvc}
}

// Login handles POST /api/v1/auth/login.
func (h *OperatorHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	token, expiry, err := h.authSvc.Login(c.Request.Context(), req.Operator, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Bearer tokens must not land in shared caches.
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	response.OK(c, dto.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		Expiry:    expiry.Unix(),
	})
}
