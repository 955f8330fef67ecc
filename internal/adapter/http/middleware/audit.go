package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful operator write operations. Routes are matched
// on their registered pattern, so it must run inside the router.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost {
			return
		}

		action, resourceType, resourceID := mapRouteToAction(c)
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Operator:     c.GetString(CtxOperator),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(c *gin.Context) (domain.AuditAction, string, string) {
	switch c.FullPath() {
	case "/api/v1/admin/master-key":
		return domain.AuditActionProvisionMasterKey, "master_key", ""
	case "/api/v1/admin/sweeps/:address":
		return domain.AuditActionManualSweep, "address", c.Param("address")
	case "/api/v1/admin/payments/:id/cancel":
		return domain.AuditActionCancelPayment, "payment", c.Param("id")
	case "/api/v1/admin/addresses/:address/deactivate":
		return domain.AuditActionDeactivateAddress, "address", c.Param("address")
	}
	return "", "", ""
}
