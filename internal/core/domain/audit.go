package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited operator action.
type AuditAction string

const (
	AuditActionProvisionMasterKey AuditAction = "PROVISION_MASTER_KEY"
	AuditActionManualSweep        AuditAction = "MANUAL_SWEEP"
	AuditActionCancelPayment      AuditAction = "CANCEL_PAYMENT"
	AuditActionDeactivateAddress  AuditAction = "DEACTIVATE_ADDRESS"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Operator     string      `json:"operator,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
