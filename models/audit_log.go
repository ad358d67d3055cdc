package models

import (
	"encoding/json"
	"time"
)

// AuditLog records what happened to the ledger and why, independent of the
// transaction rows themselves.
type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       *uint           `gorm:"index:idx_audit_user_id" json:"user_id,omitempty"`
	User         *User           `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Action       string          `gorm:"type:varchar(64);not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionTransactionCreated      = "transaction_created"
	AuditActionTransactionCreateFailed = "transaction_create_failed"
	AuditActionStatusUpdated           = "status_updated"
	AuditActionStatusUpdateFailed      = "status_update_failed"
	AuditActionRefundApplied           = "refund_applied"
	AuditActionCashbackGranted         = "cashback_granted"
	AuditActionCashbackReversed        = "cashback_reversed"
	AuditActionRedebitSkipped          = "redebit_skipped"
	AuditActionAdminLoginSuccess       = "admin_login_success"
	AuditActionAdminLoginFailed        = "admin_login_failed"
	AuditActionStatusPolled            = "status_polled"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	UserID        *uint
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
