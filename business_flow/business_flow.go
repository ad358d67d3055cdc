// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"

	"github.com/novapay/recharge-ledger/app/dto"
	"github.com/novapay/recharge-ledger/models"
	"github.com/novapay/recharge-ledger/repository"
	"github.com/novapay/recharge-ledger/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToTransactionDTO converts a transaction model to its API shape
func ToTransactionDTO(t models.Transaction) dto.TransactionDTO {
	out := dto.TransactionDTO{
		ID:            t.ID,
		UUID:          t.UUID.String(),
		TransactionID: t.TransactionID,
		UserID:        t.UserID,
		Type:          string(t.Type),
		Status:        string(t.Status),
		Amount:        t.Amount.StringFixed(2),
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	out.OperatorID = t.OperatorID
	out.RecipientID = t.RecipientID
	out.ParentTransactionID = t.ParentTransactionID
	out.RefundedAt = t.RefundedAt
	return out
}

// createAuditLog records what happened during a flow, best effort; callers
// discard the error so a failed audit write never fails the flow itself.
func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	if user != nil {
		userID = &user.ID
	}

	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	if metadata != nil && metadata.RequestID != "" {
		audit.RequestID = &metadata.RequestID
	} else if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		audit.RequestID = &requestID
	}

	return auditRepo.Save(ctx, audit)
}
