package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateTransactionRequest represents the request to create a transaction
type CreateTransactionRequest struct {
	UserID        uint            `json:"user_id" validate:"required"`                                                     // Ledger account owner
	Type          string          `json:"type" validate:"required,oneof=recharge add_fund transfer debit referral"`        // Transaction type (cashback rows are derived, never created directly)
	Amount        decimal.Decimal `json:"amount" validate:"required"`                                                      // Positive amount per transaction leg
	Status        string          `json:"status" validate:"omitempty,oneof=pending success failed"`                        // Initial status, defaults to pending
	OperatorID    *uint           `json:"operator_id,omitempty"`                                                           // Required for recharge
	RecipientIDs  []uint          `json:"recipient_ids,omitempty" validate:"omitempty,max=50,dive,required"`               // Transfer fan-out targets
	TransactionID string          `json:"transaction_id,omitempty" validate:"omitempty,max=60"`                            // Caller-supplied correlation id; generated when empty
	Description   string          `json:"description,omitempty" validate:"omitempty,max=1000"`                             // Free-text audit trail
}

// TransactionDTO represents a transaction in API responses
type TransactionDTO struct {
	ID                  uint       `json:"id"`
	UUID                string     `json:"uuid"`
	TransactionID       string     `json:"transaction_id"` // Caller-visible correlation id
	UserID              uint       `json:"user_id"`
	Type                string     `json:"type"`
	Status              string     `json:"status"`
	Amount              string     `json:"amount"` // Decimal as string, two fraction digits
	OperatorID          *uint      `json:"operator_id,omitempty"`
	RecipientID         *uint      `json:"recipient_id,omitempty"`
	ParentTransactionID *uint      `json:"parent_transaction_id,omitempty"` // Set on cashback rows
	RefundedAt          *time.Time `json:"refunded_at,omitempty"`
	Description         string     `json:"description,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// CreateTransactionResponse represents the response after creating a transaction
type CreateTransactionResponse struct {
	Message string `json:"message"`
	// First (or only) created transaction; transfers carry one per recipient.
	Transaction  TransactionDTO   `json:"transaction"`
	Transactions []TransactionDTO `json:"transactions,omitempty"`
}

// UpdateTransactionStatusRequest represents a reconciliation request
type UpdateTransactionStatusRequest struct {
	Status      string `json:"status" validate:"required,oneof=pending success failed"` // Target status
	NeedsRefund bool   `json:"needs_refund"`                                            // Refund the held/credited funds on failure
	Description string `json:"description,omitempty" validate:"omitempty,max=1000"`     // Appended to the audit trail
}

// UpdateTransactionStatusResponse represents the response after a reconciliation
type UpdateTransactionStatusResponse struct {
	Message     string         `json:"message"`
	Transaction TransactionDTO `json:"transaction"`
}

// GetTransactionHistoryRequest represents the request to list a user's transactions
type GetTransactionHistoryRequest struct {
	UserID   uint    `json:"user_id" validate:"required"`        // Ledger account owner
	Page     uint    `json:"page" validate:"min=1"`              // Page number (1-based)
	PageSize uint    `json:"page_size" validate:"min=1,max=100"` // Number of items per page
	Type     *string `json:"type,omitempty"`                     // Optional transaction type filter
	Status   *string `json:"status,omitempty"`                   // Optional transaction status filter
}

// TransactionHistoryResponse represents the response for transaction history
type TransactionHistoryResponse struct {
	Message    string           `json:"message"`
	Items      []TransactionDTO `json:"items"`
	Pagination PaginationInfo   `json:"pagination"`
}
