package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeRecharge TransactionType = "recharge" // Mobile/DTH recharge, debited up front
	TransactionTypeAddFund  TransactionType = "add_fund" // Funds added by an admin, credited on success
	TransactionTypeTransfer TransactionType = "transfer" // Peer transfer, debited up front
	TransactionTypeDebit    TransactionType = "debit"    // Manual debit adjustment
	TransactionTypeCashback TransactionType = "cashback" // Derived from a successful recharge
	TransactionTypeReferral TransactionType = "referral" // Referral credit, credited on success
)

// TransactionStatus represents the current status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// ValidTransactionType reports whether t is part of the transaction vocabulary
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TransactionTypeRecharge, TransactionTypeAddFund, TransactionTypeTransfer,
		TransactionTypeDebit, TransactionTypeCashback, TransactionTypeReferral:
		return true
	}
	return false
}

// ValidTransactionStatus reports whether s is part of the status vocabulary
func ValidTransactionStatus(s TransactionStatus) bool {
	switch s {
	case TransactionStatusPending, TransactionStatusSuccess, TransactionStatusFailed:
		return true
	}
	return false
}

// Transaction represents an audited monetary event. Rows are created once;
// only Status, RefundedAt and UpdatedAt change afterwards, through the
// reconciler. Cashback rows are the one exception: they are deleted when
// their parent recharge is reconciled away from success.
type Transaction struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	// Caller-visible correlation id, unique across all transactions.
	TransactionID string `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_id"`

	UserID uint `gorm:"not null;index" json:"user_id"`

	Type   TransactionType   `gorm:"type:varchar(20);not null;index" json:"type"`
	Status TransactionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Amount decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`

	// Required for cashback computation on recharges.
	OperatorID *uint `gorm:"index" json:"operator_id,omitempty"`
	// Set on transfer legs; one row per recipient.
	RecipientID *uint `gorm:"index" json:"recipient_id,omitempty"`

	// Explicit link from a cashback row to the recharge it derives from.
	ParentTransactionID *uint `gorm:"index" json:"parent_transaction_id,omitempty"`

	// Set exactly once when a refund is applied; a second refund request
	// against a set marker is rejected hard.
	RefundedAt *time.Time `json:"refunded_at,omitempty"`

	Description string `gorm:"type:text" json:"description"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Operator  *Operator `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`
	Recipient *User     `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
}

// BeforeCreate ensures UUID and TransactionID are set
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.TransactionID == "" {
		t.TransactionID = fmt.Sprintf("TXN-%d-%s", time.Now().Unix(), uuid.New().String()[:8])
	}
	return nil
}

// IsRefunded returns true once a refund has been applied to this transaction
func (t *Transaction) IsRefunded() bool {
	return t.RefundedAt != nil
}

// DebitsOnCreate reports whether this transaction type holds funds at creation
func (t *Transaction) DebitsOnCreate() bool {
	return t.Type == TransactionTypeRecharge || t.Type == TransactionTypeTransfer
}

// CreditsOnSuccess reports whether this transaction type credits the wallet
// when it reaches success (and therefore whose refund is a debit)
func (t *Transaction) CreditsOnSuccess() bool {
	return t.Type == TransactionTypeAddFund || t.Type == TransactionTypeReferral
}

// CashbackTransactionID derives the correlation id convention for the cashback
// row of a recharge. Kept alongside the explicit parent link for legacy lookups.
func (t *Transaction) CashbackTransactionID() string {
	return t.TransactionID + "-CB"
}

// TableName specifies the table name for GORM
func (Transaction) TableName() string {
	return "transactions"
}

// TransactionFilter represents filter criteria for transaction queries
type TransactionFilter struct {
	ID                  *uint              `json:"id,omitempty"`
	UUID                *uuid.UUID         `json:"uuid,omitempty"`
	TransactionID       *string            `json:"transaction_id,omitempty"`
	UserID              *uint              `json:"user_id,omitempty"`
	Type                *TransactionType   `json:"type,omitempty"`
	Status              *TransactionStatus `json:"status,omitempty"`
	OperatorID          *uint              `json:"operator_id,omitempty"`
	RecipientID         *uint              `json:"recipient_id,omitempty"`
	ParentTransactionID *uint              `json:"parent_transaction_id,omitempty"`
	CreatedAfter        *time.Time         `json:"created_after,omitempty"`
	CreatedBefore       *time.Time         `json:"created_before,omitempty"`
}
