// Package models contains domain entities and business models for the wallet ledger
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User represents an account holder with a wallet and a commission balance.
// WalletBalance and Commission are only ever written through the locked
// ledger operations on UserRepository; no other path may touch them.
type User struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	Name   string `gorm:"type:varchar(255);not null" json:"name"`
	Email  string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Mobile string `gorm:"type:varchar(20);uniqueIndex;not null" json:"mobile"`

	// Ledger fields. WalletBalance must never go negative; Commission is
	// clamped to zero on reversal.
	WalletBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"wallet_balance"`
	Commission    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"commission"`

	// Referral chain (credited via referral transactions)
	ReferrerID *uint `gorm:"index" json:"referrer_id,omitempty"`

	IsActive *bool `gorm:"not null;default:true" json:"is_active"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
}

// BeforeCreate ensures UUID is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	return nil
}

// HasSufficientBalance checks if the wallet covers the given amount
func (u *User) HasSufficientBalance(amount decimal.Decimal) bool {
	return u.WalletBalance.GreaterThanOrEqual(amount)
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	Email         *string    `json:"email,omitempty"`
	Mobile        *string    `json:"mobile,omitempty"`
	ReferrerID    *uint      `json:"referrer_id,omitempty"`
	IsActive      *bool      `json:"is_active,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
