package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Operator represents a recharge operator (telecom/DTH provider) and the
// commission percentage its recharges earn as cashback.
type Operator struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	Name string `gorm:"type:varchar(100);not null" json:"name"`
	Code string `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"` // Gateway-side operator code

	// Commission percentage, e.g. 10 means a 50.00 recharge earns 5.00 cashback.
	CommissionPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"commission_percent"`

	IsActive *bool `gorm:"not null;default:true;index" json:"is_active"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate ensures UUID is set
func (o *Operator) BeforeCreate(tx *gorm.DB) error {
	if o.UUID == uuid.Nil {
		o.UUID = uuid.New()
	}
	return nil
}

// CalculateCashback computes the cashback amount for a recharge amount,
// rounded to two decimal places.
func (o *Operator) CalculateCashback(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(o.CommissionPercent).Div(decimal.NewFromInt(100)).Round(2)
}

// TableName specifies the table name for GORM
func (Operator) TableName() string {
	return "operators"
}

// OperatorFilter represents filter criteria for operator queries
type OperatorFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	Code     *string    `json:"code,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}
