package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationType identifies what a notification is about
type NotificationType string

const (
	NotificationTypeWalletCredit   NotificationType = "WALLET_CREDIT"
	NotificationTypeWalletDebit    NotificationType = "WALLET_DEBIT"
	NotificationTypeRefund         NotificationType = "REFUND"
	NotificationTypeCashback       NotificationType = "CASHBACK"
	NotificationTypeRechargeStatus NotificationType = "RECHARGE_STATUS"
)

// Notification is a queued message for a user. Delivery is a collaborator
// concern; the ledger only records what should be sent.
type Notification struct {
	ID     uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint             `gorm:"not null;index" json:"user_id"`
	Type   NotificationType `gorm:"type:varchar(30);not null;index" json:"type"`
	Title  string           `gorm:"type:varchar(255);not null" json:"title"`
	Body   string           `gorm:"type:text" json:"body"`
	IsRead *bool            `gorm:"not null;default:false" json:"is_read"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName specifies the table name for GORM
func (Notification) TableName() string {
	return "notifications"
}

// NotificationFilter represents filter criteria for notification queries
type NotificationFilter struct {
	ID     *uint             `json:"id,omitempty"`
	UserID *uint             `json:"user_id,omitempty"`
	Type   *NotificationType `json:"type,omitempty"`
	IsRead *bool             `json:"is_read,omitempty"`
}
