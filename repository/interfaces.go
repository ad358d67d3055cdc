// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/novapay/recharge-ledger/models"
	"github.com/shopspring/decimal"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for users and their ledger balances.
// The three balance mutations take a row lock on the user before the
// read-modify-write, so concurrent mutations of one account serialize.
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByMobile(ctx context.Context, mobile string) (*models.User, error)
	ByUUID(ctx context.Context, uuid string) (*models.User, error)
	ByIDs(ctx context.Context, ids []uint) ([]*models.User, error)

	// ByIDLocked reads the user row under FOR UPDATE; must be called inside
	// a transaction established via WithTransaction.
	ByIDLocked(ctx context.Context, id uint) (*models.User, error)
	CreditBalance(ctx context.Context, userID uint, amount decimal.Decimal) (*models.User, error)
	DebitBalance(ctx context.Context, userID uint, amount decimal.Decimal) (*models.User, error)
	AdjustCommission(ctx context.Context, userID uint, delta decimal.Decimal) (*models.User, error)
}

// TransactionRepository defines operations for transactions
type TransactionRepository interface {
	Repository[models.Transaction, models.TransactionFilter]
	ByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	ByParentID(ctx context.Context, parentID uint) ([]*models.Transaction, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Transaction, error)
	ListPendingRecharges(ctx context.Context, limit int) ([]*models.Transaction, error)
	Update(ctx context.Context, transaction *models.Transaction) error
	Delete(ctx context.Context, transaction *models.Transaction) error
}

// OperatorRepository defines operations for recharge operators
type OperatorRepository interface {
	Repository[models.Operator, models.OperatorFilter]
	ByCode(ctx context.Context, code string) (*models.Operator, error)
}

// AdminRepository defines operations for back-office admins
type AdminRepository interface {
	Repository[models.Admin, models.AdminFilter]
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
	Update(ctx context.Context, admin *models.Admin) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
}

// NotificationRepository defines operations for queued notifications
type NotificationRepository interface {
	Repository[models.Notification, models.NotificationFilter]
	ListUnreadByUser(ctx context.Context, userID uint, limit int) ([]*models.Notification, error)
}
