package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/novapay/recharge-ledger/models"
	"github.com/novapay/recharge-ledger/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientBalance is returned by DebitBalance when the locked wallet
// balance does not cover the requested amount. Raised before any mutation.
var ErrInsufficientBalance = errors.New("insufficient wallet balance")

// lockForUpdate adds a row lock where the dialect supports one. SQLite
// serializes writers on its own, so the clause is skipped there.
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// UserRepositoryImpl implements UserRepository interface
type UserRepositoryImpl struct {
	*BaseRepository[models.User, models.UserFilter]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, models.UserFilter](db),
	}
}

// ByEmail finds a user by email
func (r *UserRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.User, error) {
	db := r.getDB(ctx)
	var user models.User
	err := db.Where("email = ?", email).Last(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ByMobile finds a user by mobile number
func (r *UserRepositoryImpl) ByMobile(ctx context.Context, mobile string) (*models.User, error) {
	db := r.getDB(ctx)
	var user models.User
	err := db.Where("mobile = ?", mobile).Last(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ByUUID finds a user by UUID
func (r *UserRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.User, error) {
	db := r.getDB(ctx)
	var user models.User
	err := db.Where("uuid = ?", uuid).Last(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ByIDs finds users by a set of IDs (transfer recipients)
func (r *UserRepositoryImpl) ByIDs(ctx context.Context, ids []uint) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)
	var users []*models.User
	var err error
	if db.Dialector.Name() == "postgres" {
		int64IDs := make([]int64, 0, len(ids))
		for _, id := range ids {
			int64IDs = append(int64IDs, int64(id))
		}
		err = db.Where("id = ANY(?)", pq.Array(int64IDs)).Find(&users).Error
	} else {
		err = db.Where("id IN ?", ids).Find(&users).Error
	}
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ByIDLocked reads the user row under a row lock. Intended to be called
// inside WithTransaction; outside of one the lock is released immediately
// and offers no protection.
func (r *UserRepositoryImpl) ByIDLocked(ctx context.Context, id uint) (*models.User, error) {
	db := r.getDB(ctx)
	var user models.User
	err := lockForUpdate(db).Where("id = ?", id).Last(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CreditBalance atomically increases the wallet balance.
func (r *UserRepositoryImpl) CreditBalance(ctx context.Context, userID uint, amount decimal.Decimal) (*models.User, error) {
	return r.mutateBalances(ctx, userID, func(user *models.User) error {
		user.WalletBalance = user.WalletBalance.Add(amount)
		return nil
	})
}

// DebitBalance atomically decreases the wallet balance, failing with
// ErrInsufficientBalance before any mutation if the balance does not cover
// the amount.
func (r *UserRepositoryImpl) DebitBalance(ctx context.Context, userID uint, amount decimal.Decimal) (*models.User, error) {
	return r.mutateBalances(ctx, userID, func(user *models.User) error {
		if user.WalletBalance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, required %s",
				ErrInsufficientBalance, user.WalletBalance.StringFixed(2), amount.StringFixed(2))
		}
		user.WalletBalance = user.WalletBalance.Sub(amount)
		return nil
	})
}

// AdjustCommission atomically applies a delta to the commission balance,
// clamping the result at zero.
func (r *UserRepositoryImpl) AdjustCommission(ctx context.Context, userID uint, delta decimal.Decimal) (*models.User, error) {
	return r.mutateBalances(ctx, userID, func(user *models.User) error {
		next := user.Commission.Add(delta)
		if next.IsNegative() {
			next = decimal.Zero
		}
		user.Commission = next
		return nil
	})
}

// mutateBalances performs a locked read-modify-write of the ledger columns.
// All three public mutations funnel through here so every balance write
// shares the same locking discipline.
func (r *UserRepositoryImpl) mutateBalances(ctx context.Context, userID uint, mutate func(*models.User) error) (*models.User, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	var user models.User
	err = lockForUpdate(db).Where("id = ?", userID).Last(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = gorm.ErrRecordNotFound
			return nil, fmt.Errorf("user %d disappeared during ledger mutation: %w", userID, err)
		}
		return nil, err
	}

	if err = mutate(&user); err != nil {
		return nil, err
	}

	user.UpdatedAt = utils.UTCNow()
	err = db.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{
			"wallet_balance": user.WalletBalance,
			"commission":     user.Commission,
			"updated_at":     user.UpdatedAt,
		}).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// ByFilter retrieves users based on filter criteria
func (r *UserRepositoryImpl) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	db := r.getDB(ctx)
	var users []*models.User

	query := db.Model(&models.User{})
	query = r.applyFilter(query, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns the number of users matching the filter
func (r *UserRepositoryImpl) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.User{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any user matching the filter exists
func (r *UserRepositoryImpl) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *UserRepositoryImpl) applyFilter(query *gorm.DB, filter models.UserFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.Mobile != nil {
		query = query.Where("mobile = ?", *filter.Mobile)
	}
	if filter.ReferrerID != nil {
		query = query.Where("referrer_id = ?", *filter.ReferrerID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
