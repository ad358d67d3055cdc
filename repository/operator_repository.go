package repository

import (
	"context"
	"errors"

	"github.com/novapay/recharge-ledger/models"
	"gorm.io/gorm"
)

// OperatorRepositoryImpl implements OperatorRepository interface
type OperatorRepositoryImpl struct {
	*BaseRepository[models.Operator, models.OperatorFilter]
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &OperatorRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Operator, models.OperatorFilter](db),
	}
}

// ByCode finds an operator by its gateway-side code
func (r *OperatorRepositoryImpl) ByCode(ctx context.Context, code string) (*models.Operator, error) {
	db := r.getDB(ctx)
	var operator models.Operator
	err := db.Where("code = ?", code).Last(&operator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &operator, nil
}

// ByFilter retrieves operators based on filter criteria
func (r *OperatorRepositoryImpl) ByFilter(ctx context.Context, filter models.OperatorFilter, orderBy string, limit, offset int) ([]*models.Operator, error) {
	db := r.getDB(ctx)
	var operators []*models.Operator

	query := db.Model(&models.Operator{})
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

	err := query.Find(&operators).Error
	if err != nil {
		return nil, err
	}
	return operators, nil
}

// Count returns the number of operators matching the filter
func (r *OperatorRepositoryImpl) Count(ctx context.Context, filter models.OperatorFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Operator{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any operator matching the filter exists
func (r *OperatorRepositoryImpl) Exists(ctx context.Context, filter models.OperatorFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *OperatorRepositoryImpl) applyFilter(query *gorm.DB, filter models.OperatorFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Code != nil {
		query = query.Where("code = ?", *filter.Code)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}
