package repository

import (
	"context"

	"github.com/novapay/recharge-ledger/models"
	"gorm.io/gorm"
)

// NotificationRepositoryImpl implements NotificationRepository interface
type NotificationRepositoryImpl struct {
	*BaseRepository[models.Notification, models.NotificationFilter]
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &NotificationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Notification, models.NotificationFilter](db),
	}
}

// ListUnreadByUser returns a user's unread notifications, newest first
func (r *NotificationRepositoryImpl) ListUnreadByUser(ctx context.Context, userID uint, limit int) ([]*models.Notification, error) {
	db := r.getDB(ctx)
	var notifications []*models.Notification

	query := db.Where("user_id = ? AND is_read = ?", userID, false).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// ByFilter retrieves notifications based on filter criteria
func (r *NotificationRepositoryImpl) ByFilter(ctx context.Context, filter models.NotificationFilter, orderBy string, limit, offset int) ([]*models.Notification, error) {
	db := r.getDB(ctx)
	var notifications []*models.Notification

	query := db.Model(&models.Notification{})
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

	err := query.Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// Count returns the number of notifications matching the filter
func (r *NotificationRepositoryImpl) Count(ctx context.Context, filter models.NotificationFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Notification{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any notification matching the filter exists
func (r *NotificationRepositoryImpl) Exists(ctx context.Context, filter models.NotificationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *NotificationRepositoryImpl) applyFilter(query *gorm.DB, filter models.NotificationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.IsRead != nil {
		query = query.Where("is_read = ?", *filter.IsRead)
	}
	return query
}
