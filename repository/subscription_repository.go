package repository

import (
	"context"
	"errors"

	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/utils"
	"gorm.io/gorm"
)

// SubscriptionRepositoryImpl implements SubscriptionRepository
type SubscriptionRepositoryImpl struct {
	*BaseRepository[models.Subscription, models.SubscriptionFilter]
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Subscription, models.SubscriptionFilter](db),
	}
}

// ByCustomerID finds the subscription of a tenant
func (r *SubscriptionRepositoryImpl) ByCustomerID(ctx context.Context, customerID uint) (*models.Subscription, error) {
	db := r.getDB(ctx)
	var sub models.Subscription
	err := db.Where("customer_id = ?", customerID).Last(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// DecrementCredit atomically lowers the channel credit by count, floored at
// zero. A NULL credit means unlimited and is left untouched.
func (r *SubscriptionRepositoryImpl) DecrementCredit(ctx context.Context, customerID uint, channel models.MessageChannel, count int64) error {
	if count <= 0 {
		return nil
	}
	db := r.getDB(ctx)

	column := "sms_credit"
	if channel == models.ChannelWhatsApp {
		column = "whatsapp_credit"
	}

	return db.Model(&models.Subscription{}).
		Where("customer_id = ? AND "+column+" IS NOT NULL", customerID).
		Updates(map[string]any{
			column:       gorm.Expr("GREATEST("+column+" - ?, 0)", count),
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *SubscriptionRepositoryImpl) applyFilter(db *gorm.DB, f models.SubscriptionFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	return db
}

// ByFilter retrieves subscriptions matching the filter
func (r *SubscriptionRepositoryImpl) ByFilter(ctx context.Context, filter models.SubscriptionFilter, orderBy string, limit, offset int) ([]*models.Subscription, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Subscription{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Subscription
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of subscriptions matching the filter
func (r *SubscriptionRepositoryImpl) Count(ctx context.Context, filter models.SubscriptionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Subscription{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
