package repository

import (
	"context"

	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/utils"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements MessageRepository
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message, models.MessageFilter]
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Message, models.MessageFilter](db),
	}
}

// PendingBatch fetches up to size pending recipient records of a bulk campaign,
// oldest first so retried campaigns drain in a stable order.
func (r *MessageRepositoryImpl) PendingBatch(ctx context.Context, bulkID string, size int) ([]*models.Message, error) {
	db := r.getDB(ctx)
	var rows []*models.Message
	err := db.Where("bulk_id = ? AND delivery_status = ?", bulkID, models.DeliveryStatusPending).
		Order("id ASC").
		Limit(size).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByStatus groups the campaign's message rows by delivery status. This is
// the authoritative count; campaign counters may lag behind it mid-dispatch.
func (r *MessageRepositoryImpl) CountByStatus(ctx context.Context, bulkID string) (models.StatusCounts, error) {
	db := r.getDB(ctx)

	var results []struct {
		DeliveryStatus models.DeliveryStatus
		Count          int64
	}
	err := db.Model(&models.Message{}).
		Select("delivery_status, COUNT(*) AS count").
		Where("bulk_id = ?", bulkID).
		Group("delivery_status").
		Find(&results).Error
	if err != nil {
		return models.StatusCounts{}, err
	}

	var counts models.StatusCounts
	for _, row := range results {
		switch row.DeliveryStatus {
		case models.DeliveryStatusPending:
			counts.Pending = row.Count
		case models.DeliveryStatusSent:
			counts.Sent = row.Count
		case models.DeliveryStatusFailed:
			counts.Failed = row.Count
		}
	}
	return counts, nil
}

// ExistingReceivers lists the distinct receiver numbers already present in the
// campaign, used by refresh to diff against the current group membership.
func (r *MessageRepositoryImpl) ExistingReceivers(ctx context.Context, bulkID string) ([]string, error) {
	db := r.getDB(ctx)
	var receivers []string
	err := db.Model(&models.Message{}).
		Distinct("receiver").
		Where("bulk_id = ?", bulkID).
		Pluck("receiver", &receivers).Error
	if err != nil {
		return nil, err
	}
	return receivers, nil
}

// MarkSent records a confirmed delivery. Only pending rows transition.
func (r *MessageRepositoryImpl) MarkSent(ctx context.Context, messageID uint, providerID string) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	return db.Model(&models.Message{}).
		Where("id = ? AND delivery_status = ?", messageID, models.DeliveryStatusPending).
		Updates(map[string]any{
			"delivery_status": models.DeliveryStatusSent,
			"status":          models.MessageStatusSent,
			"send_date":       now,
			"message_id":      providerID,
			"last_error":      nil,
			"updated_at":      now,
		}).Error
}

// MarkFailed records a delivery failure. Only pending rows transition.
func (r *MessageRepositoryImpl) MarkFailed(ctx context.Context, messageID uint, reason string) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	return db.Model(&models.Message{}).
		Where("id = ? AND delivery_status = ?", messageID, models.DeliveryStatusPending).
		Updates(map[string]any{
			"delivery_status": models.DeliveryStatusFailed,
			"status":          models.MessageStatusFailed,
			"last_error":      reason,
			"updated_at":      now,
		}).Error
}

// ResetFailed moves all failed rows of the campaign back to pending, clearing
// the recorded error. Sent rows are never touched.
func (r *MessageRepositoryImpl) ResetFailed(ctx context.Context, bulkID string) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Message{}).
		Where("bulk_id = ? AND delivery_status = ?", bulkID, models.DeliveryStatusFailed).
		Updates(map[string]any{
			"delivery_status": models.DeliveryStatusPending,
			"status":          nil,
			"last_error":      nil,
			"updated_at":      utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// HasFailed reports whether at least one failed record exists for the campaign
func (r *MessageRepositoryImpl) HasFailed(ctx context.Context, bulkID string) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Message{}).
		Where("bulk_id = ? AND delivery_status = ?", bulkID, models.DeliveryStatusFailed).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteByCampaign removes all message rows of a campaign
func (r *MessageRepositoryImpl) DeleteByCampaign(ctx context.Context, campaignID uint) error {
	db := r.getDB(ctx)
	return db.Where("campaign_id = ?", campaignID).Delete(&models.Message{}).Error
}

func (r *MessageRepositoryImpl) applyFilter(db *gorm.DB, f models.MessageFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.BulkID != nil {
		db = db.Where("bulk_id = ?", *f.BulkID)
	}
	if f.Receiver != nil {
		db = db.Where("receiver = ?", *f.Receiver)
	}
	if f.ReceiverLike != nil {
		db = db.Where("receiver LIKE ?", "%"+*f.ReceiverLike+"%")
	}
	if f.DeliveryStatus != nil {
		db = db.Where("delivery_status = ?", *f.DeliveryStatus)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	if f.SentAfter != nil {
		db = db.Where("send_date >= ?", *f.SentAfter)
	}
	if f.SentBefore != nil {
		db = db.Where("send_date < ?", *f.SentBefore)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves message rows matching the filter
func (r *MessageRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of message rows matching the filter
func (r *MessageRepositoryImpl) Count(ctx context.Context, filter models.MessageFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
