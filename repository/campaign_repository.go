package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements CampaignRepository
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID finds a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	db := r.getDB(ctx)
	var campaign models.Campaign
	err := db.Where("uuid = ?", id).Last(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// ByBulkID finds a campaign by its bulk identifier
func (r *CampaignRepositoryImpl) ByBulkID(ctx context.Context, bulkID string) (*models.Campaign, error) {
	db := r.getDB(ctx)
	var campaign models.Campaign
	err := db.Where("bulk_id = ?", bulkID).Last(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// BulkIDExists reports whether a bulk identifier is already taken
func (r *CampaignRepositoryImpl) BulkIDExists(ctx context.Context, bulkID string) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	if err := db.Model(&models.Campaign{}).Where("bulk_id = ?", bulkID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClaimDispatch atomically flips in_process false -> true. The compare-and-set
// makes the flag an effective single-dispatcher lock across instances sharing
// the database.
func (r *CampaignRepositoryImpl) ClaimDispatch(ctx context.Context, campaignID uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Campaign{}).
		Where("id = ? AND in_process = ?", campaignID, false).
		Updates(map[string]any{"in_process": true, "updated_at": utils.UTCNow()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseDispatch clears the in_process flag
func (r *CampaignRepositoryImpl) ReleaseDispatch(ctx context.Context, campaignID uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{"in_process": false, "updated_at": utils.UTCNow()}).Error
}

// ApplyResult moves count recipients out of total_pending into total_success or
// total_failed in one atomic statement. total_pending is floored at zero so a
// late duplicate result cannot break the counter partition.
func (r *CampaignRepositoryImpl) ApplyResult(ctx context.Context, campaignID uint, delivered bool, count int) error {
	if count <= 0 {
		return nil
	}
	db := r.getDB(ctx)

	target := "total_failed"
	if delivered {
		target = "total_success"
	}
	res := db.Model(&models.Campaign{}).
		Where("id = ? AND total_pending >= ?", campaignID, count).
		Updates(map[string]any{
			target:          gorm.Expr(target+" + ?", count),
			"total_pending": gorm.Expr("total_pending - ?", count),
			"updated_at":    utils.UTCNow(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("campaign %d has fewer than %d pending recipients", campaignID, count)
	}
	return nil
}

// AddRecipients grows total_recipients and total_pending together, used when a
// refresh picks up newly joined group members.
func (r *CampaignRepositoryImpl) AddRecipients(ctx context.Context, campaignID uint, count int) error {
	if count <= 0 {
		return nil
	}
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"total_recipients": gorm.Expr("total_recipients + ?", count),
			"total_pending":    gorm.Expr("total_pending + ?", count),
			"updated_at":       utils.UTCNow(),
		}).Error
}

// ApplyReset moves count recipients from total_failed back to total_pending,
// flooring total_failed at zero.
func (r *CampaignRepositoryImpl) ApplyReset(ctx context.Context, campaignID uint, count int) error {
	if count <= 0 {
		return nil
	}
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"total_pending": gorm.Expr("total_pending + ?", count),
			"total_failed":  gorm.Expr("GREATEST(total_failed - ?, 0)", count),
			"updated_at":    utils.UTCNow(),
		}).Error
}

// SyncRates recomputes success_rate and failure_rate from the current counters
func (r *CampaignRepositoryImpl) SyncRates(ctx context.Context, campaignID uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ? AND total_recipients > 0", campaignID).
		Updates(map[string]any{
			"success_rate": gorm.Expr("total_success * 100.0 / total_recipients"),
			"failure_rate": gorm.Expr("total_failed * 100.0 / total_recipients"),
			"updated_at":   utils.UTCNow(),
		}).Error
}

// MarkRetry increments the retry counter and stamps the retry date
func (r *CampaignRepositoryImpl) MarkRetry(ctx context.Context, campaignID uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"retry_count":     gorm.Expr("retry_count + 1"),
			"last_retry_date": utils.UTCNow(),
			"updated_at":      utils.UTCNow(),
		}).Error
}

// SetIsSent records the terminal outcome flag
func (r *CampaignRepositoryImpl) SetIsSent(ctx context.Context, campaignID uint, isSent *bool) error {
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{"is_sent": isSent, "updated_at": utils.UTCNow()}).Error
}

// Delete removes a campaign; message rows go with it via the FK cascade
func (r *CampaignRepositoryImpl) Delete(ctx context.Context, campaignID uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
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

	err = db.Delete(&models.Campaign{}, campaignID).Error
	return err
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.BulkID != nil {
		db = db.Where("bulk_id = ?", *f.BulkID)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	if f.SenderLogin != nil {
		db = db.Where("sender_login = ?", *f.SenderLogin)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	if f.IsBulk != nil {
		db = db.Where("is_bulk = ?", *f.IsBulk)
	}
	if f.InProcess != nil {
		db = db.Where("in_process = ?", *f.InProcess)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves campaigns matching the filter
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
