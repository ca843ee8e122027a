package repository

import (
	"context"

	"github.com/waxal-io/waxal/models"
	"gorm.io/gorm"
)

// CampaignHistoryRepositoryImpl implements CampaignHistoryRepository
type CampaignHistoryRepositoryImpl struct {
	*BaseRepository[models.CampaignHistory, models.CampaignHistoryFilter]
}

// NewCampaignHistoryRepository creates a new campaign history repository
func NewCampaignHistoryRepository(db *gorm.DB) CampaignHistoryRepository {
	return &CampaignHistoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignHistory, models.CampaignHistoryFilter](db),
	}
}

// ByCampaign lists the lifecycle events of a campaign, newest first
func (r *CampaignHistoryRepositoryImpl) ByCampaign(ctx context.Context, campaignID uint) ([]*models.CampaignHistory, error) {
	filter := models.CampaignHistoryFilter{CampaignID: &campaignID}
	return r.ByFilter(ctx, filter, "created_at DESC", 0, 0)
}

func (r *CampaignHistoryRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignHistoryFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.BulkID != nil {
		db = db.Where("bulk_id = ?", *f.BulkID)
	}
	if f.Action != nil {
		db = db.Where("action = ?", *f.Action)
	}
	return db
}

// ByFilter retrieves history entries matching the filter
func (r *CampaignHistoryRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignHistoryFilter, orderBy string, limit, offset int) ([]*models.CampaignHistory, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignHistory{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CampaignHistory
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of history entries matching the filter
func (r *CampaignHistoryRepositoryImpl) Count(ctx context.Context, filter models.CampaignHistoryFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignHistory{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
