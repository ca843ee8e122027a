package repository

import (
	"context"

	"github.com/waxal-io/waxal/models"
	"gorm.io/gorm"
)

// TemplateRepositoryImpl implements TemplateRepository
type TemplateRepositoryImpl struct {
	*BaseRepository[models.Template, models.TemplateFilter]
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &TemplateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Template, models.TemplateFilter](db),
	}
}

func (r *TemplateRepositoryImpl) applyFilter(db *gorm.DB, f models.TemplateFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	return db
}

// ByFilter retrieves templates matching the filter
func (r *TemplateRepositoryImpl) ByFilter(ctx context.Context, filter models.TemplateFilter, orderBy string, limit, offset int) ([]*models.Template, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Template{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Template
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of templates matching the filter
func (r *TemplateRepositoryImpl) Count(ctx context.Context, filter models.TemplateFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Template{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
