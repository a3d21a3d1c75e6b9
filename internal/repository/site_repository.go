package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SiteRepository struct {
	db *gorm.DB
}

func NewSiteRepository(db *gorm.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

func (r *SiteRepository) Create(ctx context.Context, site *models.Site) error {
	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}
	if site.Status == "" {
		site.Status = models.SiteDraft
	}
	if err := r.db.WithContext(ctx).Create(site).Error; err != nil {
		return fmt.Errorf("create site: %w", translate(err))
	}
	return nil
}

func (r *SiteRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	var site models.Site
	if err := r.db.WithContext(ctx).First(&site, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &site, nil
}

func (r *SiteRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Site, error) {
	var sites []models.Site
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sites).Error
	return sites, translate(err)
}

func (r *SiteRepository) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Site{}).
		Where("user_id = ? AND status <> ?", userID, models.SiteArchived).
		Count(&n).Error
	return n, translate(err)
}

func (r *SiteRepository) MarkGenerated(ctx context.Context, id uuid.UUID, siteURL string, at time.Time) error {
	return r.conditionalUpdate(ctx, id, []models.SiteStatus{models.SiteDraft, models.SiteActive}, map[string]interface{}{
		"status":       models.SiteActive,
		"site_url":     siteURL,
		"generated_at": at,
	})
}

func (r *SiteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []models.SiteStatus, to models.SiteStatus) error {
	return r.conditionalUpdate(ctx, id, from, map[string]interface{}{"status": to})
}

func (r *SiteRepository) conditionalUpdate(ctx context.Context, id uuid.UUID, from []models.SiteStatus, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Site{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("update site: %w", translate(result.Error))
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Site{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStatusConflict
}
