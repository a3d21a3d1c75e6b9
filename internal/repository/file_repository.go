package repository

import (
	"context"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) ReplaceForSite(ctx context.Context, siteID uuid.UUID, files []models.GeneratedFile) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ?", siteID).Delete(&models.GeneratedFile{}).Error; err != nil {
			return err
		}
		if len(files) == 0 {
			return nil
		}
		for i := range files {
			files[i].SiteID = siteID
			if files[i].ID == uuid.Nil {
				files[i].ID = uuid.New()
			}
		}
		return tx.CreateInBatches(files, 50).Error
	})
	if err != nil {
		return fmt.Errorf("replace generated files: %w", translate(err))
	}
	return nil
}

func (r *FileRepository) ListBySite(ctx context.Context, siteID uuid.UUID) ([]models.GeneratedFile, error) {
	var files []models.GeneratedFile
	err := r.db.WithContext(ctx).Where("site_id = ?", siteID).Order("file_name").Find(&files).Error
	return files, translate(err)
}
