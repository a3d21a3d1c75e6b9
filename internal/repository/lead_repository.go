package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// upsertLeadSQL inserts or refreshes the consent of a (site, email) pair in
// one statement. xmax is 0 only on rows this statement inserted.
const upsertLeadSQL = `INSERT INTO email_leads
	(id, site_id, email, business_name, industry, consent_download, consent_marketing, consent_date, status, captured_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (site_id, email) DO UPDATE SET
	consent_marketing = EXCLUDED.consent_marketing,
	consent_date = EXCLUDED.consent_date,
	updated_at = EXCLUDED.updated_at
RETURNING id, status, captured_at, (xmax = 0) AS inserted`

type upsertedLead struct {
	ID         uuid.UUID
	Status     string
	CapturedAt time.Time
	Inserted   bool
}

func (r *LeadRepository) Upsert(ctx context.Context, lead *models.EmailLead) (bool, error) {
	lead.Email = normalizeEmail(lead.Email)
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = models.LeadFreeDownload
	}
	now := time.Now().UTC()

	var row upsertedLead
	err := r.db.WithContext(ctx).Raw(upsertLeadSQL,
		lead.ID, lead.SiteID, lead.Email, lead.BusinessName, lead.Industry,
		lead.ConsentDownload, lead.ConsentMarketing, lead.ConsentDate, lead.Status, now, now,
	).Scan(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return false, fmt.Errorf("upsert lead: %w", ErrNotFound)
		}
		return false, fmt.Errorf("upsert lead: %w", translate(err))
	}

	lead.ID = row.ID
	lead.Status = row.Status
	lead.CapturedAt = row.CapturedAt
	lead.UpdatedAt = now
	return row.Inserted, nil
}

func (r *LeadRepository) Get(ctx context.Context, siteID uuid.UUID, email string) (*models.EmailLead, error) {
	var lead models.EmailLead
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND email = ?", siteID, normalizeEmail(email)).
		Take(&lead).Error
	if err != nil {
		return nil, translate(err)
	}
	return &lead, nil
}

func (r *LeadRepository) ListBySite(ctx context.Context, siteID uuid.UUID) ([]models.EmailLead, error) {
	var leads []models.EmailLead
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("captured_at DESC").
		Find(&leads).Error
	return leads, translate(err)
}

func (r *LeadRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.EmailLead, error) {
	var leads []models.EmailLead
	err := r.db.WithContext(ctx).
		Joins("JOIN sites ON sites.id = email_leads.site_id").
		Where("sites.user_id = ?", userID).
		Order("email_leads.captured_at DESC").
		Find(&leads).Error
	return leads, translate(err)
}

func (r *LeadRepository) ListAll(ctx context.Context, limit, offset int) ([]models.EmailLead, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.EmailLead{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var leads []models.EmailLead
	q := r.db.WithContext(ctx).Order("captured_at DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&leads).Error; err != nil {
		return nil, 0, translate(err)
	}
	return leads, total, nil
}
