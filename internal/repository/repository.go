// Package repository holds the persistence layer: narrow store interfaces
// with a GORM implementation for Postgres and an in-memory one for
// development and tests.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicate      = errors.New("record already exists")
	ErrStatusConflict = errors.New("record is not in the expected status")
)

type UserStore interface {
	// FindOrCreateByEmail returns the user with the given email, creating it
	// when absent. created reports whether a row was inserted.
	FindOrCreateByEmail(ctx context.Context, email, fullName string) (user *models.User, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetRole(ctx context.Context, id uuid.UUID, role string) error
}

type SiteStore interface {
	Create(ctx context.Context, site *models.Site) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Site, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Site, error)
	// CountActiveByUser counts sites that are not archived.
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// MarkGenerated moves a draft or active site to active and records its URL.
	MarkGenerated(ctx context.Context, id uuid.UUID, siteURL string, at time.Time) error
	// UpdateStatus sets status to `to` only when the current status is one of
	// `from`. It returns ErrStatusConflict when the row exists in another status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []models.SiteStatus, to models.SiteStatus) error
}

type LeadStore interface {
	// Upsert inserts the lead or refreshes consent on the existing
	// (site_id, email) row. created reports whether a row was inserted.
	Upsert(ctx context.Context, lead *models.EmailLead) (created bool, err error)
	Get(ctx context.Context, siteID uuid.UUID, email string) (*models.EmailLead, error)
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]models.EmailLead, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.EmailLead, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.EmailLead, int64, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub *models.Subscription) error
	// GetActiveByUser returns the most recent subscription in active status.
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
	// ExpireDue marks active subscriptions whose expiry is before now as expired.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type FileStore interface {
	// ReplaceForSite swaps the recorded file list of a site in one transaction.
	ReplaceForSite(ctx context.Context, siteID uuid.UUID, files []models.GeneratedFile) error
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]models.GeneratedFile, error)
}

// Stores bundles every store the services need.
type Stores struct {
	Users         UserStore
	Sites         SiteStore
	Leads         LeadStore
	Subscriptions SubscriptionStore
	Files         FileStore
}

func NewGormStores(db *gorm.DB) *Stores {
	return &Stores{
		Users:         &UserRepository{db: db},
		Sites:         &SiteRepository{db: db},
		Leads:         &LeadRepository{db: db},
		Subscriptions: &SubscriptionRepository{db: db},
		Files:         &FileRepository{db: db},
	}
}

// translate maps GORM errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
