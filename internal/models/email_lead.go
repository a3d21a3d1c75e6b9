package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	LeadFreeDownload = "free_download"
	LeadSubscribed   = "subscribed"
	LeadConverted    = "converted"
)

// EmailLead is a visitor who asked for a site download. One row per
// (site, email) pair.
type EmailLead struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SiteID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_email_leads_site_email" json:"site_id"`
	Email            string     `gorm:"size:255;not null;uniqueIndex:idx_email_leads_site_email;index" json:"email"`
	BusinessName     string     `gorm:"size:255" json:"business_name"`
	Industry         string     `gorm:"size:100" json:"industry"`
	ConsentDownload  bool       `gorm:"not null;default:false" json:"consent_download"`
	ConsentMarketing bool       `gorm:"not null;default:false" json:"consent_marketing"`
	ConsentDate      *time.Time `json:"consent_date,omitempty"`
	Status           string     `gorm:"size:20;not null;default:'free_download';check:chk_email_leads_status,status IN ('free_download','subscribed','converted')" json:"status"`
	CapturedAt       time.Time  `gorm:"autoCreateTime" json:"captured_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Site             Site       `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE" json:"-"`
}
