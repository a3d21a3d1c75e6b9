package models

import (
	"time"

	"github.com/google/uuid"
)

// GeneratedFile records one file written for a site's latest generation.
type GeneratedFile struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SiteID    uuid.UUID `gorm:"type:uuid;not null;index" json:"site_id"`
	FileName  string    `gorm:"size:255;not null" json:"file_name"`
	FileType  string    `gorm:"size:50" json:"file_type"`
	FilePath  string    `gorm:"size:500" json:"file_path"`
	FileSize  int64     `json:"file_size"`
	CreatedAt time.Time `json:"created_at"`
	Site      Site      `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE" json:"-"`
}
