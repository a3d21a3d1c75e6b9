package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SiteStatus string

const (
	SiteDraft    SiteStatus = "draft"
	SiteActive   SiteStatus = "active"
	SiteArchived SiteStatus = "archived"
)

// allowedTransitions lists the statuses a site may move to from each state.
// archived -> active is reserved for Restore and is not listed here.
var allowedTransitions = map[SiteStatus][]SiteStatus{
	SiteDraft:  {SiteActive, SiteArchived},
	SiteActive: {SiteActive, SiteArchived},
}

// CanTransition reports whether a regular status change from s to next is
// permitted.
func (s SiteStatus) CanTransition(next SiteStatus) bool {
	for _, to := range allowedTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

func (s SiteStatus) Valid() bool {
	switch s {
	case SiteDraft, SiteActive, SiteArchived:
		return true
	}
	return false
}

// Site is one captured business and its generated website. Rows are never
// deleted; archiving goes through Status.
type Site struct {
	ID               uuid.UUID                             `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID           uuid.UUID                             `gorm:"type:uuid;not null;index" json:"user_id"`
	BusinessName     string                                `gorm:"size:255;not null" json:"business_name"`
	Industry         string                                `gorm:"size:100;not null;index" json:"industry"`
	Email            string                                `gorm:"size:255;not null" json:"email"`
	Phone            string                                `gorm:"size:50" json:"phone"`
	Address          string                                `gorm:"type:text" json:"address"`
	OwnerName        string                                `gorm:"size:255" json:"owner_name"`
	YearsExperience  string                                `gorm:"size:50" json:"years_experience"`
	BusinessStory    string                                `gorm:"type:text" json:"business_story"`
	MissionStatement string                                `gorm:"type:text" json:"mission_statement"`
	Values           string                                `gorm:"type:text" json:"values"`
	Goals            string                                `gorm:"type:text" json:"goals"`
	Services         string                                `gorm:"type:text" json:"services"`
	PrimaryColor     string                                `gorm:"size:7;default:'#0077CC'" json:"primary_color"`
	Uploads          datatypes.JSONType[map[string]string] `gorm:"type:jsonb" json:"uploads"`
	Status           SiteStatus                            `gorm:"size:20;not null;default:'draft';index;check:chk_sites_status,status IN ('draft','active','archived')" json:"status"`
	SiteURL          string                                `gorm:"size:500" json:"site_url"`
	GeneratedAt      *time.Time                            `json:"generated_at,omitempty"`
	CreatedAt        time.Time                             `json:"created_at"`
	UpdatedAt        time.Time                             `json:"updated_at"`
	User             User                                  `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (s *Site) IsPublished() bool {
	return s.Status == SiteActive
}
