package dto

import (
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/google/uuid"
)

// CaptureRequest is the business capture form. Field names match the
// multipart form and the JSON record accepted by the CLI.
type CaptureRequest struct {
	BusinessName     string `form:"business_name" json:"business_name"`
	Industry         string `form:"industry" json:"industry"`
	CustomIndustry   string `form:"custom_industry" json:"custom_industry,omitempty"`
	Email            string `form:"email" json:"email"`
	Phone            string `form:"phone" json:"phone"`
	Address          string `form:"address" json:"address"`
	OwnerName        string `form:"owner_name" json:"owner_name"`
	YearsExperience  string `form:"years_experience" json:"years_experience"`
	BusinessStory    string `form:"business_story" json:"business_story"`
	MissionStatement string `form:"mission_statement" json:"mission_statement"`
	Values           string `form:"values" json:"values"`
	Goals            string `form:"goals" json:"goals"`
	Services         string `form:"services" json:"services"`
	PrimaryColor     string `form:"primary_color" json:"primary_color"`
}

// ResolvedIndustry returns the free-text industry when "custom" or "other"
// was picked. A blank custom value resolves to "other".
func (r *CaptureRequest) ResolvedIndustry() string {
	industry := strings.TrimSpace(r.Industry)
	if !strings.EqualFold(industry, "custom") && !strings.EqualFold(industry, "other") {
		return industry
	}
	if custom := strings.TrimSpace(r.CustomIndustry); custom != "" {
		return custom
	}
	return "other"
}

type SiteResponse struct {
	ID           uuid.UUID  `json:"id"`
	BusinessName string     `json:"business_name"`
	Industry     string     `json:"industry"`
	Status       string     `json:"status"`
	SiteURL      string     `json:"site_url,omitempty"`
	PreviewURL   string     `json:"preview_url"`
	GeneratedAt  *time.Time `json:"generated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type LeadCaptureRequest struct {
	SiteID           string `form:"site_id" json:"site_id"`
	Email            string `form:"email" json:"email"`
	ConsentDownload  bool   `form:"consent_download" json:"consent_download"`
	ConsentMarketing bool   `form:"consent_marketing" json:"consent_marketing"`
}

type LeadCaptureResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	DownloadURL string `json:"download_url"`
	Created     bool   `json:"created"`
}

type LeadListResponse struct {
	Leads  []models.EmailLead `json:"leads"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}
