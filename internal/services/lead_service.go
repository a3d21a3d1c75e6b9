package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/cache"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	mailer "github.com/ahmetcoskunkizilkaya/sitegen/internal/mail"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/repository"
	"github.com/google/uuid"
)

// Lead capture outcomes, also used as metric labels.
const (
	LeadCreated   = "created"
	LeadUpdated   = "updated"
	LeadDuplicate = "duplicate"
)

var leadCSVHeader = []string{
	"email", "business_name", "industry", "site_id",
	"consent_download", "consent_marketing", "consent_date", "status", "captured_at",
}

// DownloadGrant is the result of a download request: the stored lead and a
// signed link to the site archive.
type DownloadGrant struct {
	Lead    *models.EmailLead
	Result  string
	Token   string
	URL     string
	Emailed bool
}

type LeadService struct {
	leads   repository.LeadStore
	sites   repository.SiteStore
	auth    *AuthService
	mailer  mailer.Mailer
	cache   *cache.Cache
	metrics *metrics.Metrics
	baseURL string
	now     func() time.Time
}

func NewLeadService(
	stores *repository.Stores,
	auth *AuthService,
	m mailer.Mailer,
	c *cache.Cache,
	mt *metrics.Metrics,
	baseURL string,
) *LeadService {
	return &LeadService{
		leads:   stores.Leads,
		sites:   stores.Sites,
		auth:    auth,
		mailer:  m,
		cache:   c,
		metrics: mt,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Capture records consent for (site, email). Repeats return the stored
// lead. result is one of LeadCreated, LeadUpdated or LeadDuplicate.
func (s *LeadService) Capture(ctx context.Context, req *dto.LeadCaptureRequest) (*models.EmailLead, string, error) {
	email, err := parseEmail(req.Email)
	if err != nil {
		return nil, "", err
	}
	if !req.ConsentDownload {
		return nil, "", ErrConsentRequired
	}
	siteID, err := uuid.Parse(strings.TrimSpace(req.SiteID))
	if err != nil {
		return nil, "", ErrSiteNotFound
	}
	site, err := s.sites.GetByID(ctx, siteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", ErrSiteNotFound
	}
	if err != nil {
		return nil, "", err
	}

	key := siteID.String()
	seen, err := s.cache.MarkLeadSeen(ctx, key, email)
	if err != nil {
		slog.Warn("lead dedup check failed", "site_id", key, "error", err.Error())
	}
	if seen {
		lead, err := s.leads.Get(ctx, siteID, email)
		if err == nil {
			s.metrics.RecordLead(LeadDuplicate)
			return lead, LeadDuplicate, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, "", err
		}
	}

	now := s.now()
	lead := &models.EmailLead{
		SiteID:           siteID,
		Email:            email,
		BusinessName:     site.BusinessName,
		Industry:         site.Industry,
		ConsentDownload:  true,
		ConsentMarketing: req.ConsentMarketing,
		ConsentDate:      &now,
		Status:           models.LeadFreeDownload,
	}
	created, err := s.leads.Upsert(ctx, lead)
	if err != nil {
		if ferr := s.cache.ForgetLead(ctx, key, email); ferr != nil {
			slog.Warn("lead dedup cleanup failed", "site_id", key, "error", ferr.Error())
		}
		return nil, "", fmt.Errorf("store lead: %w", err)
	}

	result := LeadUpdated
	if created {
		result = LeadCreated
		slog.Info("lead captured", "site_id", key, "marketing", req.ConsentMarketing)
	}
	s.metrics.RecordLead(result)
	return lead, result, nil
}

// RequestDownload captures the lead and mails a signed download link.
// A mail failure is logged; the link is still returned.
func (s *LeadService) RequestDownload(ctx context.Context, req *dto.LeadCaptureRequest) (*DownloadGrant, error) {
	lead, result, err := s.Capture(ctx, req)
	if err != nil {
		return nil, err
	}
	token, err := s.auth.IssueDownloadToken(lead.Email, lead.SiteID)
	if err != nil {
		return nil, err
	}
	grant := &DownloadGrant{
		Lead:   lead,
		Result: result,
		Token:  token,
		URL:    s.baseURL + "/auth/download/token/" + token,
	}
	if err := s.mailer.SendDownloadLink(ctx, lead.Email, lead.BusinessName, grant.URL, s.auth.DownloadTokenTTL()); err != nil {
		slog.Error("download email failed", "site_id", lead.SiteID.String(), "error", err.Error())
	} else {
		grant.Emailed = true
	}
	return grant, nil
}

func (s *LeadService) ListForSite(ctx context.Context, siteID uuid.UUID) ([]models.EmailLead, error) {
	return s.leads.ListBySite(ctx, siteID)
}

func (s *LeadService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.EmailLead, error) {
	return s.leads.ListByUser(ctx, userID)
}

func (s *LeadService) ListAll(ctx context.Context, limit, offset int) ([]models.EmailLead, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.leads.ListAll(ctx, limit, offset)
}

// WriteCSV writes leads with a header row.
func WriteCSV(w io.Writer, leads []models.EmailLead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(leadCSVHeader); err != nil {
		return err
	}
	for _, l := range leads {
		consentDate := ""
		if l.ConsentDate != nil {
			consentDate = l.ConsentDate.UTC().Format(time.RFC3339)
		}
		row := []string{
			l.Email,
			l.BusinessName,
			l.Industry,
			l.SiteID.String(),
			strconv.FormatBool(l.ConsentDownload),
			strconv.FormatBool(l.ConsentMarketing),
			consentDate,
			l.Status,
			l.CapturedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
