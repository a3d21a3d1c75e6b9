package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/cache"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/generator"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/repository"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/storage"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/datatypes"
)

var (
	uploadSlots = map[string]bool{"logo": true, "hero_image": true, "about_image": true, "team_image": true}
	imageExts   = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}
)

// Upload is one image submitted with the capture form.
type Upload struct {
	Slot     string
	Filename string
	Content  io.Reader
}

type SiteService struct {
	stores     *repository.Stores
	gen        *generator.Generator
	subs       *SubscriptionService
	cache      *cache.Cache
	metrics    *metrics.Metrics
	publisher  storage.Publisher
	uploadsDir string
	now        func() time.Time
}

func NewSiteService(
	stores *repository.Stores,
	gen *generator.Generator,
	subs *SubscriptionService,
	c *cache.Cache,
	m *metrics.Metrics,
	pub storage.Publisher,
	uploadsDir string,
) *SiteService {
	if pub == nil {
		pub = storage.NoopPublisher{}
	}
	return &SiteService{
		stores:     stores,
		gen:        gen,
		subs:       subs,
		cache:      c,
		metrics:    m,
		publisher:  pub,
		uploadsDir: uploadsDir,
		now:        time.Now,
	}
}

// CreateAndGenerate stores the captured business and renders its site.
// Anonymous captures are owned by the user behind the contact email. When
// ownerID is set the owner's plan limit applies. On a generation failure
// the site is returned in draft together with an ErrGenerationFailed error.
func (s *SiteService) CreateAndGenerate(ctx context.Context, req *dto.CaptureRequest, uploads []Upload, ownerID *uuid.UUID) (*models.Site, error) {
	site := siteFromRequest(req)
	if err := businessData(site).Validate(); err != nil {
		return nil, err
	}
	email, err := parseEmail(req.Email)
	if err != nil {
		return nil, err
	}
	site.Email = email

	owner, err := s.resolveOwner(ctx, email, req.OwnerName, ownerID)
	if err != nil {
		return nil, err
	}
	site.UserID = owner

	saved, err := s.saveUploads(site.ID, uploads)
	if err != nil {
		s.removeUploads(site.ID)
		return nil, err
	}
	site.Uploads = datatypes.NewJSONType(saved)

	if err := s.stores.Sites.Create(ctx, site); err != nil {
		if len(saved) > 0 {
			s.removeUploads(site.ID)
		}
		return nil, fmt.Errorf("create site: %w", err)
	}
	slog.Info("site captured", "site_id", site.ID.String(), "user_id", owner.String(), "industry", site.Industry)

	return s.generate(ctx, site)
}

// Regenerate renders a draft or active site again from its stored record.
func (s *SiteService) Regenerate(ctx context.Context, siteID, userID uuid.UUID) (*models.Site, error) {
	site, err := s.GetOwned(ctx, siteID, userID)
	if err != nil {
		return nil, err
	}
	if !site.Status.CanTransition(models.SiteActive) {
		return nil, ErrInvalidTransition
	}
	return s.generate(ctx, site)
}

func (s *SiteService) Get(ctx context.Context, siteID uuid.UUID) (*models.Site, error) {
	site, err := s.stores.Sites.GetByID(ctx, siteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSiteNotFound
	}
	return site, err
}

// GetOwned loads a site and checks it belongs to userID.
func (s *SiteService) GetOwned(ctx context.Context, siteID, userID uuid.UUID) (*models.Site, error) {
	site, err := s.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site.UserID != userID {
		return nil, ErrForbidden
	}
	return site, nil
}

func (s *SiteService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Site, error) {
	return s.stores.Sites.ListByUser(ctx, userID)
}

// Archive takes a draft or active site offline. Its files stay on disk.
func (s *SiteService) Archive(ctx context.Context, siteID, userID uuid.UUID) (*models.Site, error) {
	site, err := s.GetOwned(ctx, siteID, userID)
	if err != nil {
		return nil, err
	}
	if !site.Status.CanTransition(models.SiteArchived) {
		return nil, ErrInvalidTransition
	}
	if err := s.updateStatus(ctx, site, models.SiteArchived); err != nil {
		return nil, err
	}
	slog.Info("site archived", "site_id", site.ID.String(), "user_id", userID.String())
	return site, nil
}

// Restore brings an archived site back to active, regenerating it when its
// output is gone. If regeneration fails the site stays archived.
func (s *SiteService) Restore(ctx context.Context, siteID, userID uuid.UUID) (*models.Site, error) {
	site, err := s.GetOwned(ctx, siteID, userID)
	if err != nil {
		return nil, err
	}
	if site.Status != models.SiteArchived {
		return nil, ErrInvalidTransition
	}
	if err := s.updateStatus(ctx, site, models.SiteActive); err != nil {
		return nil, err
	}
	if s.gen.Exists(site.ID.String()) {
		return site, nil
	}
	if _, err := s.generate(ctx, site); err != nil {
		if rerr := s.updateStatus(ctx, site, models.SiteArchived); rerr != nil {
			slog.Error("re-archive after failed restore", "site_id", site.ID.String(), "error", rerr.Error())
		}
		return site, err
	}
	return site, nil
}

// ResolvePreview returns the site and the path of a generated file that may
// be shown publicly. An empty name means index.html.
func (s *SiteService) ResolvePreview(ctx context.Context, rawID, name string) (*models.Site, string, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, "", ErrSiteNotFound
	}
	site, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !site.IsPublished() || !s.gen.Exists(site.ID.String()) {
		return nil, "", ErrSiteNotFound
	}
	if name == "" {
		name = generator.IndexFile
	}
	path, err := s.gen.FilePath(site.ID.String(), name)
	if err != nil {
		return nil, "", ErrFileNotFound
	}
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return nil, "", ErrFileNotFound
	}
	return site, path, nil
}

// UploadPath resolves a raw uploaded image.
func (s *SiteService) UploadPath(siteID, name string) (string, error) {
	if _, err := uuid.Parse(siteID); err != nil {
		return "", ErrFileNotFound
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrFileNotFound
	}
	path := filepath.Join(s.uploadsDir, siteID, name)
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return "", ErrFileNotFound
	}
	return path, nil
}

// WriteArchive streams the site's ZIP to w.
func (s *SiteService) WriteArchive(ctx context.Context, site *models.Site, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if site.Status == models.SiteArchived {
		return ErrSiteNotFound
	}
	err := s.gen.Archive(w, site.ID.String())
	if errors.Is(err, generator.ErrSiteNotGenerated) {
		return ErrSiteNotFound
	}
	if err == nil {
		s.metrics.RecordDownload()
	}
	return err
}

// ArchiveName is the download file name, e.g. "acme-plumbing-website.zip".
func ArchiveName(site *models.Site) string {
	name := slug.Make(site.BusinessName)
	if name == "" {
		name = site.ID.String()
	}
	return name + "-website.zip"
}

func (s *SiteService) generate(ctx context.Context, site *models.Site) (*models.Site, error) {
	started := s.now()
	result, err := s.gen.Generate(ctx, businessData(site))
	if err != nil {
		s.metrics.RecordGeneration(site.Industry, false, s.now().Sub(started))
		slog.Error("site generation failed", "site_id", site.ID.String(), "error", err.Error())
		return site, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	files := make([]models.GeneratedFile, 0, len(result.Files))
	paths := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		files = append(files, models.GeneratedFile{
			SiteID:   site.ID,
			FileName: f.Name,
			FileType: f.Type,
			FilePath: f.Path,
			FileSize: f.Size,
		})
		paths = append(paths, f.Path)
	}
	if err := s.stores.Files.ReplaceForSite(ctx, site.ID, files); err != nil {
		return site, fmt.Errorf("record generated files: %w", err)
	}
	if err := s.stores.Sites.MarkGenerated(ctx, site.ID, result.SiteURL, result.GeneratedAt); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return site, ErrInvalidTransition
		}
		return site, fmt.Errorf("mark generated: %w", err)
	}
	site.Status = models.SiteActive
	site.SiteURL = result.SiteURL
	site.GeneratedAt = &result.GeneratedAt

	s.metrics.RecordGeneration(site.Industry, true, s.now().Sub(started))
	if err := s.cache.TrackGeneration(ctx, site.Industry); err != nil {
		slog.Warn("track generation failed", "site_id", site.ID.String(), "error", err.Error())
	}
	if url, err := s.publisher.Publish(ctx, site.ID.String(), paths); err != nil {
		slog.Warn("publish to storage failed", "site_id", site.ID.String(), "error", err.Error())
	} else if url != "" {
		slog.Info("site published", "site_id", site.ID.String(), "url", url)
	}

	slog.Info("site generated", "site_id", site.ID.String(), "files", len(files),
		"latency_ms", float64(s.now().Sub(started).Microseconds())/1000)
	return site, nil
}

func (s *SiteService) resolveOwner(ctx context.Context, email, fullName string, ownerID *uuid.UUID) (uuid.UUID, error) {
	if ownerID == nil {
		user, created, err := s.stores.Users.FindOrCreateByEmail(ctx, email, strings.TrimSpace(fullName))
		if err != nil {
			return uuid.Nil, fmt.Errorf("resolve owner: %w", err)
		}
		if created {
			if err := s.subs.EnsureFree(ctx, user.ID); err != nil {
				return uuid.Nil, fmt.Errorf("start free plan: %w", err)
			}
		}
		return user.ID, nil
	}

	features, err := s.subs.EntitlementsFor(ctx, *ownerID)
	if err != nil {
		return uuid.Nil, err
	}
	n, err := s.stores.Sites.CountActiveByUser(ctx, *ownerID)
	if err != nil {
		return uuid.Nil, err
	}
	if !features.AllowsSites(n) {
		return uuid.Nil, ErrSiteLimit
	}
	return *ownerID, nil
}

func (s *SiteService) updateStatus(ctx context.Context, site *models.Site, to models.SiteStatus) error {
	err := s.stores.Sites.UpdateStatus(ctx, site.ID, []models.SiteStatus{site.Status}, to)
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return ErrInvalidTransition
	case errors.Is(err, repository.ErrNotFound):
		return ErrSiteNotFound
	case err != nil:
		return err
	}
	site.Status = to
	return nil
}

// saveUploads writes accepted images to <uploads>/<site>/<slot><ext>.
// Unknown slots and unsupported extensions are skipped.
func (s *SiteService) saveUploads(siteID uuid.UUID, uploads []Upload) (map[string]string, error) {
	saved := map[string]string{}
	if len(uploads) == 0 {
		return saved, nil
	}
	dir := filepath.Join(s.uploadsDir, siteID.String())
	for _, u := range uploads {
		ext := strings.ToLower(filepath.Ext(u.Filename))
		if !uploadSlots[u.Slot] || !imageExts[ext] {
			slog.Warn("upload skipped", "site_id", siteID.String(), "slot", u.Slot, "file", u.Filename)
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
		dst := filepath.Join(dir, u.Slot+ext)
		if err := writeUpload(dst, u.Content); err != nil {
			return nil, err
		}
		saved[u.Slot] = dst
	}
	return saved, nil
}

func (s *SiteService) removeUploads(siteID uuid.UUID) {
	dir := filepath.Join(s.uploadsDir, siteID.String())
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("remove orphaned uploads failed", "site_id", siteID.String(), "error", err.Error())
	}
}

func writeUpload(dst string, r io.Reader) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("save upload: %w", err)
	}
	return f.Close()
}

func siteFromRequest(req *dto.CaptureRequest) *models.Site {
	color := strings.TrimSpace(req.PrimaryColor)
	if _, err := generator.HexToHSL(color); err != nil {
		color = generator.DefaultPrimaryColor
	}
	return &models.Site{
		ID:               uuid.New(),
		BusinessName:     strings.TrimSpace(req.BusinessName),
		Industry:         req.ResolvedIndustry(),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		Address:          strings.TrimSpace(req.Address),
		OwnerName:        strings.TrimSpace(req.OwnerName),
		YearsExperience:  strings.TrimSpace(req.YearsExperience),
		BusinessStory:    strings.TrimSpace(req.BusinessStory),
		MissionStatement: strings.TrimSpace(req.MissionStatement),
		Values:           req.Values,
		Goals:            req.Goals,
		Services:         req.Services,
		PrimaryColor:     color,
		Status:           models.SiteDraft,
	}
}

func businessData(site *models.Site) generator.BusinessData {
	return generator.BusinessData{
		ID:               site.ID.String(),
		BusinessName:     site.BusinessName,
		Industry:         site.Industry,
		Email:            site.Email,
		Phone:            site.Phone,
		Address:          site.Address,
		OwnerName:        site.OwnerName,
		YearsExperience:  site.YearsExperience,
		BusinessStory:    site.BusinessStory,
		MissionStatement: site.MissionStatement,
		Values:           site.Values,
		Goals:            site.Goals,
		Services:         site.Services,
		PrimaryColor:     site.PrimaryColor,
		Uploads:          site.Uploads.Data(),
	}
}
