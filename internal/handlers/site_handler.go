package handlers

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/generator"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/web"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var uploadFields = []string{"logo", "hero_image", "about_image", "team_image"}

type SiteHandler struct {
	siteService *services.SiteService
	industries  []string
	pages       *web.Renderer
}

func NewSiteHandler(siteService *services.SiteService, industries []string, pages *web.Renderer) *SiteHandler {
	return &SiteHandler{siteService: siteService, industries: industries, pages: pages}
}

func (h *SiteHandler) Index(c *fiber.Ctx) error {
	return h.pages.Render(c, fiber.StatusOK, "index", web.Page{})
}

func (h *SiteHandler) CaptureForm(c *fiber.Ctx) error {
	return h.renderForm(c, fiber.StatusOK, &dto.CaptureRequest{}, nil, "")
}

// Capture handles the multipart capture form and redirects to the preview.
func (h *SiteHandler) Capture(c *fiber.Ctx) error {
	var req dto.CaptureRequest
	if err := c.BodyParser(&req); err != nil {
		return h.renderForm(c, fiber.StatusBadRequest, &req, nil, "The form could not be read. Please try again.")
	}

	uploads, closeUploads, err := formUploads(c)
	if err != nil {
		return h.renderForm(c, fiber.StatusBadRequest, &req, nil, "One of the images could not be read.")
	}
	defer closeUploads()

	var owner *uuid.UUID
	if s, ok := middleware.CurrentSession(c); ok {
		owner = &s.UserID
	}

	site, err := h.siteService.CreateAndGenerate(c.UserContext(), &req, uploads, owner)
	if err != nil {
		status, fields, known := classify(err)
		switch {
		case fields != nil:
			return h.renderForm(c, fiber.StatusBadRequest, &req, fields, "Please fill out the required fields.")
		case errors.Is(err, services.ErrSiteLimit):
			return h.renderForm(c, status, &req, nil, "You have reached the site limit of your plan. Upgrade to create more sites.")
		case !known:
			slog.Error("capture failed", "error", err.Error())
			return h.pages.Render(c, status, "message", web.MessagePage{
				Page:     web.Page{Title: "Something went wrong", MessageType: "error"},
				Body:     "We could not generate your website right now. Please try again in a moment.",
				LinkURL:  "/capture",
				LinkText: "Back to the form",
			})
		}
		return apiError(c, err)
	}

	return c.Redirect("/preview/"+site.ID.String(), fiber.StatusSeeOther)
}

func (h *SiteHandler) Preview(c *fiber.Ctx) error {
	site, _, err := h.siteService.ResolvePreview(c.UserContext(), c.Params("site_id"), "")
	if err != nil {
		if status, _, ok := classify(err); ok {
			return h.pages.Render(c, status, "message", web.MessagePage{
				Page:     web.Page{Title: "Site not found"},
				Body:     "This website does not exist or is not published.",
				LinkURL:  "/capture",
				LinkText: "Create a website",
			})
		}
		return err
	}
	return h.pages.Render(c, fiber.StatusOK, "preview", web.PreviewPage{
		Page:     web.Page{Title: site.BusinessName},
		Site:     site,
		IndexURL: generator.SiteURL(site.ID.String()),
	})
}

// ServeGenerated serves one file of a published site, read fresh from disk.
func (h *SiteHandler) ServeGenerated(c *fiber.Ctx) error {
	_, path, err := h.siteService.ResolvePreview(c.UserContext(), c.Params("site_id"), c.Params("filename"))
	if err != nil {
		if _, _, ok := classify(err); ok {
			return fiber.ErrNotFound
		}
		return err
	}
	return sendFile(c, path)
}

func (h *SiteHandler) ServeUpload(c *fiber.Ctx) error {
	path, err := h.siteService.UploadPath(c.Params("site_id"), c.Params("filename"))
	if err != nil {
		return fiber.ErrNotFound
	}
	return sendFile(c, path)
}

func (h *SiteHandler) GetSite(c *fiber.Ctx) error {
	return h.ownedAction(c, func(id, userID uuid.UUID) (*models.Site, error) {
		return h.siteService.GetOwned(c.UserContext(), id, userID)
	})
}

func (h *SiteHandler) Regenerate(c *fiber.Ctx) error {
	return h.ownedAction(c, func(id, userID uuid.UUID) (*models.Site, error) {
		return h.siteService.Regenerate(c.UserContext(), id, userID)
	})
}

func (h *SiteHandler) Archive(c *fiber.Ctx) error {
	return h.ownedAction(c, func(id, userID uuid.UUID) (*models.Site, error) {
		return h.siteService.Archive(c.UserContext(), id, userID)
	})
}

func (h *SiteHandler) Restore(c *fiber.Ctx) error {
	return h.ownedAction(c, func(id, userID uuid.UUID) (*models.Site, error) {
		return h.siteService.Restore(c.UserContext(), id, userID)
	})
}

func (h *SiteHandler) ownedAction(c *fiber.Ctx, action func(id, userID uuid.UUID) (*models.Site, error)) error {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: services.ErrSiteNotFound.Error(),
		})
	}
	site, err := action(id, session.UserID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(siteResponse(site))
}

func (h *SiteHandler) renderForm(c *fiber.Ctx, status int, req *dto.CaptureRequest, fields map[string]string, message string) error {
	page := web.CapturePage{
		Page:       web.Page{Title: "Create your website"},
		Form:       req,
		Industries: h.industries,
		Fields:     fields,
	}
	if message != "" {
		page.Message, page.MessageType = message, "error"
	}
	return h.pages.Render(c, status, "capture", page)
}

func siteResponse(site *models.Site) dto.SiteResponse {
	return dto.SiteResponse{
		ID:           site.ID,
		BusinessName: site.BusinessName,
		Industry:     site.Industry,
		Status:       string(site.Status),
		SiteURL:      site.SiteURL,
		PreviewURL:   "/preview/" + site.ID.String(),
		GeneratedAt:  site.GeneratedAt,
		CreatedAt:    site.CreatedAt,
	}
}

// formUploads opens the image fields of a multipart request. Requests that
// are not multipart carry no uploads.
func formUploads(c *fiber.Ctx) ([]services.Upload, func(), error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, func() {}, nil
	}

	var (
		uploads []services.Upload
		files   []multipart.File
	)
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, field := range uploadFields {
		headers := form.File[field]
		if len(headers) == 0 || headers[0].Filename == "" {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		files = append(files, f)
		uploads = append(uploads, services.Upload{
			Slot:     field,
			Filename: headers[0].Filename,
			Content:  f,
		})
	}
	return uploads, closeAll, nil
}

// sendFile reads the file on every request so a regenerated site is never
// answered from a stale file cache.
func sendFile(c *fiber.Ctx, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fiber.ErrNotFound
		}
		return err
	}
	c.Type(filepath.Ext(path))
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(body)
}
