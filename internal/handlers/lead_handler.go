package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/gofiber/fiber/v2"
)

type LeadHandler struct {
	leadService *services.LeadService
	mailEnabled bool
}

// NewLeadHandler builds the handler. Without a mail server the download link
// is returned in the response instead of only being emailed.
func NewLeadHandler(leadService *services.LeadService, mailEnabled bool) *LeadHandler {
	return &LeadHandler{leadService: leadService, mailEnabled: mailEnabled}
}

// EmailDownload records the lead and sends the download link.
func (h *LeadHandler) EmailDownload(c *fiber.Ctx) error {
	req, err := leadRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.LeadCaptureResponse{
			Success: false, Message: "Invalid request body",
		})
	}
	if req.SiteID == "" || req.Email == "" || !req.ConsentDownload {
		return c.Status(fiber.StatusBadRequest).JSON(dto.LeadCaptureResponse{
			Success: false, Message: "Missing required fields",
		})
	}

	grant, err := h.leadService.RequestDownload(c.UserContext(), req)
	if err != nil {
		status, _, ok := classify(err)
		if !ok {
			slog.Error("email download failed", "site_id", req.SiteID, "error", err.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(dto.LeadCaptureResponse{
				Success: false, Message: "Server error",
			})
		}
		message := "Please enter a valid email address"
		if errors.Is(err, services.ErrSiteNotFound) {
			message = "This website does not exist"
		}
		return c.Status(status).JSON(dto.LeadCaptureResponse{Success: false, Message: message})
	}

	resp := dto.LeadCaptureResponse{Success: true, Created: grant.Result == services.LeadCreated}
	switch {
	case !h.mailEnabled:
		resp.Message = "Download link ready!"
		resp.DownloadURL = grant.URL
	case grant.Emailed:
		resp.Message = "Check your email for the download link!"
	default:
		resp.Success = false
		resp.Message = "Failed to send email. Your information has been saved."
		resp.DownloadURL = grant.URL
	}
	return c.JSON(resp)
}

// leadRequest reads JSON bodies with BodyParser and forms by hand so that
// checkbox values such as "on" count as consent.
func leadRequest(c *fiber.Ctx) (*dto.LeadCaptureRequest, error) {
	var req dto.LeadCaptureRequest
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
		if err := c.BodyParser(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}
	req.SiteID = strings.TrimSpace(c.FormValue("site_id"))
	req.Email = strings.TrimSpace(c.FormValue("email"))
	req.ConsentDownload = checked(c.FormValue("consent_download"))
	req.ConsentMarketing = checked(c.FormValue("consent_marketing"))
	return &req, nil
}

func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
