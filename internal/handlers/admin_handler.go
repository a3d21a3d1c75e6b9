package handlers

import (
	"bytes"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/web"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const exportPageSize = 500

type AdminHandler struct {
	leadService *services.LeadService
	pages       *web.Renderer
}

func NewAdminHandler(leadService *services.LeadService, pages *web.Renderer) *AdminHandler {
	return &AdminHandler{leadService: leadService, pages: pages}
}

// ListLeads renders the lead table, or JSON when the client asks for it.
func (h *AdminHandler) ListLeads(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)

	leads, total, err := h.leadService.ListAll(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}

	if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
		return c.JSON(dto.LeadListResponse{Leads: leads, Total: total, Limit: limit, Offset: offset})
	}
	return h.pages.Render(c, fiber.StatusOK, "leads", web.LeadsPage{
		Page:  web.Page{Title: "Leads"},
		Leads: leads,
		Total: total,
	})
}

// ExportLeads streams every lead, or those of ?site=<id>, as CSV.
func (h *AdminHandler) ExportLeads(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var leads []models.EmailLead
	if raw := c.Query("site"); raw != "" {
		siteID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid site id",
			})
		}
		if leads, err = h.leadService.ListForSite(ctx, siteID); err != nil {
			return err
		}
	} else {
		for offset := 0; ; offset += exportPageSize {
			page, total, err := h.leadService.ListAll(ctx, exportPageSize, offset)
			if err != nil {
				return err
			}
			leads = append(leads, page...)
			if len(page) < exportPageSize || int64(offset+len(page)) >= total {
				break
			}
		}
	}

	var buf bytes.Buffer
	if err := services.WriteCSV(&buf, leads); err != nil {
		return err
	}
	c.Attachment("sitegen_leads.csv")
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}
