package handlers

import (
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/web"
	"github.com/gofiber/fiber/v2"
)

type LegalHandler struct {
	pages   *web.Renderer
	contact string
}

func NewLegalHandler(pages *web.Renderer, contact string) *LegalHandler {
	return &LegalHandler{pages: pages, contact: contact}
}

// PrivacyNotice explains what the lead capture form stores and why.
func (h *LegalHandler) PrivacyNotice(c *fiber.Ctx) error {
	return h.pages.Render(c, fiber.StatusOK, "privacy", web.PrivacyPage{
		Page:    web.Page{Title: "Privacy"},
		Contact: h.contact,
	})
}
