package handlers

import (
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AnalyticsHandler struct {
	analyticsService *services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

func (h *AnalyticsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.analyticsService.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
