package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/gofiber/fiber/v2"
)

const defaultRenewDays = 30

type SubscriptionHandler struct {
	subscriptionService *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

func (h *SubscriptionHandler) Get(c *fiber.Ctx) error {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	sub, err := h.subscriptionService.Current(c.UserContext(), session.UserID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(h.response(sub))
}

func (h *SubscriptionHandler) Signup(c *fiber.Ctx) error {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	var req dto.SubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	sub, err := h.subscriptionService.Signup(c.UserContext(), session.UserID, req.Plan)
	if err != nil {
		return apiError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.response(sub))
}

func (h *SubscriptionHandler) Cancel(c *fiber.Ctx) error {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	sub, err := h.subscriptionService.Cancel(c.UserContext(), session.UserID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(h.response(sub))
}

func (h *SubscriptionHandler) Renew(c *fiber.Ctx) error {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	var req dto.RenewRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid request body",
			})
		}
	}
	if req.Days <= 0 {
		req.Days = defaultRenewDays
	}
	until := time.Now().Add(time.Duration(req.Days) * 24 * time.Hour)
	sub, err := h.subscriptionService.Renew(c.UserContext(), session.UserID, until)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(h.response(sub))
}

func (h *SubscriptionHandler) response(sub *models.Subscription) dto.SubscriptionResponse {
	resp := dto.SubscriptionResponse{
		Plan:         sub.Plan,
		Status:       sub.Status,
		StartedAt:    sub.StartedAt.UTC().Format(time.RFC3339),
		Entitlements: h.subscriptionService.Entitlements(sub),
	}
	if sub.ExpiresAt != nil {
		resp.ExpiresAt = sub.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}
