package handlers

import (
	"crypto/subtle"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/gofiber/fiber/v2"
)

type WebhookHandler struct {
	subscriptionService *services.SubscriptionService
	secret              string
}

func NewWebhookHandler(subscriptionService *services.SubscriptionService, secret string) *WebhookHandler {
	return &WebhookHandler{subscriptionService: subscriptionService, secret: secret}
}

// HandleBilling applies payment provider events. The Authorization header
// must equal BILLING_WEBHOOK_SECRET.
func (h *WebhookHandler) HandleBilling(c *fiber.Ctx) error {
	if h.secret == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Webhooks not configured",
		})
	}

	authHeader := c.Get("Authorization")
	if subtle.ConstantTimeCompare([]byte(authHeader), []byte(h.secret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var webhook dto.BillingWebhook
	if err := c.BodyParser(&webhook); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid webhook payload",
		})
	}

	if err := h.subscriptionService.HandleWebhookEvent(c.UserContext(), &webhook.Event); err != nil {
		slog.Error("webhook processing failed", "event_type", webhook.Event.Type, "event_id", webhook.Event.ID, "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process webhook event",
		})
	}

	slog.Info("webhook processed", "event_type", webhook.Event.Type, "event_id", webhook.Event.ID)
	return c.JSON(fiber.Map{"received": true})
}
