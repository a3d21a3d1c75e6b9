package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/web"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService         *services.AuthService
	siteService         *services.SiteService
	subscriptionService *services.SubscriptionService
	leadService         *services.LeadService
	pages               *web.Renderer
	secureCookies       bool
}

func NewAuthHandler(
	authService *services.AuthService,
	siteService *services.SiteService,
	subscriptionService *services.SubscriptionService,
	leadService *services.LeadService,
	pages *web.Renderer,
	secureCookies bool,
) *AuthHandler {
	return &AuthHandler{
		authService:         authService,
		siteService:         siteService,
		subscriptionService: subscriptionService,
		leadService:         leadService,
		pages:               pages,
		secureCookies:       secureCookies,
	}
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return h.pages.Render(c, fiber.StatusOK, "login", web.LoginPage{Page: web.Page{Title: "Log in"}})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return h.loginPage(c, fiber.StatusBadRequest, req.Email, "Please enter your email address", "error")
	}

	err := h.authService.RequestLogin(c.UserContext(), req.Email)
	var ferr *services.FieldError
	switch {
	case errors.As(err, &ferr):
		return h.loginPage(c, fiber.StatusBadRequest, req.Email, "Please enter a valid email address", "error")
	case err != nil:
		slog.Error("login link failed", "error", err.Error())
		return h.loginPage(c, fiber.StatusInternalServerError, req.Email, "Error sending login email. Please try again.", "error")
	}
	return h.loginPage(c, fiber.StatusOK, "", "Magic link sent to "+req.Email+"! Check your email and click the link to log in.", "success")
}

// Verify exchanges a magic-link token for a session cookie.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	user, session, err := h.authService.VerifyLogin(c.UserContext(), c.Params("token"))
	if err != nil {
		if !errors.Is(err, services.ErrInvalidToken) {
			slog.Error("login verification failed", "error", err.Error())
			return err
		}
		return h.pages.Render(c, fiber.StatusBadRequest, "message", web.MessagePage{
			Page:     web.Page{Title: "Link expired", MessageType: "error"},
			Body:     "Invalid or expired login link. Please try again.",
			LinkURL:  "/auth/login",
			LinkText: "Request a new link",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    session,
		Path:     "/",
		Expires:  time.Now().Add(h.authService.SessionTTL()),
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	slog.Info("user logged in", "user_id", user.ID.String())
	return c.Redirect("/auth/dashboard", fiber.StatusSeeOther)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (h *AuthHandler) Dashboard(c *fiber.Ctx) error {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Redirect("/auth/login", fiber.StatusSeeOther)
	}
	ctx := c.UserContext()

	sites, err := h.siteService.ListForUser(ctx, session.UserID)
	if err != nil {
		return err
	}
	sub, err := h.subscriptionService.Current(ctx, session.UserID)
	if err != nil && !errors.Is(err, services.ErrNoSubscription) {
		return err
	}
	features := h.subscriptionService.Entitlements(sub)
	leads, err := h.leadService.ListForUser(ctx, session.UserID)
	if err != nil {
		return err
	}

	return h.pages.Render(c, fiber.StatusOK, "dashboard", web.DashboardPage{
		Page:         web.Page{Title: "Dashboard"},
		Email:        session.Email,
		Sites:        sites,
		Subscription: sub,
		Features:     features,
		LeadCount:    len(leads),
	})
}

// DownloadWithToken serves the ZIP behind an emailed download link.
func (h *AuthHandler) DownloadWithToken(c *fiber.Ctx) error {
	_, siteID, err := h.authService.ParseDownloadToken(c.Params("token"))
	if err != nil {
		return h.pages.Render(c, fiber.StatusBadRequest, "message", web.MessagePage{
			Page:     web.Page{Title: "Link expired", MessageType: "error"},
			Body:     "Invalid or expired download link.",
			LinkURL:  "/",
			LinkText: "Back to SiteGen",
		})
	}
	site, err := h.siteService.Get(c.UserContext(), siteID)
	if err != nil {
		return h.downloadError(c, err)
	}
	return h.sendArchive(c, site)
}

// DownloadOwned serves the ZIP of one of the logged-in user's sites.
func (h *AuthHandler) DownloadOwned(c *fiber.Ctx) error {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Redirect("/auth/login", fiber.StatusSeeOther)
	}
	id, err := uuid.Parse(c.Params("site_id"))
	if err != nil {
		return h.downloadError(c, services.ErrSiteNotFound)
	}
	site, err := h.siteService.GetOwned(c.UserContext(), id, session.UserID)
	if err != nil {
		return h.downloadError(c, err)
	}
	return h.sendArchive(c, site)
}

func (h *AuthHandler) sendArchive(c *fiber.Ctx, site *models.Site) error {
	var buf bytes.Buffer
	if err := h.siteService.WriteArchive(c.UserContext(), site, &buf); err != nil {
		return h.downloadError(c, err)
	}
	c.Attachment(services.ArchiveName(site))
	c.Type("zip")
	return c.Send(buf.Bytes())
}

func (h *AuthHandler) downloadError(c *fiber.Ctx, err error) error {
	status, _, ok := classify(err)
	if !ok {
		return err
	}
	return h.pages.Render(c, status, "message", web.MessagePage{
		Page:     web.Page{Title: "Download unavailable", MessageType: "error"},
		Body:     "Website files not found.",
		LinkURL:  "/",
		LinkText: "Back to SiteGen",
	})
}

func (h *AuthHandler) loginPage(c *fiber.Ctx, status int, email, message, kind string) error {
	return h.pages.Render(c, status, "login", web.LoginPage{
		Page:  web.Page{Title: "Log in", Message: message, MessageType: kind},
		Email: email,
	})
}
