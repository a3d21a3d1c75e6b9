package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/config"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/repository"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Handlers groups everything Setup mounts.
type Handlers struct {
	Site         *handlers.SiteHandler
	Auth         *handlers.AuthHandler
	Lead         *handlers.LeadHandler
	Admin        *handlers.AdminHandler
	Analytics    *handlers.AnalyticsHandler
	Subscription *handlers.SubscriptionHandler
	Webhook      *handlers.WebhookHandler
	Health       *handlers.HealthHandler
	Legal        *handlers.LegalHandler
}

func perIP(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	users repository.UserStore,
	authService *services.AuthService,
	m *metrics.Metrics,
	h Handlers,
) {
	app.Get("/health", h.Health.Check)
	app.Get("/metrics", m.Handler())
	app.Get("/privacy", h.Legal.PrivacyNotice)

	// Generated output and uploads are public by site id.
	app.Get("/generated_sites/:site_id/:filename", h.Site.ServeGenerated)
	app.Get("/uploads/:site_id/:filename", h.Site.ServeUpload)

	// Middleware is applied per route so public routes stay untouched.
	session := middleware.OptionalSession(authService)
	protected := middleware.JWTProtected(cfg)
	loginRequired := middleware.LoginRequired(cfg)

	app.Get("/", session, h.Site.Index)
	app.Get("/capture", session, h.Site.CaptureForm)
	app.Post("/capture", perIP(10), session, h.Site.Capture)
	app.Get("/preview/:site_id", session, h.Site.Preview)

	// Auth: magic links, dashboard and downloads
	auth := app.Group("/auth")
	auth.Get("/login", h.Auth.LoginForm)
	auth.Post("/login", perIP(5), h.Auth.Login)
	auth.Get("/verify/:token", perIP(20), h.Auth.Verify)
	auth.Get("/logout", h.Auth.Logout)
	auth.Get("/dashboard", loginRequired, h.Auth.Dashboard)
	auth.Post("/email-download", perIP(10), h.Lead.EmailDownload)
	auth.Get("/download/token/:token", h.Auth.DownloadWithToken)
	auth.Get("/download/:site_id", loginRequired, h.Auth.DownloadOwned)

	app.Get("/analytics/api/stats", h.Analytics.Stats)

	api := app.Group("/api", perIP(60))

	// Webhooks authenticate with the shared secret, not a session.
	api.Post("/webhooks/billing", h.Webhook.HandleBilling)

	api.Get("/sites/:id", protected, h.Site.GetSite)
	api.Post("/sites/:id/regenerate", protected, h.Site.Regenerate)
	api.Post("/sites/:id/archive", protected, h.Site.Archive)
	api.Post("/sites/:id/restore", protected, h.Site.Restore)

	api.Get("/subscription", protected, h.Subscription.Get)
	api.Post("/subscription", protected, h.Subscription.Signup)
	api.Post("/subscription/cancel", protected, h.Subscription.Cancel)
	api.Post("/subscription/renew", protected, h.Subscription.Renew)

	// Admin lead management
	admin := app.Group("/admin", session, middleware.AdminRequired(users, cfg))
	admin.Get("/leads", h.Admin.ListLeads)
	admin.Get("/leads/export", h.Admin.ExportLeads)
}
