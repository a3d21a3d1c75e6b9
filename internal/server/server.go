// Package server wires configuration, storage and services into the HTTP
// application shared by cmd/server and cmd/sitegen.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/cache"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/config"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/database"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/generator"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/jobs"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/logging"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/mail"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/repository"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/routes"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/storage"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/web"
)

const shutdownTimeout = 10 * time.Second

// Server holds the assembled dependencies. DB is nil on the memory driver.
type Server struct {
	Config    *config.Config
	DB        *gorm.DB
	Stores    *repository.Stores
	Cache     *cache.Cache
	Metrics   *metrics.Metrics
	Generator *generator.Generator
	Mailer    mail.Mailer

	Subscriptions *services.SubscriptionService
	Auth          *services.AuthService
	Sites         *services.SiteService
	Leads         *services.LeadService
	Analytics     *services.AnalyticsService

	pgLog *logging.PGHandler
}

// New connects storage and builds the services. With migrate set the
// database schema is brought up to date first.
func New(ctx context.Context, cfg *config.Config, migrate bool) (*Server, error) {
	s := &Server{Config: cfg, Metrics: metrics.New()}

	switch cfg.StorageDriver {
	case "memory":
		s.Stores = repository.NewMemoryStores()
		slog.Warn("using in-memory storage, data is lost on restart")
	default:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := database.Migrate(db); err != nil {
				return nil, fmt.Errorf("migration failed: %w", err)
			}
		}
		s.DB = db
		s.Stores = repository.NewGormStores(db)

		// PostgreSQL log handler (ERROR+ async batch)
		s.pgLog = logging.NewPGHandler(db)
		logging.Attach(s.pgLog)
	}

	c, err := cache.New(cfg.RedisURL)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Cache = c

	genOpts := generator.Options{
		OutputDir:  cfg.GeneratedSitesDir,
		FormAction: cfg.ContactFormAction,
	}
	if cfg.TemplateDir != "" {
		genOpts.Templates = generator.TemplatesFromDir(cfg.TemplateDir)
	}
	if s.Generator, err = generator.New(genOpts); err != nil {
		s.Close()
		return nil, err
	}
	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		s.Close()
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	var publisher storage.Publisher = storage.NoopPublisher{}
	if cfg.StorageEnabled() {
		p, err := storage.NewS3Publisher(ctx, storage.S3Config{
			Endpoint:  cfg.StorageEndpoint,
			Region:    cfg.StorageRegion,
			Bucket:    cfg.StorageBucket,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			PublicURL: cfg.StoragePublicURL,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		publisher = p
	}

	if cfg.MailEnabled() {
		s.Mailer = mail.NewSMTPMailer(cfg.MailHost, cfg.MailPort, cfg.MailUsername, cfg.MailPassword, cfg.MailFrom)
	} else {
		s.Mailer = mail.LogMailer{}
		slog.Warn("MAIL_SERVER not set, links are logged instead of emailed")
	}

	s.Subscriptions = services.NewSubscriptionService(s.Stores.Subscriptions, s.Stores.Users, s.Metrics)
	s.Auth = services.NewAuthService(s.Stores.Users, s.Subscriptions, s.Mailer, cfg)
	s.Sites = services.NewSiteService(s.Stores, s.Generator, s.Subscriptions, s.Cache, s.Metrics, publisher, cfg.UploadsDir)
	s.Leads = services.NewLeadService(s.Stores, s.Auth, s.Mailer, s.Cache, s.Metrics, cfg.BaseURL)
	s.Analytics = services.NewAnalyticsService(s.Cache)
	return s, nil
}

// App builds the Fiber application with every route mounted.
func (s *Server) App() (*fiber.App, error) {
	cfg := s.Config
	pages, err := web.New()
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.MaxUploadSize,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(s.Metrics.Middleware())
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	secureCookies := cfg.IsProduction() || strings.HasPrefix(cfg.BaseURL, "https://")
	routes.Setup(app, cfg, s.Stores.Users, s.Auth, s.Metrics, routes.Handlers{
		Site:         handlers.NewSiteHandler(s.Sites, s.Generator.Catalog().Names(), pages),
		Auth:         handlers.NewAuthHandler(s.Auth, s.Sites, s.Subscriptions, s.Leads, pages, secureCookies),
		Lead:         handlers.NewLeadHandler(s.Leads, cfg.MailEnabled()),
		Admin:        handlers.NewAdminHandler(s.Leads, pages),
		Analytics:    handlers.NewAnalyticsHandler(s.Analytics),
		Subscription: handlers.NewSubscriptionHandler(s.Subscriptions),
		Webhook:      handlers.NewWebhookHandler(s.Subscriptions, cfg.BillingWebhookSecret),
		Health:       handlers.NewHealthHandler(s.DB, s.Cache, cfg.GeneratedSitesDir),
		Legal:        handlers.NewLegalHandler(pages, cfg.MailFrom),
	})
	return app, nil
}

// Run serves HTTP and the background jobs until SIGINT or SIGTERM.
func (s *Server) Run() error {
	cfg := s.Config

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app, err := s.App()
	if err != nil {
		return err
	}

	scheduler, err := jobs.NewScheduler(s.Subscriptions, s.DB)
	if err != nil {
		return err
	}
	scheduler.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "storage", cfg.StorageDriver)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err = <-errCh:
		slog.Error("server failed to start", "error", err)
	case <-quit:
		slog.Info("shutting down server...")
		if shutdownErr := app.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
			slog.Error("server shutdown error", "error", shutdownErr)
		}
	}

	scheduler.Stop()
	s.Close()
	slog.Info("server stopped")
	return err
}

// Close releases the log sink, Redis and the database pool.
func (s *Server) Close() {
	if s.pgLog != nil {
		s.pgLog.Stop()
	}
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	// Close database connections
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Error("database close error", "error", err)
			}
		}
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		if code != fiber.StatusServiceUnavailable {
			message = "Internal server error"
		}
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
	})
}
