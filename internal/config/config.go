package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultSecretKey = "dev-key-change-in-production"

type Config struct {
	AppEnv  string
	Port    string
	BaseURL string

	// Database. DatabaseURL (Supabase connection string) wins over the
	// discrete DB_* settings when present.
	StorageDriver string
	DatabaseURL   string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string

	// Session and link tokens
	SecretKey        string
	SessionTTL       time.Duration
	MagicLinkTTL     time.Duration
	DownloadTokenTTL time.Duration

	// Cache
	RedisURL string

	// Mail
	MailHost     string
	MailPort     int
	MailUsername string
	MailPassword string
	MailFrom     string

	// Generation
	GeneratedSitesDir string
	UploadsDir        string
	TemplateDir       string
	MaxUploadSize     int
	ContactFormAction string

	// S3-compatible mirror for generated files (Supabase Storage)
	StorageEndpoint  string
	StorageRegion    string
	StorageBucket    string
	StorageAccessKey string
	StorageSecretKey string
	StoragePublicURL string

	// Admin
	AdminEmails       string
	AdminToken        string
	AdminUsername     string
	AdminPasswordHash string

	BillingWebhookSecret string

	// Server
	CORSOrigins string
	SentryDSN   string
	LogLevel    string
}

// Load reads configuration from the environment, loading a .env file first
// when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		Port:    getEnv("PORT", "5000"),
		BaseURL: getEnv("BASE_URL", "http://localhost:5000"),

		StorageDriver: getEnv("STORAGE_DRIVER", "postgres"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "sitegen"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),

		SecretKey:        getEnv("SECRET_KEY", defaultSecretKey),
		SessionTTL:       parseDuration(getEnv("SESSION_TTL", "168h"), 168*time.Hour),
		MagicLinkTTL:     parseDuration(getEnv("MAGIC_LINK_TTL", "1h"), time.Hour),
		DownloadTokenTTL: parseDuration(getEnv("DOWNLOAD_TOKEN_TTL", "1h"), time.Hour),

		RedisURL: getEnv("REDIS_URL", ""),

		MailHost:     getEnv("MAIL_SERVER", ""),
		MailPort:     parseInt(getEnv("MAIL_PORT", "587"), 587),
		MailUsername: getEnv("MAIL_USERNAME", ""),
		MailPassword: getEnv("MAIL_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_DEFAULT_SENDER", "noreply@sitegen.com"),

		GeneratedSitesDir: getEnv("GENERATED_SITES_DIR", "generated_sites"),
		UploadsDir:        getEnv("UPLOAD_FOLDER", "static/uploads"),
		TemplateDir:       getEnv("GENERATOR_TEMPLATE_DIR", ""),
		MaxUploadSize:     parseInt(getEnv("MAX_CONTENT_LENGTH", "16777216"), 16*1024*1024),
		ContactFormAction: getEnv("CONTACT_FORM_ACTION", ""),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", ""),
		StorageRegion:    getEnv("STORAGE_REGION", "us-east-1"),
		StorageBucket:    getEnv("STORAGE_BUCKET", ""),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		StoragePublicURL: getEnv("STORAGE_PUBLIC_URL", ""),

		AdminEmails:       getEnv("ADMIN_EMAILS", ""),
		AdminToken:        getEnv("ADMIN_TOKEN", ""),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		BillingWebhookSecret: getEnv("BILLING_WEBHOOK_SECRET", ""),

		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

// Validate rejects configurations that must not reach production.
func (c *Config) Validate() error {
	if c.IsProduction() && (c.SecretKey == "" || c.SecretKey == defaultSecretKey) {
		return errors.New("SECRET_KEY must be set in production")
	}
	if c.StorageDriver != "postgres" && c.StorageDriver != "memory" {
		return errors.New("STORAGE_DRIVER must be postgres or memory")
	}
	if c.StorageDriver == "postgres" && c.DatabaseURL == "" && c.DBPassword == "" {
		return errors.New("DATABASE_URL or DB_PASSWORD is required")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) MailEnabled() bool {
	return c.MailHost != ""
}

func (c *Config) StorageEnabled() bool {
	return c.StorageBucket != "" && c.StorageEndpoint != ""
}

func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
