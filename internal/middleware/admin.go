package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/config"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/repository"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// AdminRequired grants access when any of these hold:
// 1. The X-Admin-Token header matches ADMIN_TOKEN
// 2. Basic auth matches ADMIN_USERNAME / ADMIN_PASSWORD_HASH (bcrypt)
// 3. The session (see OptionalSession) belongs to an ADMIN_EMAILS address
// 4. The session user has the admin role in the database
func AdminRequired(users repository.UserStore, cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)

	return func(c *fiber.Ctx) error {
		if cfg.AdminToken != "" {
			if subtle.ConstantTimeCompare([]byte(c.Get("X-Admin-Token")), []byte(cfg.AdminToken)) == 1 {
				return c.Next()
			}
		}

		if user, pass, ok := basicAuth(c.Get(fiber.HeaderAuthorization)); ok && cfg.AdminPasswordHash != "" {
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.AdminUsername)) == 1
			if bcrypt.CompareHashAndPassword([]byte(cfg.AdminPasswordHash), []byte(pass)) == nil && userOK {
				return c.Next()
			}
		}

		session, ok := CurrentSession(c)
		if !ok {
			if cfg.AdminPasswordHash != "" {
				c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="SiteGen admin"`)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		if containsFold(adminEmails, session.Email) {
			return c.Next()
		}

		if user, err := users.GetByID(c.UserContext(), session.UserID); err == nil && user.IsAdmin() {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

func basicAuth(header string) (string, string, bool) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	return user, pass, ok
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func containsFold(list []string, val string) bool {
	for _, item := range list {
		if strings.EqualFold(item, val) {
			return true
		}
	}
	return false
}
