package middleware

import (
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/config"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionCookie = "session"
	sessionKey    = "session"
)

// JWTProtected requires a valid session token in the session cookie or the
// Authorization header and answers 401 JSON otherwise.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return sessionMiddleware(cfg, func(c *fiber.Ctx, _ error) error {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Unauthorized: invalid or expired session",
		})
	})
}

// LoginRequired is JWTProtected for HTML pages: it redirects to the login form.
func LoginRequired(cfg *config.Config) fiber.Handler {
	return sessionMiddleware(cfg, func(c *fiber.Ctx, _ error) error {
		return c.Redirect("/auth/login", fiber.StatusSeeOther)
	})
}

func sessionMiddleware(cfg *config.Config, onError fiber.ErrorHandler) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{JWTAlg: jwt.SigningMethodHS256.Alg(), Key: []byte(cfg.SecretKey)},
		TokenLookup:  "cookie:" + SessionCookie + ",header:Authorization",
		AuthScheme:   "Bearer",
		ErrorHandler: onError,
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals("user").(*jwt.Token)
			if !ok {
				return onError(c, services.ErrInvalidToken)
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return onError(c, services.ErrInvalidToken)
			}
			session, err := services.SessionFromClaims(claims)
			if err != nil {
				return onError(c, err)
			}
			c.Locals(sessionKey, session)
			return c.Next()
		},
	})
}

// OptionalSession attaches the session when the cookie holds a valid one and
// lets every request through.
func OptionalSession(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := c.Cookies(SessionCookie); raw != "" {
			if session, err := auth.ParseSession(raw); err == nil {
				c.Locals(sessionKey, session)
			}
		}
		return c.Next()
	}
}

// CurrentSession returns the session attached by one of the middlewares.
func CurrentSession(c *fiber.Ctx) (*services.Session, bool) {
	s, ok := c.Locals(sessionKey).(*services.Session)
	return s, ok && s != nil
}
