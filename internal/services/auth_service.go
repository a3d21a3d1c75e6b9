package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/config"
	mailer "github.com/ahmetcoskunkizilkaya/sitegen/internal/mail"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token purposes. A token is only accepted for the purpose it was issued for.
const (
	PurposeLogin    = "login"
	PurposeSession  = "session"
	PurposeDownload = "download"
)

// Session is what a verified session token carries.
type Session struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

type AuthService struct {
	users  repository.UserStore
	subs   *SubscriptionService
	mailer mailer.Mailer
	cfg    *config.Config
	now    func() time.Time
}

func NewAuthService(users repository.UserStore, subs *SubscriptionService, m mailer.Mailer, cfg *config.Config) *AuthService {
	return &AuthService{users: users, subs: subs, mailer: m, cfg: cfg, now: time.Now}
}

// RequestLogin mails a magic link to the address.
func (s *AuthService) RequestLogin(ctx context.Context, email string) error {
	addr, err := parseEmail(email)
	if err != nil {
		return err
	}
	token, err := s.sign(jwt.MapClaims{
		"purpose": PurposeLogin,
		"sub":     addr,
		"email":   addr,
	}, s.cfg.MagicLinkTTL)
	if err != nil {
		return err
	}
	link := strings.TrimRight(s.cfg.BaseURL, "/") + "/auth/verify/" + token
	if err := s.mailer.SendLoginLink(ctx, addr, link, s.cfg.MagicLinkTTL); err != nil {
		return fmt.Errorf("send login link: %w", err)
	}
	slog.Info("login link sent", "email", addr)
	return nil
}

// VerifyLogin consumes a magic-link token and returns the user with a fresh
// session token.
func (s *AuthService) VerifyLogin(ctx context.Context, token string) (*models.User, string, error) {
	claims, err := s.parse(token, PurposeLogin)
	if err != nil {
		return nil, "", err
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return nil, "", ErrInvalidToken
	}

	user, created, err := s.users.FindOrCreateByEmail(ctx, email, "")
	if err != nil {
		return nil, "", fmt.Errorf("resolve user: %w", err)
	}
	if created {
		if err := s.subs.EnsureFree(ctx, user.ID); err != nil {
			return nil, "", fmt.Errorf("start free plan: %w", err)
		}
	}
	now := s.now()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		return nil, "", err
	}
	user.LastLoginAt = &now

	if !user.IsAdmin() && isAdminEmail(s.cfg.AdminEmails, user.Email) {
		if err := s.users.SetRole(ctx, user.ID, models.RoleAdmin); err != nil {
			return nil, "", err
		}
		user.Role = models.RoleAdmin
	}

	session, err := s.IssueSession(user)
	if err != nil {
		return nil, "", err
	}
	return user, session, nil
}

func (s *AuthService) IssueSession(user *models.User) (string, error) {
	return s.sign(jwt.MapClaims{
		"purpose": PurposeSession,
		"sub":     user.ID.String(),
		"email":   user.Email,
		"role":    user.Role,
	}, s.cfg.SessionTTL)
}

func (s *AuthService) ParseSession(token string) (*Session, error) {
	claims, err := s.parse(token, PurposeSession)
	if err != nil {
		return nil, err
	}
	return SessionFromClaims(claims)
}

// SessionFromClaims validates decoded session claims, such as the ones the
// JWT middleware stores on the request.
func SessionFromClaims(claims jwt.MapClaims) (*Session, error) {
	if purpose, _ := claims["purpose"].(string); purpose != PurposeSession {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return &Session{UserID: id, Email: email, Role: role}, nil
}

func (s *AuthService) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}

// IssueDownloadToken signs a link that lets email download siteID.
func (s *AuthService) IssueDownloadToken(email string, siteID uuid.UUID) (string, error) {
	return s.sign(jwt.MapClaims{
		"purpose": PurposeDownload,
		"sub":     email,
		"email":   email,
		"site_id": siteID.String(),
	}, s.cfg.DownloadTokenTTL)
}

func (s *AuthService) ParseDownloadToken(token string) (string, uuid.UUID, error) {
	claims, err := s.parse(token, PurposeDownload)
	if err != nil {
		return "", uuid.Nil, err
	}
	email, _ := claims["email"].(string)
	raw, _ := claims["site_id"].(string)
	siteID, err := uuid.Parse(raw)
	if err != nil || email == "" {
		return "", uuid.Nil, ErrInvalidToken
	}
	return email, siteID, nil
}

func (s *AuthService) DownloadTokenTTL() time.Duration {
	return s.cfg.DownloadTokenTTL
}

func (s *AuthService) sign(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := s.now()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) parse(raw, purpose string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			slog.Debug("expired token", "purpose", purpose)
		}
		return nil, ErrInvalidToken
	}
	if got, _ := claims["purpose"].(string); got != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// parseEmail accepts a bare address and returns it lowercased.
func parseEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", newFieldError("email", "a valid email address is required")
	}
	return strings.ToLower(addr.Address), nil
}

func isAdminEmail(list, email string) bool {
	for _, e := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(e), email) && email != "" {
			return true
		}
	}
	return false
}
