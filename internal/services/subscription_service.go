package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/repository"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// PlanFeatures are the entitlements of a plan. A limit of -1 is unlimited.
type PlanFeatures struct {
	SitesLimit   int  `json:"sites_limit"`
	LeadsLimit   int  `json:"leads_limit"`
	CustomDomain bool `json:"custom_domain"`
	Analytics    bool `json:"analytics"`
	CMS          bool `json:"cms"`
}

var planFeatures = map[string]PlanFeatures{
	models.PlanFree:       {SitesLimit: 1, LeadsLimit: 100},
	models.PlanStarter:    {SitesLimit: 3, LeadsLimit: 1000, CustomDomain: true, Analytics: true},
	models.PlanPro:        {SitesLimit: 10, LeadsLimit: 10000, CustomDomain: true, Analytics: true, CMS: true},
	models.PlanEnterprise: {SitesLimit: -1, LeadsLimit: -1, CustomDomain: true, Analytics: true, CMS: true},
}

// FeaturesFor returns the features of plan, falling back to free.
func FeaturesFor(plan string) PlanFeatures {
	if f, ok := planFeatures[plan]; ok {
		return f
	}
	return planFeatures[models.PlanFree]
}

// AllowsSites reports whether an owner with n live sites may create another.
func (f PlanFeatures) AllowsSites(n int64) bool {
	return f.SitesLimit < 0 || n < int64(f.SitesLimit)
}

type SubscriptionService struct {
	subs    repository.SubscriptionStore
	users   repository.UserStore
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewSubscriptionService(subs repository.SubscriptionStore, users repository.UserStore, m *metrics.Metrics) *SubscriptionService {
	return &SubscriptionService{subs: subs, users: users, metrics: m, now: time.Now}
}

// Signup starts a plan for the user. An active free plan is replaced by a
// paid one; any other active subscription is ErrSubscriptionExists.
func (s *SubscriptionService) Signup(ctx context.Context, userID uuid.UUID, plan string) (*models.Subscription, error) {
	if _, ok := planFeatures[plan]; !ok {
		return nil, ErrUnknownPlan
	}
	now := s.now()

	current, err := s.subs.GetActiveByUser(ctx, userID)
	switch {
	case err == nil && current.IsActive(now):
		if current.Plan != models.PlanFree || plan == models.PlanFree {
			return nil, ErrSubscriptionExists
		}
		current.Status = models.SubscriptionCancelled
		if err := s.subs.Update(ctx, current); err != nil {
			return nil, err
		}
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	sub, err := newSubscription(userID, plan, now, nil)
	if err != nil {
		return nil, err
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}
	slog.Info("subscription started", "user_id", userID.String(), "plan", plan)
	return sub, nil
}

// EnsureFree gives the user a free plan unless something is already active.
func (s *SubscriptionService) EnsureFree(ctx context.Context, userID uuid.UUID) error {
	_, err := s.Signup(ctx, userID, models.PlanFree)
	if errors.Is(err, ErrSubscriptionExists) {
		return nil
	}
	return err
}

func (s *SubscriptionService) Current(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.subs.GetActiveByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}
	if !sub.IsActive(s.now()) {
		return nil, ErrNoSubscription
	}
	return sub, nil
}

// Renew extends the active subscription until the given time.
func (s *SubscriptionService) Renew(ctx context.Context, userID uuid.UUID, until time.Time) (*models.Subscription, error) {
	if !until.After(s.now()) {
		return nil, newFieldError("until", "must be in the future")
	}
	sub, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub.ExpiresAt = &until
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionService) Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionCancelled
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}
	slog.Info("subscription cancelled", "user_id", userID.String(), "plan", sub.Plan)
	return sub, nil
}

func (s *SubscriptionService) ExpireDue(ctx context.Context) (int64, error) {
	return s.subs.ExpireDue(ctx, s.now())
}

// Entitlements reads the features stored on the subscription. Missing keys
// fall back to the plan table.
func (s *SubscriptionService) Entitlements(sub *models.Subscription) PlanFeatures {
	if sub == nil {
		return FeaturesFor(models.PlanFree)
	}
	f := FeaturesFor(sub.Plan)
	raw := []byte(sub.Features)
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return f
	}
	doc := gjson.ParseBytes(raw)
	if v := doc.Get("sites_limit"); v.Exists() {
		f.SitesLimit = int(v.Int())
	}
	if v := doc.Get("leads_limit"); v.Exists() {
		f.LeadsLimit = int(v.Int())
	}
	if v := doc.Get("custom_domain"); v.Exists() {
		f.CustomDomain = v.Bool()
	}
	if v := doc.Get("analytics"); v.Exists() {
		f.Analytics = v.Bool()
	}
	if v := doc.Get("cms"); v.Exists() {
		f.CMS = v.Bool()
	}
	return f
}

// EntitlementsFor resolves the features of whatever the user currently has.
func (s *SubscriptionService) EntitlementsFor(ctx context.Context, userID uuid.UUID) (PlanFeatures, error) {
	sub, err := s.Current(ctx, userID)
	if errors.Is(err, ErrNoSubscription) {
		return FeaturesFor(models.PlanFree), nil
	}
	if err != nil {
		return PlanFeatures{}, err
	}
	return s.Entitlements(sub), nil
}

func (s *SubscriptionService) HandleWebhookEvent(ctx context.Context, event *dto.BillingEvent) error {
	var err error
	switch event.Type {
	case "INITIAL_PURCHASE":
		err = s.handleInitialPurchase(ctx, event)
	case "RENEWAL":
		err = s.handleRenewal(ctx, event)
	case "CANCELLATION":
		err = s.setStatusByExternalID(ctx, event, models.SubscriptionCancelled)
	case "EXPIRATION":
		err = s.setStatusByExternalID(ctx, event, models.SubscriptionExpired)
	default:
		return nil
	}
	if err == nil && s.metrics != nil {
		s.metrics.RecordSubscriptionEvent(strings.ToLower(event.Type))
	}
	return err
}

func (s *SubscriptionService) handleInitialPurchase(ctx context.Context, event *dto.BillingEvent) error {
	plan, err := planFromProduct(event.ProductID)
	if err != nil {
		return err
	}
	user, err := s.resolveUser(ctx, event)
	if err != nil {
		return fmt.Errorf("user not found for purchase: %w", err)
	}

	if current, err := s.subs.GetActiveByUser(ctx, user.ID); err == nil {
		current.Status = models.SubscriptionCancelled
		if err := s.subs.Update(ctx, current); err != nil {
			return err
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	started := s.now()
	if event.PurchasedAtMs > 0 {
		started = msToTime(event.PurchasedAtMs)
	}
	var expires *time.Time
	if event.ExpirationAtMs > 0 {
		t := msToTime(event.ExpirationAtMs)
		expires = &t
	}
	sub, err := newSubscription(user.ID, plan, started, expires)
	if err != nil {
		return err
	}
	sub.ExternalID = event.AppUserID
	return s.subs.Create(ctx, sub)
}

func (s *SubscriptionService) handleRenewal(ctx context.Context, event *dto.BillingEvent) error {
	sub, err := s.subs.GetByExternalID(ctx, event.AppUserID)
	if err != nil {
		return fmt.Errorf("subscription not found for renewal: %w", err)
	}
	sub.Status = models.SubscriptionActive
	if event.ExpirationAtMs > 0 {
		t := msToTime(event.ExpirationAtMs)
		sub.ExpiresAt = &t
	}
	return s.subs.Update(ctx, sub)
}

func (s *SubscriptionService) setStatusByExternalID(ctx context.Context, event *dto.BillingEvent, status string) error {
	sub, err := s.subs.GetByExternalID(ctx, event.AppUserID)
	if err != nil {
		return fmt.Errorf("subscription not found for %s: %w", strings.ToLower(event.Type), err)
	}
	sub.Status = status
	return s.subs.Update(ctx, sub)
}

func (s *SubscriptionService) resolveUser(ctx context.Context, event *dto.BillingEvent) (*models.User, error) {
	if id, err := uuid.Parse(event.AppUserID); err == nil {
		user, err := s.users.GetByID(ctx, id)
		if err == nil || !errors.Is(err, repository.ErrNotFound) {
			return user, err
		}
	}
	if event.Email != "" {
		return s.users.GetByEmail(ctx, event.Email)
	}
	return nil, repository.ErrNotFound
}

func newSubscription(userID uuid.UUID, plan string, started time.Time, expires *time.Time) (*models.Subscription, error) {
	features, err := json.Marshal(FeaturesFor(plan))
	if err != nil {
		return nil, err
	}
	return &models.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		Plan:      plan,
		Status:    models.SubscriptionActive,
		StartedAt: started,
		ExpiresAt: expires,
		Features:  features,
	}, nil
}

// planFromProduct maps store product ids such as "sitegen_pro_monthly".
func planFromProduct(productID string) (string, error) {
	p := strings.ToLower(productID)
	for _, plan := range []string{models.PlanEnterprise, models.PlanPro, models.PlanStarter} {
		if strings.Contains(p, plan) {
			return plan, nil
		}
	}
	return "", fmt.Errorf("%w: product %q", ErrUnknownPlan, productID)
}

func msToTime(ms int64) time.Time {
	return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond))
}
