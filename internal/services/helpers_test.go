package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/cache"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/config"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/generator"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/repository"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	kind string
	to   string
	link string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) SendLoginLink(_ context.Context, to, link string, _ time.Duration) error {
	return m.record("login", to, link)
}

func (m *recordingMailer) SendDownloadLink(_ context.Context, to, _, link string, _ time.Duration) error {
	return m.record("download", to, link)
}

func (m *recordingMailer) record(kind, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: kind, to: to, link: link})
	return nil
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	cfg       *config.Config
	stores    *repository.Stores
	gen       *generator.Generator
	metrics   *metrics.Metrics
	mailer    *recordingMailer
	subs      *SubscriptionService
	auth      *AuthService
	sites     *SiteService
	leads     *LeadService
	analytics *AnalyticsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	c, err := cache.New("")
	require.NoError(t, err)
	return newTestEnvWithCache(t, c)
}

func newTestEnvWithCache(t *testing.T, c *cache.Cache) *testEnv {
	t.Helper()

	cfg := &config.Config{
		BaseURL:          "http://sitegen.test",
		SecretKey:        "test-secret",
		SessionTTL:       time.Hour,
		MagicLinkTTL:     time.Hour,
		DownloadTokenTTL: time.Hour,
		AdminEmails:      "boss@sitegen.test",
	}
	gen, err := generator.New(generator.Options{OutputDir: t.TempDir()})
	require.NoError(t, err)

	env := &testEnv{
		cfg:     cfg,
		stores:  repository.NewMemoryStores(),
		gen:     gen,
		metrics: metrics.New(),
		mailer:  &recordingMailer{},
	}
	env.subs = NewSubscriptionService(env.stores.Subscriptions, env.stores.Users, env.metrics)
	env.auth = NewAuthService(env.stores.Users, env.subs, env.mailer, cfg)
	env.sites = NewSiteService(env.stores, gen, env.subs, c, env.metrics, nil, t.TempDir())
	env.leads = NewLeadService(env.stores, env.auth, env.mailer, c, env.metrics, cfg.BaseURL)
	env.analytics = NewAnalyticsService(c)
	return env
}

func acmeRequest() *dto.CaptureRequest {
	return &dto.CaptureRequest{
		BusinessName: "Acme Plumbing",
		Industry:     "plumbing",
		Email:        "owner@acme.test",
		Phone:        "555-0100",
		OwnerName:    "Alex Doe",
		Services:     "Leak repair\nWater heaters",
		PrimaryColor: "#FF5733",
	}
}
