package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/config"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdminToken    = "admin-token"
	testWebhookSecret = "whsec-test"
)

func newTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		AppEnv:               "test",
		BaseURL:              "http://sitegen.test",
		StorageDriver:        "memory",
		SecretKey:            "test-secret",
		SessionTTL:           time.Hour,
		MagicLinkTTL:         time.Hour,
		DownloadTokenTTL:     time.Hour,
		GeneratedSitesDir:    dir + "/sites",
		UploadsDir:           dir + "/uploads",
		MaxUploadSize:        16 * 1024 * 1024,
		MailFrom:             "privacy@sitegen.test",
		AdminToken:           testAdminToken,
		BillingWebhookSecret: testWebhookSecret,
		CORSOrigins:          "*",
	}

	srv, err := New(context.Background(), cfg, false)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	app, err := srv.App()
	require.NoError(t, err)
	return srv, app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(body)
}

func capture(t *testing.T, app *fiber.App) string {
	t.Helper()
	form := url.Values{
		"business_name": {"Acme Plumbing"},
		"industry":      {"plumbing"},
		"email":         {"owner@acme.test"},
		"phone":         {"555-0100"},
		"services":      {"Leak repair\nDrain cleaning"},
	}
	req := httptest.NewRequest(http.MethodPost, "/capture", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)

	resp, _ := do(t, app, req)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/preview/"), location)
	return strings.TrimPrefix(location, "/preview/")
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return req
}

func TestCaptureThenPreview(t *testing.T) {
	_, app := newTestServer(t)
	siteID := capture(t, app)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/preview/"+siteID, nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Acme Plumbing")
	assert.Contains(t, body, "/generated_sites/"+siteID+"/index.html")

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/generated_sites/"+siteID+"/index.html", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<title>Acme Plumbing")
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/generated_sites/"+siteID+"/styles.css", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCaptureMissingFieldsRendersForm(t *testing.T) {
	_, app := newTestServer(t)

	form := url.Values{"business_name": {"Acme Plumbing"}}
	req := httptest.NewRequest(http.MethodPost, "/capture", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)

	resp, body := do(t, app, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Acme Plumbing")
}

func TestPreviewUnknownSiteIsNotFound(t *testing.T) {
	_, app := newTestServer(t)
	missing := uuid.NewString()

	for _, target := range []string{
		"/preview/" + missing,
		"/preview/not-a-uuid",
		"/generated_sites/" + missing + "/index.html",
		"/generated_sites/not-a-uuid/index.html",
		"/uploads/" + missing + "/logo.png",
	} {
		resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, target)
	}
}

func TestEmailDownloadIsIdempotent(t *testing.T) {
	srv, app := newTestServer(t)
	siteID := capture(t, app)

	payload := dto.LeadCaptureRequest{SiteID: siteID, Email: "Visitor@Example.com", ConsentDownload: true}

	var first, second dto.LeadCaptureResponse
	resp, body := do(t, app, jsonRequest(http.MethodPost, "/auth/email-download", payload))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	require.NoError(t, json.Unmarshal([]byte(body), &first))

	resp, body = do(t, app, jsonRequest(http.MethodPost, "/auth/email-download", payload))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	require.NoError(t, json.Unmarshal([]byte(body), &second))

	assert.True(t, first.Success)
	assert.True(t, first.Created)
	assert.False(t, second.Created)
	require.NotEmpty(t, first.DownloadURL)

	leads, err := srv.Leads.ListForSite(context.Background(), uuid.MustParse(siteID))
	require.NoError(t, err)
	assert.Len(t, leads, 1)

	target := strings.TrimPrefix(first.DownloadURL, srv.Config.BaseURL)
	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "acme-plumbing-website.zip")
	assert.True(t, strings.HasPrefix(body, "PK"))
}

func TestEmailDownloadRequiresConsent(t *testing.T) {
	_, app := newTestServer(t)
	siteID := capture(t, app)

	form := url.Values{"site_id": {siteID}, "email": {"visitor@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/email-download", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	resp, _ := do(t, app, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	form.Set("consent_download", "on")
	req = httptest.NewRequest(http.MethodPost, "/auth/email-download", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	resp, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDownloadRejectsBadToken(t *testing.T) {
	_, app := newTestServer(t)
	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/auth/download/token/garbage", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSiteAPIRequiresOwnerSession(t *testing.T) {
	srv, app := newTestServer(t)
	siteID := capture(t, app)

	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/sites/"+siteID, nil))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	owner, err := srv.Stores.Users.GetByEmail(context.Background(), "owner@acme.test")
	require.NoError(t, err)
	token, err := srv.Auth.IssueSession(owner)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/sites/"+siteID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, body := do(t, app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	var site dto.SiteResponse
	require.NoError(t, json.Unmarshal([]byte(body), &site))
	assert.Equal(t, "active", site.Status)

	req = httptest.NewRequest(http.MethodPost, "/api/sites/"+siteID+"/archive", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, body = do(t, app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/preview/"+siteID, nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// Archiving twice is not a valid transition.
	req = httptest.NewRequest(http.MethodPost, "/api/sites/"+siteID+"/archive", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/api/sites/"+siteID+"/restore", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	resp, body = do(t, app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/preview/"+siteID, nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestSubscriptionEndpoints(t *testing.T) {
	srv, app := newTestServer(t)
	capture(t, app)

	owner, err := srv.Stores.Users.GetByEmail(context.Background(), "owner@acme.test")
	require.NoError(t, err)
	token, err := srv.Auth.IssueSession(owner)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, body := do(t, app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"plan":"free"`)

	req = jsonRequest(http.MethodPost, "/api/subscription", dto.SubscriptionRequest{Plan: "pro"})
	req.Header.Set("Authorization", "Bearer "+token)
	resp, body = do(t, app, req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.Contains(t, body, `"plan":"pro"`)

	req = jsonRequest(http.MethodPost, "/api/subscription", dto.SubscriptionRequest{Plan: "gold"})
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/api/subscription/cancel", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, body = do(t, app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"status":"cancelled"`)
}

func TestAdminLeadsRequireCredentials(t *testing.T) {
	_, app := newTestServer(t)
	siteID := capture(t, app)
	payload := dto.LeadCaptureRequest{SiteID: siteID, Email: "visitor@example.com", ConsentDownload: true}
	resp, _ := do(t, app, jsonRequest(http.MethodPost, "/auth/email-download", payload))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/admin/leads/export", nil))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/admin/leads/export", nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	resp, body := do(t, app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "sitegen_leads.csv")
	assert.True(t, strings.HasPrefix(body, "email,business_name,industry"))
	assert.Contains(t, body, "visitor@example.com")

	req = httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	resp, body = do(t, app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list dto.LeadListResponse
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	assert.EqualValues(t, 1, list.Total)
}

func TestBillingWebhookRequiresSecret(t *testing.T) {
	_, app := newTestServer(t)
	event := dto.BillingWebhook{Event: dto.BillingEvent{Type: "TEST", ID: "evt_1"}}

	resp, _ := do(t, app, jsonRequest(http.MethodPost, "/api/webhooks/billing", event))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := jsonRequest(http.MethodPost, "/api/webhooks/billing", event)
	req.Header.Set("Authorization", testWebhookSecret)
	resp, body := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"received":true}`, body)
}

func TestHealthMetricsAndPrivacy(t *testing.T) {
	_, app := newTestServer(t)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var health dto.HealthResponse
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "memory", health.Checks["db"])
	assert.Equal(t, "disabled", health.Checks["redis"])

	capture(t, app)
	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "sitegen_generations_total")

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/privacy", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "privacy@sitegen.test")

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/analytics/api/stats", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"enabled":false`)
}

func TestDashboardRedirectsWithoutSession(t *testing.T) {
	_, app := newTestServer(t)
	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/auth/dashboard", nil))
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth/login", resp.Header.Get("Location"))
}
