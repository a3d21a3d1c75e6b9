package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/cache"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureSite(t *testing.T, env *testEnv) *models.Site {
	t.Helper()
	site, err := env.sites.CreateAndGenerate(context.Background(), acmeRequest(), nil, nil)
	require.NoError(t, err)
	return site
}

func TestLeadCaptureIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := captureSite(t, env)

	req := &dto.LeadCaptureRequest{SiteID: site.ID.String(), Email: "visitor@example.com", ConsentDownload: true}
	first, result, err := env.leads.Capture(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, LeadCreated, result)
	assert.Equal(t, "Acme Plumbing", first.BusinessName)
	assert.Equal(t, models.LeadFreeDownload, first.Status)

	req.Email = "Visitor@Example.com"
	req.ConsentMarketing = true
	second, result, err := env.leads.Capture(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, LeadUpdated, result)
	assert.Equal(t, first.ID, second.ID)

	leads, err := env.leads.ListForSite(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.True(t, leads[0].ConsentMarketing)
}

func TestLeadCaptureDeduplicatesThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	env := newTestEnvWithCache(t, cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})))
	ctx := context.Background()
	site := captureSite(t, env)

	req := &dto.LeadCaptureRequest{SiteID: site.ID.String(), Email: "visitor@example.com", ConsentDownload: true}
	first, result, err := env.leads.Capture(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, LeadCreated, result)
	assert.True(t, mr.Exists("lead_check:"+site.ID.String()+":visitor@example.com"))

	req.ConsentMarketing = true
	second, result, err := env.leads.Capture(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, LeadDuplicate, result)
	assert.Equal(t, first.ID, second.ID)

	leads, err := env.leads.ListForSite(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.False(t, leads[0].ConsentMarketing, "duplicate within the window leaves the row untouched")

	mr.FastForward(2 * time.Hour)
	_, result, err = env.leads.Capture(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, LeadUpdated, result)
}

func TestLeadCaptureFallsBackWhenRedisFails(t *testing.T) {
	mr := miniredis.RunT(t)
	env := newTestEnvWithCache(t, cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})))
	ctx := context.Background()
	site := captureSite(t, env)

	mr.SetError("LOADING")
	req := &dto.LeadCaptureRequest{SiteID: site.ID.String(), Email: "visitor@example.com", ConsentDownload: true}
	_, result, err := env.leads.Capture(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, LeadCreated, result)
}

func TestLeadCaptureRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := captureSite(t, env)

	tests := []struct {
		name string
		req  dto.LeadCaptureRequest
		want error
	}{
		{"no consent", dto.LeadCaptureRequest{SiteID: site.ID.String(), Email: "a@b.co"}, ErrConsentRequired},
		{"unknown site", dto.LeadCaptureRequest{SiteID: uuid.NewString(), Email: "a@b.co", ConsentDownload: true}, ErrSiteNotFound},
		{"bad site id", dto.LeadCaptureRequest{SiteID: "x", Email: "a@b.co", ConsentDownload: true}, ErrSiteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.leads.Capture(ctx, &tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	for _, email := range []string{"", "nope", "Name <a@b.co>"} {
		_, _, err := env.leads.Capture(ctx, &dto.LeadCaptureRequest{SiteID: site.ID.String(), Email: email, ConsentDownload: true})
		var ferr *FieldError
		assert.True(t, errors.As(err, &ferr), email)
	}
}

func TestRequestDownloadMailsSignedLink(t *testing.T) {
	env := newTestEnv(t)
	site := captureSite(t, env)

	grant, err := env.leads.RequestDownload(context.Background(), &dto.LeadCaptureRequest{
		SiteID: site.ID.String(), Email: "visitor@example.com", ConsentDownload: true,
	})
	require.NoError(t, err)
	assert.True(t, grant.Emailed)
	assert.True(t, strings.HasPrefix(grant.URL, "http://sitegen.test/auth/download/token/"))

	sent := env.mailer.last()
	assert.Equal(t, "download", sent.kind)
	assert.Equal(t, "visitor@example.com", sent.to)
	assert.Equal(t, grant.URL, sent.link)

	email, siteID, err := env.auth.ParseDownloadToken(grant.Token)
	require.NoError(t, err)
	assert.Equal(t, "visitor@example.com", email)
	assert.Equal(t, site.ID, siteID)
}

func TestRequestDownloadSurvivesMailFailure(t *testing.T) {
	env := newTestEnv(t)
	site := captureSite(t, env)
	env.mailer.err = errors.New("smtp down")

	grant, err := env.leads.RequestDownload(context.Background(), &dto.LeadCaptureRequest{
		SiteID: site.ID.String(), Email: "visitor@example.com", ConsentDownload: true,
	})
	require.NoError(t, err)
	assert.False(t, grant.Emailed)
	assert.NotEmpty(t, grant.Token)
}

func TestWriteCSV(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := captureSite(t, env)
	for _, e := range []string{"a@example.com", "b@example.com"} {
		_, _, err := env.leads.Capture(ctx, &dto.LeadCaptureRequest{SiteID: site.ID.String(), Email: e, ConsentDownload: true})
		require.NoError(t, err)
	}

	leads, total, err := env.leads.ListAll(ctx, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, leads))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, leadCSVHeader, rows[0])
	assert.Equal(t, "Acme Plumbing", rows[1][1])
	assert.Equal(t, "true", rows[1][4])

	byUser, err := env.leads.ListForUser(ctx, site.UserID)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)
}
