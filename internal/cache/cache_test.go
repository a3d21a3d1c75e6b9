package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, c.Enabled())
	assert.NoError(t, c.Ping(ctx))

	seen, err := c.MarkLeadSeen(ctx, "site", "a@b.c")
	require.NoError(t, err)
	assert.False(t, seen)

	assert.NoError(t, c.TrackGeneration(ctx, "plumbing"))
	counts, err := c.GenerationCounts(ctx, "plumbing", 7)
	require.NoError(t, err)
	assert.Empty(t, counts)
	assert.NoError(t, c.Close())
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *Cache
	assert.False(t, c.Enabled())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("not a url://")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "lead_check:s1:a@b.com", leadKey("s1", " A@B.com"))
	day := time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "analytics:generation:plumbing:20260102", generationKey("plumbing", day))
	assert.Equal(t, "professional_services", normalizeIndustry("Professional Services"))
	assert.Equal(t, "unknown", normalizeIndustry(" "))
}

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNewParsesRedisURL(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, c.Enabled())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestMarkLeadSeen(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	seen, err := c.MarkLeadSeen(ctx, "site-1", "Visitor@Mail.com")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, leadSeenTTL, mr.TTL("lead_check:site-1:visitor@mail.com"))

	seen, err = c.MarkLeadSeen(ctx, "site-1", " visitor@mail.com")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = c.MarkLeadSeen(ctx, "site-2", "visitor@mail.com")
	require.NoError(t, err)
	assert.False(t, seen, "keys are per site")

	mr.FastForward(leadSeenTTL + time.Second)
	seen, err = c.MarkLeadSeen(ctx, "site-1", "visitor@mail.com")
	require.NoError(t, err)
	assert.False(t, seen, "key expires after an hour")
}

func TestForgetLead(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	_, err := c.MarkLeadSeen(ctx, "site-1", "a@b.co")
	require.NoError(t, err)
	require.NoError(t, c.ForgetLead(ctx, "site-1", "A@B.co"))
	assert.False(t, mr.Exists("lead_check:site-1:a@b.co"))

	seen, err := c.MarkLeadSeen(ctx, "site-1", "a@b.co")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMarkLeadSeenSurfacesRedisErrors(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.SetError("LOADING")

	seen, err := c.MarkLeadSeen(context.Background(), "site-1", "a@b.co")
	assert.Error(t, err)
	assert.False(t, seen)
}

func TestGenerationCounters(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	c.now = func() time.Time { return day.AddDate(0, 0, -1) }
	require.NoError(t, c.TrackGeneration(ctx, "Plumbing"))
	c.now = func() time.Time { return day }
	require.NoError(t, c.TrackGeneration(ctx, "plumbing"))
	require.NoError(t, c.TrackGeneration(ctx, " plumbing "))
	require.NoError(t, c.TrackGeneration(ctx, "Professional Services"))

	assert.Equal(t, counterRetention, mr.TTL("analytics:generation:plumbing:20260310"))

	counts, err := c.GenerationCounts(ctx, "plumbing", 3)
	require.NoError(t, err)
	assert.Equal(t, []DayCount{
		{Day: "20260308", Count: 0},
		{Day: "20260309", Count: 1},
		{Day: "20260310", Count: 2},
	}, counts)

	industries, err := c.Industries(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"plumbing", "professional_services"}, industries)

	counts, err = c.GenerationCounts(ctx, "plumbing", 0)
	require.NoError(t, err)
	assert.Nil(t, counts)
}
