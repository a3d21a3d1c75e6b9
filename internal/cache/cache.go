// Package cache wraps Redis for lead deduplication and generation counters.
// A Cache built without a URL is disabled: every call is a cheap no-op so the
// service runs without Redis in development.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	leadSeenTTL      = time.Hour
	counterRetention = 30 * 24 * time.Hour
	industriesKey    = "analytics:industries"
)

type Cache struct {
	client *redis.Client
	now    func() time.Time
}

// New connects to the Redis instance at url. An empty url returns a
// disabled cache.
func New(url string) (*Cache, error) {
	if url == "" {
		return &Cache{now: time.Now}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &Cache{client: redis.NewClient(opts), now: time.Now}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client, now: time.Now}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

func leadKey(siteID, email string) string {
	return "lead_check:" + siteID + ":" + strings.ToLower(strings.TrimSpace(email))
}

// MarkLeadSeen records (site, email) for an hour. It returns true when the
// pair was already recorded.
func (c *Cache) MarkLeadSeen(ctx context.Context, siteID, email string) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	set, err := c.client.SetNX(ctx, leadKey(siteID, email), "1", leadSeenTTL).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// ForgetLead drops the dedup key, used when the write it guarded failed.
func (c *Cache) ForgetLead(ctx context.Context, siteID, email string) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Del(ctx, leadKey(siteID, email)).Err()
}

func generationKey(industry string, day time.Time) string {
	return "analytics:generation:" + industry + ":" + day.UTC().Format("20060102")
}

// TrackGeneration increments today's counter for industry.
func (c *Cache) TrackGeneration(ctx context.Context, industry string) error {
	if !c.Enabled() {
		return nil
	}
	industry = normalizeIndustry(industry)
	key := generationKey(industry, c.now())

	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterRetention)
	pipe.SAdd(ctx, industriesKey, industry)
	_, err := pipe.Exec(ctx)
	return err
}

// GenerationCounts returns per-day counts for industry over the last days,
// oldest first, keyed by YYYYMMDD.
func (c *Cache) GenerationCounts(ctx context.Context, industry string, days int) ([]DayCount, error) {
	if !c.Enabled() || days <= 0 {
		return nil, nil
	}
	industry = normalizeIndustry(industry)
	today := c.now().UTC()

	keys := make([]string, days)
	out := make([]DayCount, days)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -(days - 1 - i))
		keys[i] = generationKey(industry, day)
		out[i].Day = day.Format("20060102")
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i].Count, _ = strconv.ParseInt(s, 10, 64)
		}
	}
	return out, nil
}

// Industries lists every industry that has recorded a generation.
func (c *Cache) Industries(ctx context.Context) ([]string, error) {
	if !c.Enabled() {
		return nil, nil
	}
	return c.client.SMembers(ctx, industriesKey).Result()
}

type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

func normalizeIndustry(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return strings.ReplaceAll(s, " ", "_")
}
