package services

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/cache"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
)

const statsWindowDays = 7

type AnalyticsService struct {
	cache *cache.Cache
}

func NewAnalyticsService(c *cache.Cache) *AnalyticsService {
	return &AnalyticsService{cache: c}
}

// Stats aggregates the per-industry daily generation counters. Without
// Redis every count is zero.
func (s *AnalyticsService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	stats := &dto.StatsResponse{ByIndustry: map[string]int64{}, Enabled: s.cache.Enabled()}
	if !stats.Enabled {
		return stats, nil
	}

	industries, err := s.cache.Industries(ctx)
	if err != nil {
		return nil, err
	}
	for _, industry := range industries {
		days, err := s.cache.GenerationCounts(ctx, industry, statsWindowDays)
		if err != nil {
			return nil, err
		}
		var week int64
		for _, d := range days {
			week += d.Count
		}
		if len(days) > 0 {
			today := days[len(days)-1].Count
			stats.Today += today
			stats.ByIndustry[industry] = today
		}
		stats.ThisWeek += week
	}
	stats.TotalGenerations = stats.ThisWeek
	return stats, nil
}
