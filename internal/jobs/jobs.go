// Package jobs runs the periodic maintenance work: expiring lapsed
// subscriptions and pruning old system logs.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	LogRetention = 30 * 24 * time.Hour
	jobTimeout   = time.Minute

	expirySchedule  = "@hourly"
	cleanupSchedule = "0 3 * * *"
)

// SubscriptionExpirer is satisfied by services.SubscriptionService.
type SubscriptionExpirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron *cron.Cron
	subs SubscriptionExpirer
	db   *gorm.DB
}

// NewScheduler registers the jobs. db may be nil on the in-memory stores, in
// which case log retention is skipped.
func NewScheduler(subs SubscriptionExpirer, db *gorm.DB) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), subs: subs, db: db}

	if _, err := s.cron.AddFunc(expirySchedule, s.expireSubscriptions); err != nil {
		return nil, err
	}
	if db != nil {
		if _, err := s.cron.AddFunc(cleanupSchedule, s.pruneLogs); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) expireSubscriptions() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.subs.ExpireDue(ctx)
	if err != nil {
		slog.Error("subscription expiry failed", "error", err.Error())
		return
	}
	if n > 0 {
		slog.Info("subscriptions expired", "count", n)
	}
}

func (s *Scheduler) pruneLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := PruneLogs(ctx, s.db, time.Now().Add(-LogRetention))
	if err != nil {
		slog.Error("log cleanup failed", "error", err.Error())
		return
	}
	if n > 0 {
		slog.Info("log cleanup completed", "deleted", n)
	}
}

// PruneLogs deletes system_logs written before cutoff.
func PruneLogs(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}
