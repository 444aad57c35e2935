package worker

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brandonecarr/amosmiller-sub003/internal/pkg/distlock"
	"github.com/brandonecarr/amosmiller-sub003/internal/pkg/logger"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/subscription"
)

const (
	// DefaultTickInterval is how often the scheduler wakes to check
	// whether the daily run is due.
	DefaultTickInterval = 30 * time.Minute

	// DefaultRunHourUTC is the hour of day (UTC) the daily run fires.
	DefaultRunHourUTC = 10

	// dailyRunLockTTL bounds how long a crashed run holds the lock.
	dailyRunLockTTL = 30 * time.Minute
)

// Runner runs the subscription batch operations once.
type Runner interface {
	ProcessAllDue(ctx context.Context) (*subscription.RunSummary, error)
	SendUpcomingReminders(ctx context.Context) (*subscription.ReminderSummary, error)
}

// SubscriptionScheduler fires the subscription order run and reminder run
// once per day. A distributed lock keeps multiple hosts from running the
// same day's batch concurrently; the generator's own idempotency (orders
// advance next_order_date) keeps a rare double run harmless.
type SubscriptionScheduler struct {
	db          *sql.DB
	redisClient *redis.Client
	runner      Runner

	tickInterval time.Duration
	runHourUTC   int
	now          func() time.Time

	lastRunDate string

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewSubscriptionScheduler creates a scheduler. redisClient may be nil;
// locking then falls back to PostgreSQL advisory locks.
func NewSubscriptionScheduler(db *sql.DB, redisClient *redis.Client, runner Runner) *SubscriptionScheduler {
	return &SubscriptionScheduler{
		db:           db,
		redisClient:  redisClient,
		runner:       runner,
		tickInterval: DefaultTickInterval,
		runHourUTC:   DefaultRunHourUTC,
		now:          time.Now,
	}
}

// SetTickInterval overrides how often the scheduler checks for a due run.
func (s *SubscriptionScheduler) SetTickInterval(d time.Duration) {
	if d > 0 {
		s.tickInterval = d
	}
}

// SetRunHourUTC overrides the daily run hour.
func (s *SubscriptionScheduler) SetRunHourUTC(hour int) {
	if hour >= 0 && hour < 24 {
		s.runHourUTC = hour
	}
}

// Start begins the scheduler loop.
func (s *SubscriptionScheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	logger.Info("subscription scheduler starting",
		"tick_interval", s.tickInterval.String(),
		"run_hour_utc", s.runHourUTC)

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop gracefully stops the scheduler and waits for an in-flight run.
func (s *SubscriptionScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	logger.Info("subscription scheduler stopped")
}

func (s *SubscriptionScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	// Check once at startup so a restart right after the run hour does not
	// skip the whole day.
	s.runIfDue()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runIfDue()
		}
	}
}

// runIfDue fires the daily run when the run hour has passed and today's run
// has not happened yet on this host.
func (s *SubscriptionScheduler) runIfDue() {
	now := s.now().UTC()
	today := now.Format("2006-01-02")

	s.mu.RLock()
	done := s.lastRunDate == today
	s.mu.RUnlock()
	if done || now.Hour() < s.runHourUTC {
		return
	}

	lock := distlock.NewLock(s.redisClient, s.db, "subscriptions:daily-run:"+today, dailyRunLockTTL)
	acquired, err := lock.Acquire(s.ctx)
	if err != nil {
		logger.Error("scheduler lock acquire failed", "error", err.Error())
		return
	}
	if !acquired {
		// Another host owns today's run; mark it done locally.
		s.mu.Lock()
		s.lastRunDate = today
		s.mu.Unlock()
		return
	}
	defer lock.Release(s.ctx)

	s.runOnce(today)
}

func (s *SubscriptionScheduler) runOnce(today string) {
	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Minute)
	defer cancel()

	summary, err := s.runner.ProcessAllDue(ctx)
	if err != nil {
		logger.Error("scheduled subscription run failed", "error", err.Error())
		return
	}
	logger.Info("scheduled subscription run complete",
		"processed", summary.Processed,
		"success", summary.SuccessCount,
		"errors", summary.ErrorCount)

	reminders, err := s.runner.SendUpcomingReminders(ctx)
	if err != nil {
		logger.Error("scheduled reminder run failed", "error", err.Error())
	} else {
		logger.Info("scheduled reminder run complete",
			"sent", reminders.RemindersSent,
			"total", reminders.TotalSubscriptions)
	}

	// A failed reminder pass does not repeat the order run, so the day
	// still counts as done.
	s.mu.Lock()
	s.lastRunDate = today
	s.mu.Unlock()
}
