package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type artifactCleaner interface {
	Cleanup(ttl time.Duration) ([]string, error)
}

// CleanupScheduler purges expired export artifacts on a cron schedule.
type CleanupScheduler struct {
	cleaner  artifactCleaner
	schedule string
	ttl      time.Duration
	cron     *cron.Cron
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// NewCleanupScheduler constructs the scheduler. An empty schedule disables it.
func NewCleanupScheduler(cleaner artifactCleaner, schedule string, ttl time.Duration, logger *zap.Logger) *CleanupScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupScheduler{
		cleaner:  cleaner,
		schedule: schedule,
		ttl:      ttl,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the cleanup job and stops it when ctx is cancelled.
func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("export cleanup schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("schedule export cleanup: %w", err)
	}
	s.cron.Start()
	s.running = true
	s.logger.Sugar().Infow("export cleanup scheduler started",
		"schedule", s.schedule,
		"result_ttl", humanize.RelTime(time.Now().Add(-s.ttl), time.Now(), "old", ""),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce removes artifacts older than the TTL and returns how many were deleted.
func (s *CleanupScheduler) RunOnce() int {
	deleted, err := s.cleaner.Cleanup(s.ttl)
	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("export cleanup failed", zap.Error(err))
		return 0
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Infow("expired exports removed", "count", len(deleted))
	} else {
		s.logger.Debug("export cleanup completed, nothing expired")
	}
	return len(deleted)
}

// Stop halts the scheduler and waits for a running cleanup to finish.
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	// RunOnce takes mu, so wait outside the lock
	<-s.cron.Stop().Done()
	s.logger.Info("export cleanup scheduler stopped")
}

// IsRunning reports whether the cron loop is active.
func (s *CleanupScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled cleanup, or nil when not scheduled.
func (s *CleanupScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
