package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/store"
)

// HousekeepingService periodically deletes expired sessions and spent reset
// challenges. Expiry is always enforced at read time, so this only bounds
// storage growth.
type HousekeepingService struct {
	Sessions   store.Sessions
	Challenges store.ResetChallenges
	Logger     *slog.Logger
	Interval   time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(sessions store.Sessions, challenges store.ResetChallenges, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Sessions:   sessions,
		Challenges: challenges,
		Logger:     logger,
		Interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one sweep. Each deletion is independent: a failure in
// one won't stop the other.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := time.Now().UTC()

	sessions, err := s.Sessions.DeleteExpiredSessions(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	}

	challenges, err := s.Challenges.DeleteExpiredResetChallenges(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired reset challenges", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed",
		"sessions_deleted", sessions,
		"challenges_deleted", challenges,
	)
}
