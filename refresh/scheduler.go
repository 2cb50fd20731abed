package refresh

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler fires refresh cycles on a fixed interval. It is nothing more
// than a timer calling the same entry point the manual trigger calls, so
// both paths share the single-flight guard.
type Scheduler struct {
	coordinator *Coordinator
	interval    time.Duration
}

func NewScheduler(coordinator *Coordinator, interval time.Duration) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		interval:    interval,
	}
}

// Run blocks until ctx is cancelled. An initial cycle runs before the first
// tick so the dashboard has content right after startup.
func (s *Scheduler) Run(ctx context.Context) {
	log.WithFields(log.Fields{
		"interval": s.interval,
	}).Info("Starting feed refresh scheduler")

	s.cycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping feed refresh scheduler")
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	if _, err := s.coordinator.RunCycle(ctx); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			log.Info("Refresh already in progress, skipping scheduled cycle")
			return
		}
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Scheduled refresh failed")
	}
}
