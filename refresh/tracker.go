package refresh

import (
	"errors"
	"sync"
	"time"

	"moarnews/models"
)

// ErrAlreadyRunning is returned when a refresh cycle is requested while one
// is still in flight. The request is rejected, not queued.
var ErrAlreadyRunning = errors.New("refresh cycle already in progress")

// Tracker is the process-wide refresh state cell. The Idle -> Running
// transition is a check-and-set under one mutex, so two concurrent triggers
// can never both observe Idle.
type Tracker struct {
	mu     sync.Mutex
	status models.CycleStatus
}

func NewTracker() *Tracker {
	return &Tracker{
		status: models.CycleStatus{State: models.StateIdle},
	}
}

func (t *Tracker) begin(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.State == models.StateRunning {
		return ErrAlreadyRunning
	}

	t.status = models.CycleStatus{
		State:     models.StateRunning,
		StartedAt: &now,
	}
	return nil
}

func (t *Tracker) finish(now time.Time, outcomes map[string]models.FeedOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.State = models.StateIdle
	t.status.FinishedAt = &now
	t.status.Outcomes = outcomes
}

// Snapshot returns a copy of the current status safe to hand to readers.
func (t *Tracker) Snapshot() models.CycleStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.status
	if t.status.Outcomes != nil {
		snapshot.Outcomes = make(map[string]models.FeedOutcome, len(t.status.Outcomes))
		for id, outcome := range t.status.Outcomes {
			snapshot.Outcomes[id] = outcome
		}
	}
	return snapshot
}
