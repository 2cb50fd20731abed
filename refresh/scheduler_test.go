package refresh_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moarnews/models"
	"moarnews/refresh"
)

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	return []byte(feedDoc), nil
}

func TestSchedulerRunsInitialCycleAndTicks(t *testing.T) {
	fetcher := &countingFetcher{}
	feeds := []models.Feed{
		{ID: "f1", Name: "One", SourceURL: "https://one.example.com/rss"},
	}
	coordinator := refresh.NewCoordinator(fetcher, newFakeStore(), feeds, 1, 100)
	scheduler := refresh.NewScheduler(coordinator, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	// The initial cycle plus at least one tick
	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}

	assert.Equal(t, models.StateIdle, coordinator.Status().State)
}
