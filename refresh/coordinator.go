package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"moarnews/fetch"
	"moarnews/models"
)

var (
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moarnews_refresh_cycle_duration_seconds",
		Help:    "Duration of full refresh cycles",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	cycleRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moarnews_refresh_cycle_rejections_total",
		Help: "Refresh triggers rejected because a cycle was already running",
	})

	feedRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moarnews_feed_refreshes_total",
		Help: "Per-feed refresh attempts by result",
	}, []string{"feed", "result"})

	itemsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moarnews_items_ingested_total",
		Help: "Newly stored items per feed",
	}, []string{"feed"})
)

// Fetcher retrieves raw feed bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store is the slice of the persistence layer a refresh cycle needs.
type Store interface {
	IngestItems(ctx context.Context, feedID string, items []models.ParsedItem) (int, error)
	PruneFeed(ctx context.Context, feedID string, max int) (int, error)
	MarkFeedFetched(ctx context.Context, feedID string, fetchErr error) error
}

const DefaultWorkers = 4

// Coordinator runs refresh cycles: single-flight, bounded fan-out, per-feed
// failure isolation. Both the scheduler and the manual trigger go through
// RunCycle/Trigger, so they share one guard and one code path.
type Coordinator struct {
	fetcher  Fetcher
	store    Store
	tracker  *Tracker
	feeds    []models.Feed
	workers  int
	maxItems int
}

func NewCoordinator(fetcher Fetcher, store Store, feeds []models.Feed, workers, maxItems int) *Coordinator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Coordinator{
		fetcher:  fetcher,
		store:    store,
		tracker:  NewTracker(),
		feeds:    feeds,
		workers:  workers,
		maxItems: maxItems,
	}
}

// Status returns a read-only snapshot for external polling.
func (c *Coordinator) Status() models.CycleStatus {
	return c.tracker.Snapshot()
}

// RunCycle refreshes all feeds and blocks until the cycle finishes. When a
// cycle is already running it returns ErrAlreadyRunning immediately.
func (c *Coordinator) RunCycle(ctx context.Context) (models.CycleStatus, error) {
	if err := c.tracker.begin(time.Now().UTC()); err != nil {
		cycleRejections.Inc()
		return c.tracker.Snapshot(), err
	}

	c.run(ctx)
	return c.tracker.Snapshot(), nil
}

// Trigger starts a refresh cycle in the background. It claims the
// single-flight guard synchronously, so the caller knows whether the cycle
// actually started.
func (c *Coordinator) Trigger(ctx context.Context) error {
	if err := c.tracker.begin(time.Now().UTC()); err != nil {
		cycleRejections.Inc()
		return err
	}

	go c.run(ctx)
	return nil
}

// run executes the cycle body. The tracker must already be Running.
func (c *Coordinator) run(ctx context.Context) {
	start := time.Now()

	log.WithFields(log.Fields{
		"feeds":   len(c.feeds),
		"workers": c.workers,
	}).Info("Starting refresh cycle")

	feedChan := make(chan models.Feed)
	results := make(chan models.FeedOutcome)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for feed := range feedChan {
				results <- c.refreshFeed(ctx, feed)
			}
		}()
	}

	go func() {
		for _, feed := range c.feeds {
			feedChan <- feed
		}
		close(feedChan)
		wg.Wait()
		close(results)
	}()

	outcomes := make(map[string]models.FeedOutcome, len(c.feeds))
	for outcome := range results {
		outcomes[outcome.FeedID] = outcome
	}

	c.tracker.finish(time.Now().UTC(), outcomes)
	cycleDuration.Observe(time.Since(start).Seconds())

	failed := lo.CountBy(lo.Values(outcomes), models.FeedOutcome.Failed)
	log.WithFields(log.Fields{
		"feeds":    len(outcomes),
		"failed":   failed,
		"duration": time.Since(start),
	}).Info("Refresh cycle complete")
}

// refreshFeed runs fetch -> parse -> ingest -> prune for one feed. Every
// failure is captured in the outcome; nothing escapes to the cycle.
func (c *Coordinator) refreshFeed(ctx context.Context, feed models.Feed) models.FeedOutcome {
	outcome := models.FeedOutcome{FeedID: feed.ID, Name: feed.Name}

	fail := func(err error) models.FeedOutcome {
		log.WithFields(log.Fields{
			"feed":  feed.Name,
			"url":   feed.SourceURL,
			"error": err,
		}).Error("Feed refresh failed")

		outcome.Error = err.Error()
		feedRefreshes.WithLabelValues(feed.ID, "failure").Inc()
		if markErr := c.store.MarkFeedFetched(ctx, feed.ID, err); markErr != nil {
			log.WithFields(log.Fields{
				"feed":  feed.Name,
				"error": markErr,
			}).Warn("Could not record feed failure")
		}
		return outcome
	}

	raw, err := c.fetcher.Fetch(ctx, feed.SourceURL)
	if err != nil {
		return fail(err)
	}

	items, err := fetch.Parse(raw, feed)
	if err != nil {
		return fail(err)
	}

	inserted, err := c.store.IngestItems(ctx, feed.ID, items)
	if err != nil {
		return fail(err)
	}

	if c.maxItems > 0 {
		if _, err := c.store.PruneFeed(ctx, feed.ID, c.maxItems); err != nil {
			// Items are already safely stored; growth is bounded again on
			// the next cycle.
			log.WithFields(log.Fields{
				"feed":  feed.Name,
				"error": err,
			}).Warn("Retention prune failed")
		}
	}

	if err := c.store.MarkFeedFetched(ctx, feed.ID, nil); err != nil {
		log.WithFields(log.Fields{
			"feed":  feed.Name,
			"error": err,
		}).Warn("Could not record feed refresh")
	}

	outcome.NewItems = inserted
	feedRefreshes.WithLabelValues(feed.ID, "success").Inc()
	itemsIngested.WithLabelValues(feed.ID).Add(float64(inserted))

	log.WithFields(log.Fields{
		"feed":   feed.Name,
		"parsed": len(items),
		"new":    inserted,
	}).Info("Feed refreshed")

	return outcome
}
