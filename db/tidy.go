package db

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Tidy prunes every feed in the database down to the retention cap. Used by
// the tidy command; the refresh cycle prunes incrementally on its own.
func Tidy(database string, max int) error {
	store, err := NewStore(database)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	feeds, err := store.GetFeeds(ctx)
	if err != nil {
		return err
	}

	for _, feed := range feeds {
		removed, err := store.PruneFeed(ctx, feed.ID, max)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"feed":    feed.Name,
			"removed": removed,
		}).Info("Tidied feed")
	}

	return nil
}
