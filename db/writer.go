package db

import (
	"context"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"

	"moarnews/models"
)

// SyncFeeds upserts the resolved feed list at startup so bookkeeping columns
// survive renames. Feeds removed from the config are kept; their history
// stays readable until cleaned up manually.
func (s *Store) SyncFeeds(ctx context.Context, feeds []models.Feed) error {
	for _, feed := range feeds {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO feeds (id, name, url, has_discussion, position)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				url = excluded.url,
				has_discussion = excluded.has_discussion,
				position = excluded.position`,
			feed.ID,
			feed.Name,
			feed.SourceURL,
			feed.HasDiscussion,
			feed.Position,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// IngestItems inserts the parsed items that are not yet stored and returns
// how many were new. Items already present under (feed_id, dedup_key) are
// skipped, so re-ingesting the same feed is a no-op. first_seen_at is set
// here on first insertion and never changes afterwards.
func (s *Store) IngestItems(ctx context.Context, feedID string, items []models.ParsedItem) (int, error) {
	now := time.Now().UTC().Unix()
	inserted := 0

	for _, item := range items {
		var published interface{}
		if item.PublishedAt != nil {
			published = item.PublishedAt.UTC().Unix()
		}
		var discussion interface{}
		if item.DiscussionURL != "" {
			discussion = item.DiscussionURL
		}

		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertIgnoreInto("items")
		ib.Cols("feed_id", "dedup_key", "title", "item_url", "discussion_url", "published_at", "first_seen_at")
		ib.Values(feedID, item.DedupKey, item.Title, item.ItemURL, discussion, published, now)
		query, args := ib.Build()

		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += int(n)
	}

	log.WithFields(log.Fields{
		"feed":     feedID,
		"parsed":   len(items),
		"inserted": inserted,
	}).Debug("Ingested items")

	return inserted, nil
}

// PruneFeed removes the oldest items beyond max so one noisy feed cannot
// grow the database without bound. Returns the number of items removed.
func (s *Store) PruneFeed(ctx context.Context, feedID string, max int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM items
		WHERE feed_id = ? AND id NOT IN (
			SELECT id FROM items
			WHERE feed_id = ?
			ORDER BY first_seen_at DESC, id DESC
			LIMIT ?
		)`,
		feedID, feedID, max,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if n > 0 {
		log.WithFields(log.Fields{
			"feed":    feedID,
			"removed": n,
			"cap":     max,
		}).Info("Pruned old items")
	}

	return int(n), nil
}

// MarkFeedFetched records the outcome of a refresh attempt on the feed row.
// A nil fetchErr clears any previous error.
func (s *Store) MarkFeedFetched(ctx context.Context, feedID string, fetchErr error) error {
	var lastError interface{}
	if fetchErr != nil {
		lastError = fetchErr.Error()
	}

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("feeds")
	ub.Set(
		ub.Assign("last_fetched", time.Now().UTC().Unix()),
		ub.Assign("last_error", lastError),
	)
	ub.Where(ub.Equal("id", feedID))
	query, args := ub.Build()

	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}
