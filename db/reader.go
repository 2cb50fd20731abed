package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"

	"moarnews/models"
)

var feedColumns = []string{"id", "name", "url", "has_discussion", "position", "last_fetched", "last_error"}

var itemColumns = []string{"feed_id", "dedup_key", "title", "item_url", "discussion_url", "published_at", "first_seen_at"}

// GetFeeds returns all known feeds in config order with their bookkeeping
// columns.
func (s *Store) GetFeeds(ctx context.Context) ([]models.Feed, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds").OrderBy("position").Asc()
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

// GetFeed returns one feed, or nil when the id is unknown.
func (s *Store) GetFeed(ctx context.Context, feedID string) (*models.Feed, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds")
	sb.Where(sb.Equal("id", feedID))
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	feed, err := scanFeed(rows)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// GetPage returns one slice of a feed's history. Items are ordered by
// published time when the source supplied one, falling back to when the
// item was first seen, with the dedup key as a deterministic tie-break.
// The ordering only ever shifts by prepending newly ingested items, so a
// reader paging with offset/limit never sees already-returned items move.
func (s *Store) GetPage(ctx context.Context, feedID string, offset, limit int) ([]models.Item, error) {
	if limit <= 0 {
		return []models.Item{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(itemColumns...).From("items")
	sb.Where(sb.Equal("feed_id", feedID))
	sb.OrderBy("COALESCE(published_at, first_seen_at) DESC", "dedup_key")
	sb.Limit(limit).Offset(offset)
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var (
			item       models.Item
			discussion sql.NullString
			published  sql.NullInt64
			firstSeen  int64
		)
		if err := rows.Scan(&item.FeedID, &item.DedupKey, &item.Title, &item.ItemURL, &discussion, &published, &firstSeen); err != nil {
			return nil, err
		}
		if discussion.Valid {
			item.DiscussionURL = &discussion.String
		}
		if published.Valid {
			t := time.Unix(published.Int64, 0).UTC()
			item.PublishedAt = &t
		}
		item.FirstSeenAt = time.Unix(firstSeen, 0).UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountItems returns how many items are stored for the feed.
func (s *Store) CountItems(ctx context.Context, feedID string) (int64, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("COUNT(*)").From("items")
	sb.Where(sb.Equal("feed_id", feedID))
	query, args := sb.Build()

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func scanFeed(rows *sql.Rows) (models.Feed, error) {
	var (
		feed        models.Feed
		lastFetched sql.NullInt64
		lastError   sql.NullString
	)
	if err := rows.Scan(&feed.ID, &feed.Name, &feed.SourceURL, &feed.HasDiscussion, &feed.Position, &lastFetched, &lastError); err != nil {
		return models.Feed{}, err
	}
	if lastFetched.Valid {
		t := time.Unix(lastFetched.Int64, 0).UTC()
		feed.LastFetched = &t
	}
	if lastError.Valid {
		feed.LastError = &lastError.String
	}
	return feed, nil
}
