package db

import (
	"database/sql"
)

// Store handles all feed and item persistence over one shared SQLite pool.
// The UNIQUE(feed_id, dedup_key) index in the schema is the dedup backstop:
// concurrent ingestion of the same item can never create duplicates.
type Store struct {
	db *sql.DB
}

func NewStore(database string) (*Store, error) {
	db, err := connection(database)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
