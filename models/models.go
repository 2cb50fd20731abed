package models

import "time"

// Feed is one configured RSS/Atom source. The ID is derived from the
// canonical source URL at startup and never changes while the URL does not.
type Feed struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	SourceURL     string     `json:"sourceUrl"`
	HasDiscussion bool       `json:"hasDiscussion"`
	Position      int        `json:"-"`
	LastFetched   *time.Time `json:"lastFetched,omitempty"`
	LastError     *string    `json:"lastError,omitempty"`
}

// ParsedItem is one normalized entry out of a feed document, not yet stored.
type ParsedItem struct {
	Title         string
	ItemURL       string
	DedupKey      string
	DiscussionURL string // empty when the feed has no discussion pages
	PublishedAt   *time.Time
}

// Item is a stored feed item. (FeedID, DedupKey) is unique across the store.
type Item struct {
	FeedID        string     `json:"feedId"`
	DedupKey      string     `json:"-"`
	Title         string     `json:"title"`
	ItemURL       string     `json:"itemUrl"`
	DiscussionURL *string    `json:"discussionUrl,omitempty"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	FirstSeenAt   time.Time  `json:"firstSeenAt"`
}

type CycleState string

const (
	StateIdle    CycleState = "idle"
	StateRunning CycleState = "running"
)

// FeedOutcome records how a single feed fared in one refresh cycle.
type FeedOutcome struct {
	FeedID   string `json:"feedId"`
	Name     string `json:"name"`
	NewItems int    `json:"newItems"`
	Error    string `json:"error,omitempty"`
}

func (o FeedOutcome) Failed() bool {
	return o.Error != ""
}

// CycleStatus is a snapshot of the refresh state. Outcomes hold the result
// of the cycle in progress, or of the last finished cycle when idle.
type CycleStatus struct {
	State      CycleState             `json:"state"`
	StartedAt  *time.Time             `json:"startedAt,omitempty"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`
	Outcomes   map[string]FeedOutcome `json:"outcomes,omitempty"`
}
