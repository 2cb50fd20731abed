package fetch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
	log "github.com/sirupsen/logrus"

	"moarnews/feeds"
	"moarnews/models"
)

type ParseErrorKind string

const (
	ParseUnsupportedFormat ParseErrorKind = "unsupported_format"
	ParseMalformed         ParseErrorKind = "malformed"
)

// ParseError classifies an unparseable feed document. Not retried: fetching
// the same malformed document again will not fix it.
type ParseError struct {
	Kind ParseErrorKind
	Err  error
}

func (e *ParseError) Error() string {
	if e.Kind == ParseUnsupportedFormat {
		return "parse feed: unsupported document format"
	}
	return fmt.Sprintf("parse feed: malformed document: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse turns raw feed bytes into normalized items. The document format is
// sniffed from the content, never trusted from a declared content type.
// Entries without a usable link are skipped rather than failing the feed.
func Parse(raw []byte, feed models.Feed) ([]models.ParsedItem, error) {
	feedType := gofeed.DetectFeedType(bytes.NewReader(raw))
	if feedType != gofeed.FeedTypeRSS && feedType != gofeed.FeedTypeAtom {
		return nil, &ParseError{Kind: ParseUnsupportedFormat}
	}

	// The universal gofeed model drops the RSS <comments> element and Atom
	// link rel attributes, so collect discussion candidates from the
	// format-specific parsers first.
	var discussions map[string]string
	if feed.HasDiscussion {
		switch feedType {
		case gofeed.FeedTypeRSS:
			discussions = rssComments(raw)
		case gofeed.FeedTypeAtom:
			discussions = atomReplies(raw)
		}
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Kind: ParseMalformed, Err: err}
	}

	items := make([]models.ParsedItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		link := strings.TrimSpace(entry.Link)
		if link == "" && len(entry.Links) > 0 {
			link = strings.TrimSpace(entry.Links[0])
		}
		if link == "" {
			log.WithFields(log.Fields{
				"feed":  feed.Name,
				"title": entry.Title,
			}).Warn("Skipping entry with no link")
			continue
		}

		key, err := feeds.CanonicalLink(link)
		if err != nil {
			log.WithFields(log.Fields{
				"feed":  feed.Name,
				"link":  link,
				"error": err,
			}).Warn("Skipping entry with unusable link")
			continue
		}

		title := strings.TrimSpace(entry.Title)
		if title == "" {
			title = "Untitled"
		}

		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}

		items = append(items, models.ParsedItem{
			Title:         title,
			ItemURL:       link,
			DedupKey:      key,
			DiscussionURL: discussionLink(feed, entry, discussions[entry.Link], link),
			PublishedAt:   published,
		})
	}

	return items, nil
}

// discussionLink decides the secondary comments URL for one entry. It only
// ever looks at this entry and this feed's configuration: discussion/story
// pairing is never inferred across feeds.
func discussionLink(feed models.Feed, entry *gofeed.Item, auxiliary string, mainLink string) string {
	if !feed.HasDiscussion {
		return ""
	}

	// Hacker News encodes the discussion page in the guid. Ask HN style
	// posts already link to the discussion, so no separate link is needed.
	if strings.Contains(feed.SourceURL, "news.ycombinator.com") {
		if strings.Contains(mainLink, "news.ycombinator.com/item?id=") {
			return ""
		}
		if strings.Contains(entry.GUID, "news.ycombinator.com/item?id=") {
			return entry.GUID
		}
	}

	// Lobste.rs guids are the story's discussion page
	if strings.Contains(feed.SourceURL, "lobste.rs") && strings.Contains(entry.GUID, "lobste.rs/s/") {
		return entry.GUID
	}

	if auxiliary != "" {
		return auxiliary
	}

	return ""
}

// rssComments maps item links to their <comments> URLs.
func rssComments(raw []byte) map[string]string {
	parsed, err := (&rss.Parser{}).Parse(bytes.NewReader(raw))
	if err != nil || parsed == nil {
		return nil
	}

	comments := make(map[string]string, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link != "" && item.Comments != "" {
			comments[item.Link] = item.Comments
		}
	}
	return comments
}

// atomReplies maps entry alternate links to their rel=replies/comments hrefs.
func atomReplies(raw []byte) map[string]string {
	parsed, err := (&atom.Parser{}).Parse(bytes.NewReader(raw))
	if err != nil || parsed == nil {
		return nil
	}

	replies := make(map[string]string, len(parsed.Entries))
	for _, entry := range parsed.Entries {
		var alternate, reply string
		for _, link := range entry.Links {
			if link == nil {
				continue
			}
			rel := strings.ToLower(link.Rel)
			switch rel {
			case "replies", "comments":
				if reply == "" {
					reply = link.Href
				}
			case "", "alternate":
				if alternate == "" {
					alternate = link.Href
				}
			}
		}
		if alternate != "" && reply != "" {
			replies[alternate] = reply
		}
	}
	return replies
}
