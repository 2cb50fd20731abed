package fetch_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moarnews/fetch"
	"moarnews/models"
)

func rssDoc(items string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<link>https://example.com</link>
<description>test</description>
` + items + `
</channel>
</rss>`)
}

func TestParseRSS(t *testing.T) {
	raw := rssDoc(`
<item>
<title>First Post</title>
<link>https://example.com/post/1</link>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
</item>
<item>
<title>Second Post</title>
<link>https://example.com/post/2/</link>
</item>`)

	feed := models.Feed{ID: "abc", Name: "Test", SourceURL: "https://example.com/rss"}
	items, err := fetch.Parse(raw, feed)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "First Post", items[0].Title)
	assert.Equal(t, "https://example.com/post/1", items[0].ItemURL)
	assert.Equal(t, "https://example.com/post/1", items[0].DedupKey)
	require.NotNil(t, items[0].PublishedAt)
	assert.Equal(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), items[0].PublishedAt.UTC())

	// Canonicalization trims the trailing slash for dedup but keeps the
	// published link as-is
	assert.Equal(t, "https://example.com/post/2/", items[1].ItemURL)
	assert.Equal(t, "https://example.com/post/2", items[1].DedupKey)
	assert.Nil(t, items[1].PublishedAt)
}

func TestParseAtom(t *testing.T) {
	raw := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Test Atom</title>
<id>urn:test</id>
<updated>2024-05-01T10:00:00Z</updated>
<entry>
<title>Atom Post</title>
<id>urn:test:1</id>
<link rel="alternate" href="https://example.com/atom/1"/>
<updated>2024-05-01T10:00:00Z</updated>
</entry>
</feed>`)

	feed := models.Feed{ID: "abc", Name: "Atom", SourceURL: "https://example.com/atom"}
	items, err := fetch.Parse(raw, feed)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Atom Post", items[0].Title)
	assert.Equal(t, "https://example.com/atom/1", items[0].ItemURL)

	// No <published>, so the entry's updated timestamp is used
	require.NotNil(t, items[0].PublishedAt)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), items[0].PublishedAt.UTC())
}

func TestParseSkipsEntriesWithoutLink(t *testing.T) {
	raw := rssDoc(`
<item>
<title>No Link</title>
</item>
<item>
<title>Has Link</title>
<link>https://example.com/post/1</link>
</item>`)

	items, err := fetch.Parse(raw, models.Feed{Name: "Test", SourceURL: "https://example.com/rss"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Has Link", items[0].Title)
}

func TestParseUntitledFallback(t *testing.T) {
	raw := rssDoc(`
<item>
<link>https://example.com/post/1</link>
</item>`)

	items, err := fetch.Parse(raw, models.Feed{Name: "Test", SourceURL: "https://example.com/rss"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Untitled", items[0].Title)
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := fetch.Parse([]byte(`{"version": "https://jsonfeed.org/version/1", "items": []}`), models.Feed{Name: "Test"})
	require.Error(t, err)

	var parseErr *fetch.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, fetch.ParseUnsupportedFormat, parseErr.Kind)
}

func TestParseMalformed(t *testing.T) {
	_, err := fetch.Parse([]byte(`<rss version="2.0"><channel><item><title>Broken`), models.Feed{Name: "Test"})
	require.Error(t, err)

	var parseErr *fetch.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, fetch.ParseMalformed, parseErr.Kind)
}

func TestDiscussionLinkHackerNews(t *testing.T) {
	raw := rssDoc(`
<item>
<title>Cool Story</title>
<link>https://blog.example.com/story</link>
<guid isPermaLink="false">https://news.ycombinator.com/item?id=12345</guid>
</item>`)

	feed := models.Feed{
		Name:          "Hacker News",
		SourceURL:     "https://news.ycombinator.com/rss",
		HasDiscussion: true,
	}
	items, err := fetch.Parse(raw, feed)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://news.ycombinator.com/item?id=12345", items[0].DiscussionURL)
}

func TestDiscussionLinkHackerNewsSelfPost(t *testing.T) {
	// Ask HN style entries already link to the discussion page
	raw := rssDoc(`
<item>
<title>Ask HN: Something</title>
<link>https://news.ycombinator.com/item?id=12345</link>
<guid isPermaLink="false">https://news.ycombinator.com/item?id=12345</guid>
</item>`)

	feed := models.Feed{
		Name:          "Hacker News",
		SourceURL:     "https://news.ycombinator.com/rss",
		HasDiscussion: true,
	}
	items, err := fetch.Parse(raw, feed)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].DiscussionURL)
}

func TestDiscussionLinkLobsters(t *testing.T) {
	raw := rssDoc(`
<item>
<title>Lobsters Story</title>
<link>https://blog.example.com/story</link>
<guid isPermaLink="false">https://lobste.rs/s/abc123</guid>
</item>`)

	feed := models.Feed{
		Name:          "Lobsters",
		SourceURL:     "https://lobste.rs/rss",
		HasDiscussion: true,
	}
	items, err := fetch.Parse(raw, feed)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://lobste.rs/s/abc123", items[0].DiscussionURL)
}

func TestDiscussionLinkRSSComments(t *testing.T) {
	raw := rssDoc(`
<item>
<title>Forum Post</title>
<link>https://blog.example.com/post</link>
<comments>https://forum.example.com/thread/9</comments>
</item>`)

	feed := models.Feed{
		Name:          "Forum",
		SourceURL:     "https://forum.example.com/rss",
		HasDiscussion: true,
	}
	items, err := fetch.Parse(raw, feed)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://forum.example.com/thread/9", items[0].DiscussionURL)
}

func TestDiscussionLinkAtomReplies(t *testing.T) {
	raw := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Test Atom</title>
<id>urn:test</id>
<updated>2024-05-01T10:00:00Z</updated>
<entry>
<title>Discussed Post</title>
<id>urn:test:1</id>
<link rel="alternate" href="https://example.com/atom/1"/>
<link rel="replies" href="https://example.com/atom/1/comments"/>
<updated>2024-05-01T10:00:00Z</updated>
</entry>
</feed>`)

	feed := models.Feed{
		Name:          "Atom",
		SourceURL:     "https://example.com/atom",
		HasDiscussion: true,
	}
	items, err := fetch.Parse(raw, feed)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/atom/1/comments", items[0].DiscussionURL)
}

func TestDiscussionLinkDisabled(t *testing.T) {
	raw := rssDoc(`
<item>
<title>Post</title>
<link>https://blog.example.com/post</link>
<comments>https://forum.example.com/thread/9</comments>
<guid isPermaLink="false">https://news.ycombinator.com/item?id=12345</guid>
</item>`)

	feed := models.Feed{
		Name:      "Plain",
		SourceURL: "https://news.ycombinator.com/rss",
	}
	items, err := fetch.Parse(raw, feed)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].DiscussionURL)
}
