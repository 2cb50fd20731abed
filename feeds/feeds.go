package feeds

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"moarnews/config"
	"moarnews/models"
)

// ConfigError is fatal at startup: the configured feed list cannot be turned
// into a valid set of feed identities.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "feed config: " + e.Reason
}

// Query parameters stripped during link canonicalization. utm_* is matched
// by prefix separately.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"igshid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref_src": true,
}

// CanonicalLink normalizes a URL for use as a dedup key: lowercased scheme
// and host, tracking parameters and fragment removed, trailing slash trimmed.
// Query parameters are re-encoded in sorted order so equivalent links with
// shuffled parameters collapse to the same key.
func CanonicalLink(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("link %q has no scheme or host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// FeedID derives the stable feed identifier from a canonical source URL.
func FeedID(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])[:12]
}

// Resolve assigns every configured feed its stable identity. The id depends
// only on the canonical source URL, so renaming a feed or reordering the
// config keeps its history. Duplicate or unusable URLs are startup errors.
func Resolve(configs []config.FeedConfig) ([]models.Feed, error) {
	resolved := make([]models.Feed, 0, len(configs))
	seen := make(map[string]string, len(configs))

	for i, fc := range configs {
		if strings.TrimSpace(fc.URL) == "" {
			return nil, &ConfigError{Reason: fmt.Sprintf("feed %q has an empty url", fc.Name)}
		}

		canonical, err := CanonicalLink(fc.URL)
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("feed %q has an invalid url: %v", fc.Name, err)}
		}

		id := FeedID(canonical)
		if prev, ok := seen[id]; ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("feeds %q and %q resolve to the same identity (%s)", prev, fc.URL, id)}
		}
		seen[id] = fc.URL

		resolved = append(resolved, models.Feed{
			ID:            id,
			Name:          fc.Name,
			SourceURL:     fc.URL,
			HasDiscussion: fc.HasDiscussion,
			Position:      i,
		})
	}

	return resolved, nil
}
