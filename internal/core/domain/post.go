package domain

import (
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	mentionPattern = regexp.MustCompile(`@[A-Za-z0-9_.-]+`)
	urlPattern     = regexp.MustCompile(`https?://[^\s]+`)
)

// Post is immutable once created.
type Post struct {
	ID          string
	AuthorAlias string
	Text        string
	Mentions    []string
	URLs        []string
	Timestamp   time.Time
}

// NewPost builds a post and extracts mentions and URLs from its text.
func NewPost(id, authorAlias, text string, at time.Time) *Post {
	return &Post{
		ID:          id,
		AuthorAlias: authorAlias,
		Text:        text,
		Mentions:    ParseMentions(text),
		URLs:        ParseURLs(text),
		Timestamp:   at.UTC(),
	}
}

// Reference returns the lightweight row written during fan-out.
func (p *Post) Reference() PostReference {
	return PostReference{PostID: p.ID, AuthorAlias: p.AuthorAlias, Timestamp: p.Timestamp}
}

// Less orders posts by (Timestamp, ID) ascending.
func (p *Post) Less(other *Post) bool {
	if !p.Timestamp.Equal(other.Timestamp) {
		return p.Timestamp.Before(other.Timestamp)
	}
	return p.ID < other.ID
}

// PostReference points to a Post from a story or feed partition.
type PostReference struct {
	PostID      string
	AuthorAlias string
	Timestamp   time.Time
}

// SortKey is the reference's position inside its partition.
func (r PostReference) SortKey() string {
	return RecencyKey(r.Timestamp, r.PostID)
}

// RecencyKey encodes (timestamp, id) so that ascending key order is (timestamp, id) descending.
// The id is stored byte-complemented in hex and closed by '~', which sorts after any hex digit,
// so a longer id wins over its own prefix.
func RecencyKey(at time.Time, id string) string {
	comp := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		comp[i] = 0xFF - id[i]
	}
	return fmt.Sprintf("%019d#%s~", math.MaxInt64-at.UnixNano(), hex.EncodeToString(comp))
}

// SortByRecency sorts items by (Timestamp, ID) descending, most recent first.
func SortByRecency(items []TimelineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[j].Post.Less(&items[i].Post)
	})
}

// ParseMentions returns the distinct @aliases found in text, in order of appearance.
func ParseMentions(text string) []string {
	return distinct(mentionPattern.FindAllString(text, -1), ".,;:!?")
}

// ParseURLs returns the distinct http(s) URLs found in text, in order of appearance.
func ParseURLs(text string) []string {
	return distinct(urlPattern.FindAllString(text, -1), ".,;:!?)")
}

func distinct(matches []string, trailing string) []string {
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, trailing)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
