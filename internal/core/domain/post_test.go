package domain_test

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
)

func TestRecencyKeyOrdersNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	keys := []string{
		domain.RecencyKey(base, "a"),
		domain.RecencyKey(base.Add(time.Nanosecond), "a"),
		domain.RecencyKey(base.Add(time.Hour), "a"),
		domain.RecencyKey(base.Add(time.Hour), "b"),
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	require.Equal(t, []string{keys[3], keys[2], keys[1], keys[0]}, sorted)
	require.Len(t, keys[0], 19+1+2+1)
}

func TestRecencyKeyMatchesSortByRecency(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	ids := []string{"a", "b", "ab", "a0", "B", "p-9", "p-10"}

	items := make([]domain.TimelineItem, 0, len(ids))
	keys := make([]string, 0, len(ids))
	byKey := make(map[string]string, len(ids))
	for i, id := range ids {
		ts := at.Add(time.Duration(i%2) * time.Second)
		items = append(items, domain.TimelineItem{Post: domain.Post{ID: id, Timestamp: ts}})
		k := domain.RecencyKey(ts, id)
		keys = append(keys, k)
		byKey[k] = id
	}
	domain.SortByRecency(items)
	sort.Strings(keys)

	for i := range items {
		require.Equal(t, items[i].Post.ID, byKey[keys[i]], "position %d", i)
	}
}

func TestSortByRecency(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	items := []domain.TimelineItem{
		{Post: domain.Post{ID: "a", Timestamp: at}},
		{Post: domain.Post{ID: "c", Timestamp: at.Add(time.Minute)}},
		{Post: domain.Post{ID: "b", Timestamp: at}},
	}
	domain.SortByRecency(items)

	ids := []string{items[0].Post.ID, items[1].Post.ID, items[2].Post.ID}
	require.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestNewPostParsesText(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	p := domain.NewPost("p1", "@amy", "ping @bob and @cat! http://x.io/a?b=1, @bob", time.Date(2024, 5, 1, 9, 0, 0, 0, loc))

	require.Equal(t, []string{"@bob", "@cat"}, p.Mentions)
	require.Equal(t, []string{"http://x.io/a?b=1"}, p.URLs)
	require.Equal(t, time.UTC, p.Timestamp.Location())
	require.Equal(t, 8, p.Timestamp.Hour())

	ref := p.Reference()
	require.Equal(t, "p1", ref.PostID)
	require.Equal(t, domain.RecencyKey(p.Timestamp, "p1"), ref.SortKey())
	require.Equal(t, domain.Cursor(ref.SortKey()), domain.PostCursor(*p))
}

func TestParseWithoutMatches(t *testing.T) {
	require.Empty(t, domain.ParseMentions("nothing here"))
	require.Empty(t, domain.ParseURLs("ftp://nope"))
}
