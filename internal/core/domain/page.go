package domain

// Cursor is the store key of the last row a caller has consumed. Empty means start of range.
type Cursor string

// Page is a read-side view rebuilt per request.
// HasMore is true when the page came back exactly full, so the last page of a list
// may be followed by one empty page.
type Page[T any] struct {
	Items      []T
	HasMore    bool
	NextCursor Cursor
}

// EmptyPage is returned when a partition has nothing after the cursor.
func EmptyPage[T any]() Page[T] {
	return Page[T]{Items: []T{}}
}

// TimelineItem is a post joined to its author's profile.
type TimelineItem struct {
	Post   Post
	Author Profile
}

// PostCursor is the cursor pointing at a post already seen in a story or feed.
func PostCursor(p Post) Cursor {
	return Cursor(RecencyKey(p.Timestamp, p.ID))
}

// AliasCursor is the cursor pointing at a profile already seen in a followers/followees list.
func AliasCursor(alias string) Cursor {
	return Cursor(alias)
}
