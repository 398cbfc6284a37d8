package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
)

// --- DRIVEN (what the service needs) ---

// Logical tables of the partitioned store.
const (
	TableStory      = "story"
	TableFeed       = "feed"
	TableFollowers  = "followers"
	TableFollowees  = "followees"
	TablePosts      = "posts"
	TableProfiles   = "profiles"
	TableCounters   = "counters"
	TableAuthTokens = "auth_tokens"
)

// Sort keys of the counters table.
const (
	CounterFollowers = "follower_count"
	CounterFollowing = "following_count"
)

// Key addresses one row: rows sharing Table and Partition are ordered by Sort.
type Key struct {
	Table     string
	Partition string
	Sort      string
}

// Item is a row and its opaque value.
type Item struct {
	Key   Key
	Value []byte
}

// Query selects up to Limit rows of one partition whose Sort is strictly greater than After.
type Query struct {
	Table     string
	Partition string
	After     string
	Limit     int
}

// Store is the minimal capability needed over a partitioned key-value store.
// Implementations are expected to be unreliable under load.
type Store interface {
	// Get returns domain.ErrNotFound when the row is absent.
	Get(ctx context.Context, key Key) ([]byte, error)
	Put(ctx context.Context, item Item) error
	// Delete is a no-op for absent rows.
	Delete(ctx context.Context, key Key) error

	// BatchPut may accept only part of the batch. The rejected items are returned
	// as unprocessed with a nil error: capacity pressure is not a failure.
	BatchPut(ctx context.Context, items []Item) (unprocessed []Item, err error)
	// BatchGet returns the rows that exist, in no particular order.
	BatchGet(ctx context.Context, keys []Key) ([]Item, error)

	// Query returns rows in ascending Sort order.
	Query(ctx context.Context, q Query) ([]Item, error)

	// Increment atomically adds delta to a decimal counter row, creating it at zero.
	Increment(ctx context.Context, key Key, delta int64) (int64, error)

	// MaxBatchSize is the largest batch BatchPut/BatchGet accept.
	MaxBatchSize() int
}

// Authenticator is the auth collaborator. A false result is a normal outcome.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (bool, error)
}

// EventPublisher notifies the fan-out side that a post exists.
type EventPublisher interface {
	PublishPostCreated(ctx context.Context, post *domain.Post) error
}

// Clock is injected so tests control timestamps and token expiry.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
