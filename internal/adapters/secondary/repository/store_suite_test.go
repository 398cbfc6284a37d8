package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

func getTestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// runStoreSuite checks the behaviour every backend must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		ctx, cancel := getTestContext()
		defer cancel()
		store := newStore(t)

		_, err := store.Get(ctx, ports.Key{Table: ports.TablePosts, Partition: "nope"})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("PutGetDelete", func(t *testing.T) {
		ctx, cancel := getTestContext()
		defer cancel()
		store := newStore(t)

		key := ports.Key{Table: ports.TableProfiles, Partition: "@amy"}
		require.NoError(t, store.Put(ctx, ports.Item{Key: key, Value: []byte(`{"alias":"@amy"}`)}))

		v, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, `{"alias":"@amy"}`, string(v))

		require.NoError(t, store.Delete(ctx, key))
		_, err = store.Get(ctx, key)
		require.ErrorIs(t, err, domain.ErrNotFound)

		// deleting again is fine
		require.NoError(t, store.Delete(ctx, key))
	})

	t.Run("QueryOrderAndCursor", func(t *testing.T) {
		ctx, cancel := getTestContext()
		defer cancel()
		store := newStore(t)

		var items []ports.Item
		for _, s := range []string{"d", "a", "c", "e", "b"} {
			items = append(items, ports.Item{
				Key:   ports.Key{Table: ports.TableFollowers, Partition: "@amy", Sort: s},
				Value: []byte(s),
			})
		}
		unprocessed, err := store.BatchPut(ctx, items)
		require.NoError(t, err)
		require.Empty(t, unprocessed)

		// another partition must not leak in
		require.NoError(t, store.Put(ctx, ports.Item{
			Key:   ports.Key{Table: ports.TableFollowers, Partition: "@amy2", Sort: "a"},
			Value: []byte("x"),
		}))

		rows, err := store.Query(ctx, ports.Query{Table: ports.TableFollowers, Partition: "@amy", Limit: 2})
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, sortsOf(rows))

		rows, err = store.Query(ctx, ports.Query{Table: ports.TableFollowers, Partition: "@amy", After: "b", Limit: 2})
		require.NoError(t, err)
		require.Equal(t, []string{"c", "d"}, sortsOf(rows))
		require.Equal(t, "c", string(rows[0].Value))

		rows, err = store.Query(ctx, ports.Query{Table: ports.TableFollowers, Partition: "@amy", After: "d", Limit: 2})
		require.NoError(t, err)
		require.Equal(t, []string{"e"}, sortsOf(rows))

		rows, err = store.Query(ctx, ports.Query{Table: ports.TableFollowers, Partition: "@amy", After: "e", Limit: 2})
		require.NoError(t, err)
		require.Empty(t, rows)

		rows, err = store.Query(ctx, ports.Query{Table: ports.TableFollowers, Partition: "@nobody", Limit: 10})
		require.NoError(t, err)
		require.Empty(t, rows)
	})

	t.Run("BatchGetSkipsMissing", func(t *testing.T) {
		ctx, cancel := getTestContext()
		defer cancel()
		store := newStore(t)

		present := ports.Key{Table: ports.TablePosts, Partition: "p1"}
		require.NoError(t, store.Put(ctx, ports.Item{Key: present, Value: []byte("body")}))

		rows, err := store.BatchGet(ctx, []ports.Key{present, {Table: ports.TablePosts, Partition: "p2"}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, present, rows[0].Key)
		require.Equal(t, "body", string(rows[0].Value))
	})

	t.Run("Increment", func(t *testing.T) {
		ctx, cancel := getTestContext()
		defer cancel()
		store := newStore(t)

		key := ports.Key{Table: ports.TableCounters, Partition: "@amy", Sort: ports.CounterFollowers}
		n, err := store.Increment(ctx, key, 1)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		n, err = store.Increment(ctx, key, 2)
		require.NoError(t, err)
		require.Equal(t, int64(3), n)

		n, err = store.Increment(ctx, key, -1)
		require.NoError(t, err)
		require.Equal(t, int64(2), n)

		v, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, "2", string(v))
	})

	t.Run("RecencyKeysQueryNewestFirst", func(t *testing.T) {
		ctx, cancel := getTestContext()
		defer cancel()
		store := newStore(t)

		base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		var items []ports.Item
		for i := 1; i <= 3; i++ {
			id := fmt.Sprintf("p%d", i)
			items = append(items, ports.Item{
				Key:   ports.Key{Table: ports.TableStory, Partition: "@amy", Sort: domain.RecencyKey(base.Add(time.Duration(i)*time.Minute), id)},
				Value: []byte(id),
			})
		}
		_, err := store.BatchPut(ctx, items)
		require.NoError(t, err)

		rows, err := store.Query(ctx, ports.Query{Table: ports.TableStory, Partition: "@amy", Limit: 10})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		require.Equal(t, "p3", string(rows[0].Value))
		require.Equal(t, "p2", string(rows[1].Value))
		require.Equal(t, "p1", string(rows[2].Value))
	})
}

func sortsOf(rows []ports.Item) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key.Sort
	}
	return out
}
