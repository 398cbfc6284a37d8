package repository_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) ports.Store {
		return repository.NewMemoryStore(25)
	})
}

func TestMemoryStoreRejector(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()

	store := repository.NewMemoryStore(25)
	store.SetRejector(func(call int, items []ports.Item) []ports.Item {
		if call == 1 {
			return items[:1]
		}
		return nil
	})

	items := []ports.Item{
		{Key: ports.Key{Table: ports.TableFeed, Partition: "@a", Sort: "1"}, Value: []byte("x")},
		{Key: ports.Key{Table: ports.TableFeed, Partition: "@b", Sort: "1"}, Value: []byte("x")},
	}

	unprocessed, err := store.BatchPut(ctx, items)
	require.NoError(t, err)
	require.Equal(t, items[:1], unprocessed)
	require.Equal(t, 0, store.Len(ports.TableFeed, "@a"))
	require.Equal(t, 1, store.Len(ports.TableFeed, "@b"))

	unprocessed, err = store.BatchPut(ctx, unprocessed)
	require.NoError(t, err)
	require.Empty(t, unprocessed)
	require.Equal(t, 1, store.Len(ports.TableFeed, "@a"))
	require.Equal(t, 2, store.Calls(repository.OpBatchPut))
}

func TestMemoryStoreFailOn(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()

	store := repository.NewMemoryStore(25)
	boom := errors.New("boom")
	store.FailOn(repository.OpQuery, boom)

	_, err := store.Query(ctx, ports.Query{Table: ports.TableFeed, Partition: "@a", Limit: 1})
	require.ErrorIs(t, err, boom)

	store.FailOn(repository.OpQuery, nil)
	_, err = store.Query(ctx, ports.Query{Table: ports.TableFeed, Partition: "@a", Limit: 1})
	require.NoError(t, err)
}
