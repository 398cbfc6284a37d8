package services_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/services"
)

func sortOf(it ports.Item) (string, error) { return it.Key.Sort, nil }

func seedFollowers(t *testing.T, store *repository.MemoryStore, n int) {
	t.Helper()
	ctx, cancel := getTestContext()
	defer cancel()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Put(ctx, ports.Item{
			Key:   ports.Key{Table: ports.TableFollowers, Partition: "@amy", Sort: fmt.Sprintf("@f%02d", i)},
			Value: []byte("{}"),
		}))
	}
}

func TestPaginateTerminates(t *testing.T) {
	for _, tc := range []struct {
		rows, limit int
		pages       []int
	}{
		{rows: 7, limit: 3, pages: []int{3, 3, 1}},
		{rows: 6, limit: 3, pages: []int{3, 3, 0}},
		{rows: 0, limit: 3, pages: []int{0}},
		{rows: 1, limit: 1, pages: []int{1, 0}},
	} {
		t.Run(fmt.Sprintf("%d_by_%d", tc.rows, tc.limit), func(t *testing.T) {
			ctx, cancel := getTestContext()
			defer cancel()
			store := repository.NewMemoryStore(25)
			seedFollowers(t, store, tc.rows)

			var (
				cursor domain.Cursor
				sizes  []int
				seen   = map[string]bool{}
			)
			for {
				page, err := services.Paginate(ctx, store, ports.TableFollowers, "@amy", tc.limit, cursor, sortOf)
				require.NoError(t, err)
				sizes = append(sizes, len(page.Items))
				for _, s := range page.Items {
					require.False(t, seen[s], "row %s returned twice", s)
					seen[s] = true
				}
				require.Equal(t, len(page.Items) == tc.limit, page.HasMore)
				if !page.HasMore {
					break
				}
				cursor = page.NextCursor
			}
			require.Equal(t, tc.pages, sizes)
			require.Len(t, seen, tc.rows)
		})
	}
}

func TestPaginateRejectsBadLimit(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()
	store := repository.NewMemoryStore(25)

	for _, limit := range []int{0, -1} {
		_, err := services.Paginate(ctx, store, ports.TableFollowers, "@amy", limit, "", sortOf)
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	}
	require.Equal(t, 0, store.Calls(repository.OpQuery))
}

func TestPaginateUndecodableRow(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()
	store := repository.NewMemoryStore(25)
	seedFollowers(t, store, 1)

	_, err := services.Paginate(ctx, store, ports.TableFollowers, "@amy", 5, "", func(ports.Item) (string, error) {
		return "", fmt.Errorf("bad json")
	})
	require.ErrorIs(t, err, domain.ErrDataConsistency)
}

func TestPaginateStoreFault(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()
	store := repository.NewMemoryStore(25)
	store.FailOn(repository.OpQuery, fmt.Errorf("timeout"))

	_, err := services.Paginate(ctx, store, ports.TableFollowers, "@amy", 5, "", sortOf)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.Equal(t, 1, store.Calls(repository.OpQuery))
}
