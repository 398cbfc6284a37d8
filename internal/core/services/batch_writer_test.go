package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/services"
)

func feedItems(n int) []ports.Item {
	items := make([]ports.Item, n)
	for i := range items {
		items[i] = ports.Item{
			Key:   ports.Key{Table: ports.TableFeed, Partition: fmt.Sprintf("@f%d", i), Sort: "k"},
			Value: []byte("ref"),
		}
	}
	return items
}

func TestDeliverResubmitsOnlyUnprocessed(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()

	store := repository.NewMemoryStore(25)
	var submitted [][]ports.Item
	store.SetRejector(func(call int, items []ports.Item) []ports.Item {
		submitted = append(submitted, items)
		switch call {
		case 1:
			return items[:3]
		case 2:
			return items[:1]
		}
		return nil
	})
	sleeps := &sleepRecorder{}
	writer := services.NewBatchWriter(store, services.WithSleep(sleeps.Sleep))

	items := feedItems(10)
	require.NoError(t, writer.Deliver(ctx, items))

	require.Len(t, submitted, 3)
	require.Len(t, submitted[0], 10)
	require.Equal(t, items[:3], submitted[1])
	require.Equal(t, items[:1], submitted[2])
	require.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, sleeps.delays)

	for i := range items {
		require.Equal(t, 1, store.Len(ports.TableFeed, fmt.Sprintf("@f%d", i)))
	}
}

func TestDeliverRetryCeiling(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()

	store := repository.NewMemoryStore(25)
	store.SetRejector(func(_ int, items []ports.Item) []ports.Item { return items })
	sleeps := &sleepRecorder{}
	writer := services.NewBatchWriter(store, services.WithSleep(sleeps.Sleep))

	err := writer.Deliver(ctx, feedItems(4))
	require.ErrorIs(t, err, domain.ErrTooManyRetries)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	// initial submission + 8 retries
	require.Equal(t, 9, store.Calls(repository.OpBatchPut))
	require.Len(t, sleeps.delays, 8)
	require.Equal(t, 5*time.Millisecond*(2+4+8+16+32+64+128+256), sleeps.Total())
}

func TestDeliverStoreErrorIsNotRetried(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()

	store := repository.NewMemoryStore(25)
	boom := errors.New("connection reset")
	store.FailOn(repository.OpBatchPut, boom)
	sleeps := &sleepRecorder{}
	writer := services.NewBatchWriter(store, services.WithSleep(sleeps.Sleep))

	err := writer.Deliver(ctx, feedItems(2))
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, domain.ErrTooManyRetries)
	require.Equal(t, 1, store.Calls(repository.OpBatchPut))
	require.Empty(t, sleeps.delays)
}

func TestDeliverHonoursCancellation(t *testing.T) {
	store := repository.NewMemoryStore(25)
	store.SetRejector(func(_ int, items []ports.Item) []ports.Item { return items })
	writer := services.NewBatchWriter(store, services.WithBaseDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := writer.Deliver(ctx, feedItems(1))
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeliverRejectsOversizedBatch(t *testing.T) {
	store := repository.NewMemoryStore(2)
	writer := services.NewBatchWriter(store)

	err := writer.Deliver(context.Background(), feedItems(3))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	require.Equal(t, 0, store.Calls(repository.OpBatchPut))
}

func TestDeliverEmpty(t *testing.T) {
	store := repository.NewMemoryStore(2)
	require.NoError(t, services.NewBatchWriter(store).Deliver(context.Background(), nil))
	require.Equal(t, 0, store.Calls(repository.OpBatchPut))
}

func TestChunk(t *testing.T) {
	chunks := services.Chunk([]int{1, 2, 3, 4, 5}, 2)
	require.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)
	require.Empty(t, services.Chunk([]int{}, 2))
}
