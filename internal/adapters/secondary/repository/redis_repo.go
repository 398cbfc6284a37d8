package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// RedisStore keeps each partition as a hash (sort key -> value) plus a sorted set
// of the sort keys, all scored 0 so ZRANGEBYLEX walks them in byte order.
// Both keys share a hash tag so they live on the same cluster slot.
type RedisStore struct {
	client    redis.UniversalClient
	batchSize int
}

func NewRedisStore(client redis.UniversalClient, batchSize int) *RedisStore {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &RedisStore{client: client, batchSize: batchSize}
}

func (r *RedisStore) MaxBatchSize() int { return r.batchSize }

func hashKey(table, partition string) string {
	return fmt.Sprintf("tl:{%s:%s}", table, partition)
}

func indexKey(table, partition string) string {
	return hashKey(table, partition) + ":idx"
}

func (r *RedisStore) Get(ctx context.Context, key ports.Key) ([]byte, error) {
	v, err := r.client.HGet(ctx, hashKey(key.Table, key.Partition), key.Sort).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	return v, err
}

func (r *RedisStore) Put(ctx context.Context, item ports.Item) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		queuePut(ctx, pipe, item)
		return nil
	})
	return err
}

func (r *RedisStore) Delete(ctx context.Context, key ports.Key) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, hashKey(key.Table, key.Partition), key.Sort)
		pipe.ZRem(ctx, indexKey(key.Table, key.Partition), key.Sort)
		return nil
	})
	return err
}

// BatchPut pipelines every item. Items whose commands failed come back as
// unprocessed. If nothing succeeded the store itself is down and the error is returned.
func (r *RedisStore) BatchPut(ctx context.Context, items []ports.Item) ([]ports.Item, error) {
	pipe := r.client.Pipeline()
	for _, it := range items {
		queuePut(ctx, pipe, it)
	}
	cmds, execErr := pipe.Exec(ctx)
	if execErr != nil && len(cmds) != 2*len(items) {
		return nil, execErr
	}

	var unprocessed []ports.Item
	for i, it := range items {
		if cmds[2*i].Err() != nil || cmds[2*i+1].Err() != nil {
			unprocessed = append(unprocessed, it)
		}
	}
	if len(unprocessed) == len(items) && execErr != nil {
		return nil, execErr
	}
	return unprocessed, nil
}

func queuePut(ctx context.Context, pipe redis.Pipeliner, it ports.Item) {
	pipe.HSet(ctx, hashKey(it.Key.Table, it.Key.Partition), it.Key.Sort, it.Value)
	pipe.ZAdd(ctx, indexKey(it.Key.Table, it.Key.Partition), redis.Z{Score: 0, Member: it.Key.Sort})
}

func (r *RedisStore) BatchGet(ctx context.Context, keys []ports.Key) ([]ports.Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGet(ctx, hashKey(k.Table, k.Partition), k.Sort)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make([]ports.Item, 0, len(keys))
	for i, cmd := range cmds {
		v, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ports.Item{Key: keys[i], Value: v})
	}
	return out, nil
}

func (r *RedisStore) Query(ctx context.Context, q ports.Query) ([]ports.Item, error) {
	lower := "-"
	if q.After != "" {
		lower = "(" + q.After
	}
	sorts, err := r.client.ZRangeByLex(ctx, indexKey(q.Table, q.Partition), &redis.ZRangeBy{
		Min:   lower,
		Max:   "+",
		Count: int64(q.Limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(sorts) == 0 {
		return []ports.Item{}, nil
	}

	values, err := r.client.HMGet(ctx, hashKey(q.Table, q.Partition), sorts...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]ports.Item, 0, len(sorts))
	for i, s := range sorts {
		v, ok := values[i].(string)
		if !ok {
			// Supprimé entre les deux lectures
			continue
		}
		out = append(out, ports.Item{
			Key:   ports.Key{Table: q.Table, Partition: q.Partition, Sort: s},
			Value: []byte(v),
		})
	}
	return out, nil
}

func (r *RedisStore) Increment(ctx context.Context, key ports.Key, delta int64) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, hashKey(key.Table, key.Partition), key.Sort, delta)
		pipe.ZAdd(ctx, indexKey(key.Table, key.Partition), redis.Z{Score: 0, Member: key.Sort})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
