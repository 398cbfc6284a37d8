package repository

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// PebbleOptions configures the embedded store.
type PebbleOptions struct {
	// Dir is the database directory.
	Dir string
	// Sync forces a WAL fsync on every write. Otherwise writes group-commit.
	Sync bool
	// BatchSize caps BatchPut/BatchGet. Defaults to 100.
	BatchSize int
}

// PebbleStore lays rows out as table \x00 partition \x00 sort, so one partition
// is a contiguous key range in ascending sort order.
type PebbleStore struct {
	db        *pebble.DB
	write     *pebble.WriteOptions
	batchSize int

	// Increment is read-modify-write.
	incMu sync.Mutex
}

func OpenPebbleStore(opts PebbleOptions) (*PebbleStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("pebble: Dir is required")
	}
	po := &pebble.Options{}
	write := pebble.Sync
	if !opts.Sync {
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
		write = pebble.NoSync
	}
	db, err := pebble.Open(opts.Dir, po)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &PebbleStore{db: db, write: write, batchSize: opts.BatchSize}, nil
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}

func (p *PebbleStore) MaxBatchSize() int { return p.batchSize }

func partitionPrefix(table, partition string) []byte {
	b := make([]byte, 0, len(table)+len(partition)+2)
	b = append(b, table...)
	b = append(b, 0)
	b = append(b, partition...)
	return append(b, 0)
}

func encodeKey(k ports.Key) []byte {
	return append(partitionPrefix(k.Table, k.Partition), k.Sort...)
}

// prefixEnd is the first key after every key starting with prefix.
// Prefixes here always end in \x00, so bumping the last byte is enough.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

func (p *PebbleStore) Get(ctx context.Context, key ports.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.get(encodeKey(key))
}

func (p *PebbleStore) get(k []byte) ([]byte, error) {
	val, closer, err := p.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func (p *PebbleStore) Put(ctx context.Context, item ports.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.db.Set(encodeKey(item.Key), item.Value, p.write)
}

func (p *PebbleStore) Delete(ctx context.Context, key ports.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.db.Delete(encodeKey(key), p.write)
}

// BatchPut commits atomically, so nothing is ever left unprocessed.
func (p *PebbleStore) BatchPut(ctx context.Context, items []ports.Item) ([]ports.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := p.db.NewBatch()
	defer b.Close()
	for _, it := range items {
		if err := b.Set(encodeKey(it.Key), it.Value, nil); err != nil {
			return nil, err
		}
	}
	if err := b.Commit(p.write); err != nil {
		return nil, err
	}
	return nil, nil
}

func (p *PebbleStore) BatchGet(ctx context.Context, keys []ports.Key) ([]ports.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]ports.Item, 0, len(keys))
	for _, k := range keys {
		v, err := p.get(encodeKey(k))
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ports.Item{Key: k, Value: v})
	}
	return out, nil
}

func (p *PebbleStore) Query(ctx context.Context, q ports.Query) ([]ports.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := partitionPrefix(q.Table, q.Partition)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var valid bool
	if q.After == "" {
		valid = iter.First()
	} else {
		after := append(append([]byte(nil), prefix...), q.After...)
		valid = iter.SeekGE(after)
		if valid && bytes.Equal(iter.Key(), after) {
			valid = iter.Next()
		}
	}

	out := make([]ports.Item, 0, q.Limit)
	for ; valid; valid = iter.Next() {
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
		out = append(out, ports.Item{
			Key:   ports.Key{Table: q.Table, Partition: q.Partition, Sort: string(iter.Key()[len(prefix):])},
			Value: append([]byte(nil), iter.Value()...),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PebbleStore) Increment(ctx context.Context, key ports.Key, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.incMu.Lock()
	defer p.incMu.Unlock()

	k := encodeKey(key)
	var n int64
	v, err := p.get(k)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return 0, err
	default:
		if n, err = strconv.ParseInt(string(v), 10, 64); err != nil {
			return 0, err
		}
	}
	n += delta
	if err := p.db.Set(k, []byte(strconv.FormatInt(n, 10)), p.write); err != nil {
		return 0, err
	}
	return n, nil
}
