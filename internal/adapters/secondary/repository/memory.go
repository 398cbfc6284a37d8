package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// Op names a Store method for fault injection and call counting.
type Op string

const (
	OpGet       Op = "get"
	OpPut       Op = "put"
	OpDelete    Op = "delete"
	OpBatchPut  Op = "batch_put"
	OpBatchGet  Op = "batch_get"
	OpQuery     Op = "query"
	OpIncrement Op = "increment"
)

// Rejector picks the items of the n-th BatchPut call (starting at 1) that the
// store leaves unprocessed. Rejected items are not written.
type Rejector func(call int, items []ports.Item) []ports.Item

type partitionID struct {
	table     string
	partition string
}

// MemoryStore is a process-local ports.Store. It backs STORE_BACKEND=memory and
// can simulate an overloaded store through Rejector and FailOn.
type MemoryStore struct {
	mu        sync.Mutex
	rows      map[partitionID]map[string][]byte
	batchSize int

	reject Rejector
	faults map[Op]error
	calls  map[Op]int
}

func NewMemoryStore(batchSize int) *MemoryStore {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &MemoryStore{
		rows:      make(map[partitionID]map[string][]byte),
		batchSize: batchSize,
		faults:    make(map[Op]error),
		calls:     make(map[Op]int),
	}
}

// SetRejector installs r for subsequent BatchPut calls. nil accepts everything.
func (m *MemoryStore) SetRejector(r Rejector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reject = r
}

// FailOn makes every call to op return err until cleared with a nil err.
func (m *MemoryStore) FailOn(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

// Calls reports how many times op was invoked.
func (m *MemoryStore) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Len reports the number of rows in a partition.
func (m *MemoryStore) Len(table, partition string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[partitionID{table, partition}])
}

func (m *MemoryStore) MaxBatchSize() int { return m.batchSize }

// enter records the call and returns the injected fault, if any. Caller holds mu.
func (m *MemoryStore) enter(ctx context.Context, op Op) error {
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.faults[op]
}

func (m *MemoryStore) Get(ctx context.Context, key ports.Key) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpGet); err != nil {
		return nil, err
	}
	v, ok := m.rows[partitionID{key.Table, key.Partition}][key.Sort]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(v), nil
}

func (m *MemoryStore) Put(ctx context.Context, item ports.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpPut); err != nil {
		return err
	}
	m.set(item)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key ports.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpDelete); err != nil {
		return err
	}
	id := partitionID{key.Table, key.Partition}
	delete(m.rows[id], key.Sort)
	if len(m.rows[id]) == 0 {
		delete(m.rows, id)
	}
	return nil
}

func (m *MemoryStore) BatchPut(ctx context.Context, items []ports.Item) ([]ports.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpBatchPut); err != nil {
		return nil, err
	}

	var rejected []ports.Item
	if m.reject != nil {
		rejected = m.reject(m.calls[OpBatchPut], items)
	}
	skip := make(map[ports.Key]struct{}, len(rejected))
	for _, it := range rejected {
		skip[it.Key] = struct{}{}
	}
	for _, it := range items {
		if _, ok := skip[it.Key]; ok {
			continue
		}
		m.set(it)
	}
	return rejected, nil
}

func (m *MemoryStore) BatchGet(ctx context.Context, keys []ports.Key) ([]ports.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpBatchGet); err != nil {
		return nil, err
	}
	out := make([]ports.Item, 0, len(keys))
	for _, k := range keys {
		if v, ok := m.rows[partitionID{k.Table, k.Partition}][k.Sort]; ok {
			out = append(out, ports.Item{Key: k, Value: clone(v)})
		}
	}
	return out, nil
}

func (m *MemoryStore) Query(ctx context.Context, q ports.Query) ([]ports.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpQuery); err != nil {
		return nil, err
	}

	part := m.rows[partitionID{q.Table, q.Partition}]
	sorts := make([]string, 0, len(part))
	for s := range part {
		if q.After == "" || s > q.After {
			sorts = append(sorts, s)
		}
	}
	sort.Strings(sorts)
	if q.Limit > 0 && len(sorts) > q.Limit {
		sorts = sorts[:q.Limit]
	}

	out := make([]ports.Item, len(sorts))
	for i, s := range sorts {
		out[i] = ports.Item{
			Key:   ports.Key{Table: q.Table, Partition: q.Partition, Sort: s},
			Value: clone(part[s]),
		}
	}
	return out, nil
}

func (m *MemoryStore) Increment(ctx context.Context, key ports.Key, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpIncrement); err != nil {
		return 0, err
	}
	var n int64
	if v, ok := m.rows[partitionID{key.Table, key.Partition}][key.Sort]; ok {
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n += delta
	m.set(ports.Item{Key: key, Value: []byte(strconv.FormatInt(n, 10))})
	return n, nil
}

func (m *MemoryStore) set(it ports.Item) {
	id := partitionID{it.Key.Table, it.Key.Partition}
	part, ok := m.rows[id]
	if !ok {
		part = make(map[string][]byte)
		m.rows[id] = part
	}
	part[it.Key.Sort] = clone(it.Value)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
