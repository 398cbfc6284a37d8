package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// COLLATE "C" garde l'ordre des octets (même ordre que les autres backends)
const schema = `
CREATE TABLE IF NOT EXISTS timeline_items (
	tbl       TEXT NOT NULL,
	partition TEXT NOT NULL,
	sort      TEXT COLLATE "C" NOT NULL,
	value     BYTEA NOT NULL,
	PRIMARY KEY (tbl, partition, sort)
)`

const upsertItem = `
	INSERT INTO timeline_items (tbl, partition, sort, value)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (tbl, partition, sort) DO UPDATE SET value = EXCLUDED.value
`

type PostgresStore struct {
	db        *pgxpool.Pool
	batchSize int
}

func NewPostgresStore(db *pgxpool.Pool, batchSize int) *PostgresStore {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &PostgresStore{db: db, batchSize: batchSize}
}

// EnsureSchema creates the items table if needed.
func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

func (r *PostgresStore) MaxBatchSize() int { return r.batchSize }

func (r *PostgresStore) Get(ctx context.Context, key ports.Key) ([]byte, error) {
	var v []byte
	err := r.db.QueryRow(ctx,
		`SELECT value FROM timeline_items WHERE tbl = $1 AND partition = $2 AND sort = $3`,
		key.Table, key.Partition, key.Sort,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return v, err
}

func (r *PostgresStore) Put(ctx context.Context, item ports.Item) error {
	_, err := r.db.Exec(ctx, upsertItem, item.Key.Table, item.Key.Partition, item.Key.Sort, item.Value)
	return err
}

func (r *PostgresStore) Delete(ctx context.Context, key ports.Key) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM timeline_items WHERE tbl = $1 AND partition = $2 AND sort = $3`,
		key.Table, key.Partition, key.Sort,
	)
	return err
}

// BatchPut sends one pgx.Batch. It runs as a single implicit transaction, so
// on a capacity error the whole batch is unprocessed; any other error is returned.
func (r *PostgresStore) BatchPut(ctx context.Context, items []ports.Item) ([]ports.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(upsertItem, it.Key.Table, it.Key.Partition, it.Key.Sort, it.Value)
	}

	br := r.db.SendBatch(ctx, batch)
	var execErr error
	for range items {
		if _, err := br.Exec(); err != nil && execErr == nil {
			execErr = err
		}
	}
	if err := br.Close(); err != nil && execErr == nil {
		execErr = err
	}

	if execErr == nil {
		return nil, nil
	}
	if isCapacityError(execErr) {
		return items, nil
	}
	return nil, execErr
}

func (r *PostgresStore) BatchGet(ctx context.Context, keys []ports.Key) ([]ports.Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	tables := make([]string, len(keys))
	partitions := make([]string, len(keys))
	sorts := make([]string, len(keys))
	for i, k := range keys {
		tables[i], partitions[i], sorts[i] = k.Table, k.Partition, k.Sort
	}

	rows, err := r.db.Query(ctx, `
		SELECT i.tbl, i.partition, i.sort, i.value
		FROM timeline_items i
		JOIN unnest($1::text[], $2::text[], $3::text[]) AS k(tbl, partition, sort)
		  ON i.tbl = k.tbl AND i.partition = k.partition AND i.sort = k.sort
	`, tables, partitions, sorts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ports.Item, 0, len(keys))
	for rows.Next() {
		var it ports.Item
		if err := rows.Scan(&it.Key.Table, &it.Key.Partition, &it.Key.Sort, &it.Value); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Query : pagination keyset (sort > curseur), jamais d'OFFSET
func (r *PostgresStore) Query(ctx context.Context, q ports.Query) ([]ports.Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT sort, value
		FROM timeline_items
		WHERE tbl = $1 AND partition = $2 AND ($3 = '' OR sort > $3)
		ORDER BY sort ASC
		LIMIT $4
	`, q.Table, q.Partition, q.After, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ports.Item, 0, q.Limit)
	for rows.Next() {
		it := ports.Item{Key: ports.Key{Table: q.Table, Partition: q.Partition}}
		if err := rows.Scan(&it.Key.Sort, &it.Value); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresStore) Increment(ctx context.Context, key ports.Key, delta int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO timeline_items (tbl, partition, sort, value)
		VALUES ($1, $2, $3, convert_to($4::bigint::text, 'UTF8'))
		ON CONFLICT (tbl, partition, sort) DO UPDATE
		SET value = convert_to((convert_from(timeline_items.value, 'UTF8')::bigint + $4::bigint)::text, 'UTF8')
		RETURNING convert_from(value, 'UTF8')::bigint
	`, key.Table, key.Partition, key.Sort, delta).Scan(&n)
	return n, err
}

// isCapacityError reports errors worth retrying: serialization/deadlock (class 40),
// lock not available, and insufficient resources (class 53).
func isCapacityError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return strings.HasPrefix(pgErr.Code, "53")
}
