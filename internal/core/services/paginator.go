package services

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// Paginate reads one page of a partition: at most limit rows strictly after cursor,
// in the store's key order. HasMore is only "the page came back full".
func Paginate[T any](
	ctx context.Context,
	store ports.Store,
	table, partition string,
	limit int,
	cursor domain.Cursor,
	decode func(ports.Item) (T, error),
) (domain.Page[T], error) {
	if limit <= 0 {
		return domain.Page[T]{}, domain.InvalidArgument("limit must be positive, got %d", limit)
	}

	rows, err := store.Query(ctx, ports.Query{
		Table:     table,
		Partition: partition,
		After:     string(cursor),
		Limit:     limit,
	})
	if err != nil {
		return domain.Page[T]{}, domain.StoreUnavailable("query "+table, err)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	page := domain.Page[T]{
		Items:      make([]T, 0, len(rows)),
		HasMore:    len(rows) == limit,
		NextCursor: cursor,
	}
	for _, row := range rows {
		v, err := decode(row)
		if err != nil {
			return domain.Page[T]{}, domain.DataConsistency("undecodable row %s/%s/%s: %v",
				row.Key.Table, row.Key.Partition, row.Key.Sort, err)
		}
		page.Items = append(page.Items, v)
	}
	if len(rows) > 0 {
		page.NextCursor = domain.Cursor(rows[len(rows)-1].Key.Sort)
	}
	return page, nil
}
