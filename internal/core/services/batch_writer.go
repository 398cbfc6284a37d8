package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

const (
	DefaultBaseDelay  = 5 * time.Millisecond
	DefaultMaxRetries = 8
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// BatchWriter drives one logical batch to completion, resubmitting only the
// items the store left unprocessed. It keeps no state between calls.
type BatchWriter struct {
	store      ports.Store
	baseDelay  time.Duration
	maxRetries int
	sleep      SleepFunc
}

type BatchWriterOption func(*BatchWriter)

func WithBaseDelay(d time.Duration) BatchWriterOption {
	return func(w *BatchWriter) { w.baseDelay = d }
}

func WithMaxRetries(n int) BatchWriterOption {
	return func(w *BatchWriter) { w.maxRetries = n }
}

// WithSleep replaces the backoff wait (tests record delays instead of sleeping).
func WithSleep(fn SleepFunc) BatchWriterOption {
	return func(w *BatchWriter) { w.sleep = fn }
}

func NewBatchWriter(store ports.Store, opts ...BatchWriterOption) *BatchWriter {
	w := &BatchWriter{
		store:      store,
		baseDelay:  DefaultBaseDelay,
		maxRetries: DefaultMaxRetries,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Deliver writes items, which must already fit in one store batch.
// Success means the unprocessed subset became empty. Once the retry ceiling is
// passed it fails with domain.ErrTooManyRetries.
func (w *BatchWriter) Deliver(ctx context.Context, items []ports.Item) error {
	if len(items) == 0 {
		return nil
	}
	if limit := w.store.MaxBatchSize(); limit > 0 && len(items) > limit {
		return domain.InvalidArgument("batch of %d items exceeds store limit %d", len(items), limit)
	}

	ctx, span := tracer.Start(ctx, "batch_writer.deliver",
		trace.WithAttributes(attribute.Int("batch.size", len(items))))
	defer span.End()

	unprocessed, err := w.store.BatchPut(ctx, items)
	if err != nil {
		span.RecordError(err)
		return domain.StoreUnavailable("batch put", err)
	}

	retries := 0
	for len(unprocessed) > 0 {
		retries++
		if retries > w.maxRetries {
			slog.Error("Batch write gave up", "unprocessed", len(unprocessed), "attempts", retries-1)
			span.RecordError(domain.ErrTooManyRetries)
			return fmt.Errorf("%w (%d of %d items unprocessed)", domain.ErrTooManyRetries, len(unprocessed), len(items))
		}

		delay := w.baseDelay * time.Duration(int64(1)<<retries)
		slog.Debug("Batch partially applied, backing off",
			"unprocessed", len(unprocessed), "retry", retries, "delay", delay)
		if err := w.sleep(ctx, delay); err != nil {
			return domain.StoreUnavailable("backoff", err)
		}

		unprocessed, err = w.store.BatchPut(ctx, unprocessed)
		if err != nil {
			span.RecordError(err)
			return domain.StoreUnavailable("batch put", err)
		}
	}

	span.SetAttributes(attribute.Int("batch.retries", retries))
	return nil
}

// Chunk splits items into slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
