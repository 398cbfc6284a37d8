package services

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

type FeedService struct {
	store  ports.Store
	writer *BatchWriter
	auth   ports.Authenticator
	hydr   *hydrator
}

func NewFeedService(store ports.Store, writer *BatchWriter, auth ports.Authenticator) *FeedService {
	return &FeedService{
		store:  store,
		writer: writer,
		auth:   auth,
		hydr:   &hydrator{store: store},
	}
}

// GetStory returns the posts authored by req.TargetAlias, newest first.
func (s *FeedService) GetStory(ctx context.Context, req ports.PageRequest) (ports.Response[domain.Page[domain.TimelineItem]], error) {
	return s.timeline(ctx, "feed.get_story", ports.TableStory, req)
}

// GetFeed returns the posts fanned out to req.TargetAlias, newest first.
func (s *FeedService) GetFeed(ctx context.Context, req ports.PageRequest) (ports.Response[domain.Page[domain.TimelineItem]], error) {
	return s.timeline(ctx, "feed.get_feed", ports.TableFeed, req)
}

func (s *FeedService) timeline(ctx context.Context, spanName, table string, req ports.PageRequest) (ports.Response[domain.Page[domain.TimelineItem]], error) {
	type result = ports.Response[domain.Page[domain.TimelineItem]]

	if err := validatePageRequest(req); err != nil {
		return result{}, err
	}
	alias := domain.NormalizeAlias(req.TargetAlias)

	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("alias", alias),
		attribute.Int("limit", req.Limit),
	))
	defer span.End()

	ok, err := authorize(ctx, s.auth, req.AuthToken)
	if err != nil {
		return result{}, err
	}
	if !ok {
		return ports.Fail[domain.Page[domain.TimelineItem]](ports.SessionExpiredMessage), nil
	}

	// 1. Une page de références (clé de récence => plus récent d'abord)
	refs, err := Paginate(ctx, s.store, table, alias, req.Limit, req.Cursor, decodeReference)
	if err != nil {
		span.RecordError(err)
		return result{}, err
	}
	if len(refs.Items) == 0 {
		page := domain.EmptyPage[domain.TimelineItem]()
		page.NextCursor = refs.NextCursor
		return ports.OK(page), nil
	}

	// 2. Hydratation (posts + auteurs en parallèle)
	items, err := s.hydr.timeline(ctx, refs.Items)
	if err != nil {
		span.RecordError(err)
		return result{}, err
	}

	return ports.OK(domain.Page[domain.TimelineItem]{
		Items:      items,
		HasMore:    refs.HasMore,
		NextCursor: refs.NextCursor,
	}), nil
}

// DistributePost writes ref into the feed of every follower of its author.
// Followers are read one store-sized page at a time so each page is one batch.
// The first batch that cannot be delivered aborts the fan-out.
func (s *FeedService) DistributePost(ctx context.Context, ref domain.PostReference) error {
	ctx, span := tracer.Start(ctx, "feed.distribute_post", trace.WithAttributes(
		attribute.String("post_id", ref.PostID),
		attribute.String("author", ref.AuthorAlias),
	))
	defer span.End()

	slog.Info("📢 Fan-out starting", "post_id", ref.PostID, "author", ref.AuthorAlias)

	batchSize := s.store.MaxBatchSize()
	var (
		cursor    domain.Cursor
		delivered int
	)
	for {
		followers, err := Paginate(ctx, s.store, ports.TableFollowers, ref.AuthorAlias, batchSize, cursor, decodeEdge)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("list followers of %s: %w", ref.AuthorAlias, err)
		}

		if len(followers.Items) > 0 {
			batch := make([]ports.Item, 0, len(followers.Items))
			for _, edge := range followers.Items {
				it, err := referenceItem(ports.TableFeed, edge.FollowerAlias, ref)
				if err != nil {
					return err
				}
				batch = append(batch, it)
			}

			if err := s.writer.Deliver(ctx, batch); err != nil {
				slog.Error("❌ Failed to deliver feed batch", "error", err, "post_id", ref.PostID, "delivered", delivered)
				span.RecordError(err)
				return fmt.Errorf("deliver post %s: %w", ref.PostID, err)
			}
			delivered += len(batch)
		}

		if !followers.HasMore {
			break
		}
		cursor = followers.NextCursor
	}

	span.SetAttributes(attribute.Int("fanout.count", delivered))
	slog.Info("✅ Fan-out complete", "post_id", ref.PostID, "count", delivered)
	return nil
}
