package eventbroker

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
)

// Distributor is the fan-out entry point (services.FeedService).
type Distributor interface {
	DistributePost(ctx context.Context, ref domain.PostReference) error
}

// LocalPublisher fans out inline, in the caller's goroutine. Used when no NATS
// URL is configured and by the seed command. Fan-out errors reach the caller.
type LocalPublisher struct {
	feed Distributor
}

func NewLocalPublisher(feed Distributor) *LocalPublisher {
	return &LocalPublisher{feed: feed}
}

func (p *LocalPublisher) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	return p.feed.DistributePost(ctx, post.Reference())
}
