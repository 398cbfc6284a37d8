package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
)

// SubjectPostCreated is consumed by the fan-out side (primary/events).
const SubjectPostCreated = "post.created"

// PostCreatedEvent is the wire contract of SubjectPostCreated.
// Only the reference travels; followers hydrate the body on read.
type PostCreatedEvent struct {
	ID          string    `json:"id"`
	AuthorAlias string    `json:"author_alias"`
	CreatedAt   time.Time `json:"created_at"`
}

type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

func (p *NatsPublisher) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	data, err := json.Marshal(PostCreatedEvent{
		ID:          post.ID,
		AuthorAlias: post.AuthorAlias,
		CreatedAt:   post.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: SubjectPostCreated,
		Data:    data,
		Header:  nats.Header{},
	}
	// Le trace ID suit le message jusqu'au consumer
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	slog.Debug("📢 Publishing event with trace context", "subject", msg.Subject, "post_id", post.ID)
	return p.nc.PublishMsg(msg)
}
