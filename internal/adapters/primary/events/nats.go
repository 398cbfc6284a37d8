package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
)

// DefaultFanoutTimeout bounds one fan-out, retries and backoff included.
const DefaultFanoutTimeout = 30 * time.Second

// Distributor is the part of the feed service this handler drives.
type Distributor interface {
	DistributePost(ctx context.Context, ref domain.PostReference) error
}

type EventHandler struct {
	service Distributor
	timeout time.Duration
	// done is called after each fan-out attempt. Tests hook it.
	done func(ref domain.PostReference, err error)
}

func NewEventHandler(service Distributor, timeout time.Duration) *EventHandler {
	if timeout <= 0 {
		timeout = DefaultFanoutTimeout
	}
	return &EventHandler{service: service, timeout: timeout, done: func(domain.PostReference, error) {}}
}

// OnDone registers a callback run after each fan-out.
func (h *EventHandler) OnDone(fn func(ref domain.PostReference, err error)) {
	h.done = fn
}

func (h *EventHandler) HandlePostCreated(msg *nats.Msg) {
	// 1. Contexte de trace venant du publisher
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Header))

	ctx, span := otel.Tracer("timeline-service").Start(ctx, "process_post_created", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	// Contrat implicite avec eventbroker.PostCreatedEvent
	var event struct {
		ID          string    `json:"id"`
		AuthorAlias string    `json:"author_alias"`
		CreatedAt   time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "error", err)
		return
	}
	if event.ID == "" || event.AuthorAlias == "" {
		slog.Error("❌ Incomplete post.created event", "post_id", event.ID)
		return
	}

	slog.Info("📨 Received post.created", "post_id", event.ID, "author", event.AuthorAlias)

	ref := domain.PostReference{PostID: event.ID, AuthorAlias: event.AuthorAlias, Timestamp: event.CreatedAt}

	// 2. Fan-out en arrière-plan, le span parent reste le même
	go func() {
		childCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()

		err := h.service.DistributePost(childCtx, ref)
		if err != nil {
			slog.Error("❌ Fan-out failed", "post_id", ref.PostID, "error", err)
		} else {
			slog.Debug("✅ Fan-out success", "post_id", ref.PostID)
		}
		h.done(ref, err)
	}()
}
