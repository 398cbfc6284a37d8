package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

type postService struct {
	writer    *BatchWriter
	auth      ports.Authenticator
	publisher ports.EventPublisher
	clock     ports.Clock
	newID     func() string
}

func NewPostService(writer *BatchWriter, auth ports.Authenticator, pub ports.EventPublisher, clock ports.Clock) ports.PostService {
	return &postService{
		writer:    writer,
		auth:      auth,
		publisher: pub,
		clock:     clock,
		newID:     uuid.NewString,
	}
}

func (s *postService) CreatePost(ctx context.Context, cmd ports.CreatePostCmd) (ports.Response[*domain.Post], error) {
	if cmd.AuthToken == "" {
		return ports.Response[*domain.Post]{}, domain.InvalidArgument("auth token is required")
	}
	author := domain.NormalizeAlias(cmd.AuthorAlias)
	if author == "" {
		return ports.Response[*domain.Post]{}, domain.InvalidArgument("author alias is required")
	}
	if strings.TrimSpace(cmd.Text) == "" {
		return ports.Response[*domain.Post]{}, domain.InvalidArgument("post text is required")
	}

	ok, err := authorize(ctx, s.auth, cmd.AuthToken)
	if err != nil {
		return ports.Response[*domain.Post]{}, err
	}
	if !ok {
		return ports.Fail[*domain.Post](ports.SessionExpiredMessage), nil
	}

	post := domain.NewPost(s.newID(), author, cmd.Text, s.clock.Now())

	// 1. Sauvegarde (corps du post + référence dans la story, un seul batch)
	body, err := postItem(post)
	if err != nil {
		return ports.Response[*domain.Post]{}, err
	}
	story, err := referenceItem(ports.TableStory, author, post.Reference())
	if err != nil {
		return ports.Response[*domain.Post]{}, err
	}
	if err := s.writer.Deliver(ctx, []ports.Item{body, story}); err != nil {
		return ports.Response[*domain.Post]{}, fmt.Errorf("save post: %w", err)
	}

	// 2. Publication (déclenche le fan-out)
	if err := s.publisher.PublishPostCreated(ctx, post); err != nil {
		slog.Error("❌ Failed to publish post.created", "error", err, "post_id", post.ID)
		return ports.Response[*domain.Post]{}, fmt.Errorf("publish post %s: %w", post.ID, err)
	}

	slog.Info("📝 Post created", "post_id", post.ID, "author", author)
	return ports.OK(post), nil
}
