package services

import (
	"context"
	"log/slog"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

type sessionService struct {
	store ports.Store
}

func NewSessionService(store ports.Store) ports.SessionService {
	return &sessionService{store: store}
}

// Logout drops the token. The client forgets its session either way, so a failed
// delete is only logged.
func (s *sessionService) Logout(ctx context.Context, token string) (ports.Response[struct{}], error) {
	if token == "" {
		return ports.Response[struct{}]{}, domain.InvalidArgument("auth token is required")
	}
	key := ports.Key{Table: ports.TableAuthTokens, Partition: token}
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Warn("⚠️ Failed to delete auth token on logout", "error", err)
	}
	return ports.OK(struct{}{}), nil
}
