package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

var tracer = otel.Tracer("timeline-service")

// authorize asks the authenticator about token. A rejected token is not an error:
// callers turn false into ports.SessionExpiredMessage.
func authorize(ctx context.Context, auth ports.Authenticator, token string) (bool, error) {
	ok, err := auth.Authenticate(ctx, token)
	if err != nil {
		return false, domain.StoreUnavailable("authenticate", err)
	}
	if !ok {
		slog.Info("🔒 Rejected expired or unknown session")
	}
	return ok, nil
}

func validatePageRequest(req ports.PageRequest) error {
	if req.AuthToken == "" {
		return domain.InvalidArgument("auth token is required")
	}
	if domain.NormalizeAlias(req.TargetAlias) == "" {
		return domain.InvalidArgument("target alias is required")
	}
	if req.Limit <= 0 {
		return domain.InvalidArgument("limit must be positive, got %d", req.Limit)
	}
	return nil
}
