package services

import (
	"context"
	"fmt"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

type profileService struct {
	store ports.Store
	auth  ports.Authenticator
	hydr  *hydrator
}

func NewProfileService(store ports.Store, auth ports.Authenticator) ports.ProfileService {
	return &profileService{store: store, auth: auth, hydr: &hydrator{store: store}}
}

func (s *profileService) GetProfile(ctx context.Context, req ports.ProfileRequest) (ports.Response[domain.Profile], error) {
	alias := domain.NormalizeAlias(req.Alias)
	if req.AuthToken == "" {
		return ports.Response[domain.Profile]{}, domain.InvalidArgument("auth token is required")
	}
	if alias == "" {
		return ports.Response[domain.Profile]{}, domain.InvalidArgument("alias is required")
	}
	ok, err := authorize(ctx, s.auth, req.AuthToken)
	if err != nil {
		return ports.Response[domain.Profile]{}, err
	}
	if !ok {
		return ports.Fail[domain.Profile](ports.SessionExpiredMessage), nil
	}

	profiles, err := s.hydr.profiles(ctx, []string{alias})
	if err != nil {
		return ports.Response[domain.Profile]{}, err
	}
	p, found := profiles[alias]
	if !found {
		return ports.Fail[domain.Profile](fmt.Sprintf("User %q not found!", alias)), nil
	}
	return ports.OK(p), nil
}

// SaveProfile stores the descriptive fields only. Counters belong to the relationship service.
func (s *profileService) SaveProfile(ctx context.Context, p domain.Profile) error {
	p.Alias = domain.NormalizeAlias(p.Alias)
	if p.Alias == "" {
		return domain.InvalidArgument("alias is required")
	}
	it, err := profileItem(p)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, it); err != nil {
		return domain.StoreUnavailable("put profile", err)
	}
	return nil
}
