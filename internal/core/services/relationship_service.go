package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

type relationshipService struct {
	store  ports.Store
	writer *BatchWriter
	auth   ports.Authenticator
	hydr   *hydrator
}

func NewRelationshipService(store ports.Store, writer *BatchWriter, auth ports.Authenticator) ports.RelationshipService {
	return &relationshipService{
		store:  store,
		writer: writer,
		auth:   auth,
		hydr:   &hydrator{store: store},
	}
}

func (s *relationshipService) ListFollowers(ctx context.Context, req ports.PageRequest) (ports.Response[domain.Page[domain.Profile]], error) {
	return s.listEdges(ctx, ports.TableFollowers, req, func(e domain.FollowEdge) string { return e.FollowerAlias })
}

func (s *relationshipService) ListFollowees(ctx context.Context, req ports.PageRequest) (ports.Response[domain.Page[domain.Profile]], error) {
	return s.listEdges(ctx, ports.TableFollowees, req, func(e domain.FollowEdge) string { return e.FolloweeAlias })
}

func (s *relationshipService) listEdges(ctx context.Context, table string, req ports.PageRequest, other func(domain.FollowEdge) string) (ports.Response[domain.Page[domain.Profile]], error) {
	type result = ports.Response[domain.Page[domain.Profile]]

	if err := validatePageRequest(req); err != nil {
		return result{}, err
	}
	ok, err := authorize(ctx, s.auth, req.AuthToken)
	if err != nil {
		return result{}, err
	}
	if !ok {
		return ports.Fail[domain.Page[domain.Profile]](ports.SessionExpiredMessage), nil
	}

	edges, err := Paginate(ctx, s.store, table, domain.NormalizeAlias(req.TargetAlias), req.Limit, req.Cursor, decodeEdge)
	if err != nil {
		return result{}, err
	}
	if len(edges.Items) == 0 {
		page := domain.EmptyPage[domain.Profile]()
		page.NextCursor = edges.NextCursor
		return ports.OK(page), nil
	}

	aliases := make([]string, len(edges.Items))
	for i, e := range edges.Items {
		aliases[i] = other(e)
	}
	profiles, err := s.hydr.profileList(ctx, aliases)
	if err != nil {
		return result{}, err
	}

	return ports.OK(domain.Page[domain.Profile]{
		Items:      profiles,
		HasMore:    edges.HasMore,
		NextCursor: edges.NextCursor,
	}), nil
}

// Follow records ActorAlias -> TargetAlias. Repeating it changes nothing: the
// counters only move when the edge did not exist before.
func (s *relationshipService) Follow(ctx context.Context, cmd ports.RelationCmd) (ports.Response[struct{}], error) {
	actor, target, err := validateRelation(cmd)
	if err != nil {
		return ports.Response[struct{}]{}, err
	}
	if actor == target {
		return ports.Response[struct{}]{}, domain.InvalidArgument("cannot follow yourself")
	}
	ok, err := authorize(ctx, s.auth, cmd.AuthToken)
	if err != nil {
		return ports.Response[struct{}]{}, err
	}
	if !ok {
		return ports.Fail[struct{}](ports.SessionExpiredMessage), nil
	}

	// 1. État actuel de la relation
	existed, err := s.edgeExists(ctx, target, actor)
	if err != nil {
		return ports.Response[struct{}]{}, err
	}

	// 2. Les deux index (followers + followees)
	items, err := edgeItems(domain.FollowEdge{FollowerAlias: actor, FolloweeAlias: target})
	if err != nil {
		return ports.Response[struct{}]{}, err
	}
	if err := s.writer.Deliver(ctx, items); err != nil {
		return ports.Response[struct{}]{}, fmt.Errorf("write follow edge: %w", err)
	}

	// 3. Compteurs, seulement si la relation est nouvelle
	if !existed {
		if err := s.adjustCounts(ctx, actor, target, 1); err != nil {
			return ports.Response[struct{}]{}, err
		}
	}

	slog.Info("➕ Follow", "actor", actor, "target", target, "new", !existed)
	return ports.OK(struct{}{}), nil
}

func (s *relationshipService) Unfollow(ctx context.Context, cmd ports.RelationCmd) (ports.Response[struct{}], error) {
	actor, target, err := validateRelation(cmd)
	if err != nil {
		return ports.Response[struct{}]{}, err
	}
	ok, err := authorize(ctx, s.auth, cmd.AuthToken)
	if err != nil {
		return ports.Response[struct{}]{}, err
	}
	if !ok {
		return ports.Fail[struct{}](ports.SessionExpiredMessage), nil
	}

	existed, err := s.edgeExists(ctx, target, actor)
	if err != nil {
		return ports.Response[struct{}]{}, err
	}

	for _, key := range []ports.Key{followerKey(target, actor), followeeKey(actor, target)} {
		if err := s.store.Delete(ctx, key); err != nil {
			return ports.Response[struct{}]{}, domain.StoreUnavailable("delete edge", err)
		}
	}

	if existed {
		if err := s.adjustCounts(ctx, actor, target, -1); err != nil {
			return ports.Response[struct{}]{}, err
		}
	}

	slog.Info("➖ Unfollow", "actor", actor, "target", target, "existed", existed)
	return ports.OK(struct{}{}), nil
}

func (s *relationshipService) IsFollower(ctx context.Context, cmd ports.RelationCmd) (ports.Response[bool], error) {
	actor, target, err := validateRelation(cmd)
	if err != nil {
		return ports.Response[bool]{}, err
	}
	ok, err := authorize(ctx, s.auth, cmd.AuthToken)
	if err != nil {
		return ports.Response[bool]{}, err
	}
	if !ok {
		return ports.Fail[bool](ports.SessionExpiredMessage), nil
	}

	exists, err := s.edgeExists(ctx, target, actor)
	if err != nil {
		return ports.Response[bool]{}, err
	}
	return ports.OK(exists), nil
}

func (s *relationshipService) GetFollowersCount(ctx context.Context, req ports.ProfileRequest) (ports.Response[int64], error) {
	return s.count(ctx, req, ports.CounterFollowers)
}

func (s *relationshipService) GetFollowingCount(ctx context.Context, req ports.ProfileRequest) (ports.Response[int64], error) {
	return s.count(ctx, req, ports.CounterFollowing)
}

func (s *relationshipService) count(ctx context.Context, req ports.ProfileRequest, counter string) (ports.Response[int64], error) {
	alias := domain.NormalizeAlias(req.Alias)
	if req.AuthToken == "" {
		return ports.Response[int64]{}, domain.InvalidArgument("auth token is required")
	}
	if alias == "" {
		return ports.Response[int64]{}, domain.InvalidArgument("alias is required")
	}
	ok, err := authorize(ctx, s.auth, req.AuthToken)
	if err != nil {
		return ports.Response[int64]{}, err
	}
	if !ok {
		return ports.Fail[int64](ports.SessionExpiredMessage), nil
	}

	raw, err := s.store.Get(ctx, counterKey(alias, counter))
	if errors.Is(err, domain.ErrNotFound) {
		return ports.OK(int64(0)), nil
	}
	if err != nil {
		return ports.Response[int64]{}, domain.StoreUnavailable("get counter", err)
	}
	n, err := decodeCounter(raw)
	if err != nil {
		return ports.Response[int64]{}, domain.DataConsistency("counter %s/%s: %v", alias, counter, err)
	}
	return ports.OK(n), nil
}

func (s *relationshipService) edgeExists(ctx context.Context, followee, follower string) (bool, error) {
	_, err := s.store.Get(ctx, followerKey(followee, follower))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, domain.StoreUnavailable("get edge", err)
	}
	return true, nil
}

// adjustCounts moves both counters of an edge. Not atomic with the edge write.
func (s *relationshipService) adjustCounts(ctx context.Context, actor, target string, delta int64) error {
	if _, err := s.store.Increment(ctx, counterKey(target, ports.CounterFollowers), delta); err != nil {
		return domain.StoreUnavailable("increment follower count", err)
	}
	if _, err := s.store.Increment(ctx, counterKey(actor, ports.CounterFollowing), delta); err != nil {
		return domain.StoreUnavailable("increment following count", err)
	}
	return nil
}

func validateRelation(cmd ports.RelationCmd) (actor, target string, err error) {
	actor = domain.NormalizeAlias(cmd.ActorAlias)
	target = domain.NormalizeAlias(cmd.TargetAlias)
	if cmd.AuthToken == "" {
		return "", "", domain.InvalidArgument("auth token is required")
	}
	if actor == "" || target == "" {
		return "", "", domain.InvalidArgument("aliases cannot be empty")
	}
	return actor, target, nil
}
