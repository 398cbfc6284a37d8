package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// Seeder bulk-loads test users for load and demo environments.
type Seeder struct {
	store  ports.Store
	writer *BatchWriter
}

func NewSeeder(store ports.Store, writer *BatchWriter) *Seeder {
	return &Seeder{store: store, writer: writer}
}

// SeedFollowers saves followers' profiles and makes each of them follow target.
// Writes go through the BatchWriter in store-sized batches. Duplicate aliases
// count once and re-running it does not inflate counters.
func (s *Seeder) SeedFollowers(ctx context.Context, target string, followers []domain.Profile) (int, error) {
	target = domain.NormalizeAlias(target)
	if target == "" {
		return 0, domain.InvalidArgument("target alias is required")
	}

	// 1. Alias normalisés, doublons ignorés
	unique := make([]domain.Profile, 0, len(followers))
	seen := make(map[string]struct{}, len(followers))
	for _, f := range followers {
		f.Alias = domain.NormalizeAlias(f.Alias)
		if f.Alias == "" || f.Alias == target {
			return 0, domain.InvalidArgument("invalid follower alias %q", f.Alias)
		}
		if _, ok := seen[f.Alias]; ok {
			continue
		}
		seen[f.Alias] = struct{}{}
		unique = append(unique, f)
	}

	// 2. Relations déjà présentes (pour ne compter que les nouvelles)
	keys := make([]ports.Key, 0, len(unique))
	for _, f := range unique {
		keys = append(keys, followerKey(target, f.Alias))
	}
	existing, err := (&hydrator{store: s.store}).batchGet(ctx, keys)
	if err != nil {
		return 0, err
	}
	already := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		already[it.Key.Sort] = struct{}{}
	}

	// 3. Profils + arêtes
	items := make([]ports.Item, 0, len(unique)*3)
	var fresh []string
	for _, f := range unique {
		p, err := profileItem(f)
		if err != nil {
			return 0, err
		}
		edges, err := edgeItems(domain.FollowEdge{FollowerAlias: f.Alias, FolloweeAlias: target})
		if err != nil {
			return 0, err
		}
		items = append(items, p)
		items = append(items, edges...)
		if _, ok := already[f.Alias]; !ok {
			fresh = append(fresh, f.Alias)
		}
	}
	for i, chunk := range Chunk(items, s.store.MaxBatchSize()) {
		if err := s.writer.Deliver(ctx, chunk); err != nil {
			return 0, fmt.Errorf("seed batch %d: %w", i, err)
		}
	}

	// 4. Compteurs
	if len(fresh) > 0 {
		if _, err := s.store.Increment(ctx, counterKey(target, ports.CounterFollowers), int64(len(fresh))); err != nil {
			return 0, domain.StoreUnavailable("increment follower count", err)
		}
	}
	for _, alias := range fresh {
		if _, err := s.store.Increment(ctx, counterKey(alias, ports.CounterFollowing), 1); err != nil {
			return 0, domain.StoreUnavailable("increment following count", err)
		}
	}

	slog.Info("🌱 Seeded followers", "target", target, "total", len(unique), "new", len(fresh))
	return len(fresh), nil
}
