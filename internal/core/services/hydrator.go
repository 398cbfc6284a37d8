package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// hydrator resolves references into full records with batched reads.
type hydrator struct {
	store ports.Store
}

// timeline joins each reference to its post and the post's author. Post bodies and
// profiles are fetched concurrently since the references already name the authors.
// Anything that cannot be resolved fails the whole call.
func (h *hydrator) timeline(ctx context.Context, refs []domain.PostReference) ([]domain.TimelineItem, error) {
	postIDs := make([]string, 0, len(refs))
	aliases := make([]string, 0, len(refs))
	seenPosts := make(map[string]struct{}, len(refs))
	seenAliases := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, ok := seenPosts[ref.PostID]; !ok {
			seenPosts[ref.PostID] = struct{}{}
			postIDs = append(postIDs, ref.PostID)
		}
		if _, ok := seenAliases[ref.AuthorAlias]; !ok {
			seenAliases[ref.AuthorAlias] = struct{}{}
			aliases = append(aliases, ref.AuthorAlias)
		}
	}

	var (
		posts    map[string]domain.Post
		profiles map[string]domain.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = h.posts(gctx, postIDs)
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = h.profiles(gctx, aliases)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]domain.TimelineItem, 0, len(refs))
	for _, ref := range refs {
		post, ok := posts[ref.PostID]
		if !ok {
			return nil, domain.DataConsistency("post %q referenced by %q is missing", ref.PostID, ref.AuthorAlias)
		}
		author, ok := profiles[post.AuthorAlias]
		if !ok {
			return nil, domain.DataConsistency("author %q of post %q has no profile", post.AuthorAlias, post.ID)
		}
		items = append(items, domain.TimelineItem{Post: post, Author: author})
	}

	domain.SortByRecency(items)
	return items, nil
}

// profileList resolves aliases to profiles, keeping the input order.
func (h *hydrator) profileList(ctx context.Context, aliases []string) ([]domain.Profile, error) {
	profiles, err := h.profiles(ctx, aliases)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Profile, 0, len(aliases))
	for _, alias := range aliases {
		p, ok := profiles[alias]
		if !ok {
			return nil, domain.DataConsistency("profile %q is missing", alias)
		}
		out = append(out, p)
	}
	return out, nil
}

func (h *hydrator) posts(ctx context.Context, ids []string) (map[string]domain.Post, error) {
	keys := make([]ports.Key, len(ids))
	for i, id := range ids {
		keys[i] = postKey(id)
	}
	rows, err := h.batchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.Post, len(rows))
	for _, row := range rows {
		p, err := decodePost(row)
		if err != nil {
			return nil, domain.DataConsistency("undecodable post %q: %v", row.Key.Partition, err)
		}
		out[row.Key.Partition] = p
	}
	return out, nil
}

// profiles fetches profile rows together with their counter rows in one batched read.
// Aliases without a profile row are absent from the result.
func (h *hydrator) profiles(ctx context.Context, aliases []string) (map[string]domain.Profile, error) {
	keys := make([]ports.Key, 0, len(aliases)*3)
	for _, alias := range aliases {
		keys = append(keys,
			profileKey(alias),
			counterKey(alias, ports.CounterFollowers),
			counterKey(alias, ports.CounterFollowing),
		)
	}
	rows, err := h.batchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.Profile, len(aliases))
	counts := make(map[ports.Key]int64)
	for _, row := range rows {
		switch row.Key.Table {
		case ports.TableProfiles:
			p, err := decodeProfile(row)
			if err != nil {
				return nil, domain.DataConsistency("undecodable profile %q: %v", row.Key.Partition, err)
			}
			out[row.Key.Partition] = p
		case ports.TableCounters:
			n, err := decodeCounter(row.Value)
			if err != nil {
				return nil, domain.DataConsistency("undecodable counter %s/%s: %v", row.Key.Partition, row.Key.Sort, err)
			}
			counts[row.Key] = n
		}
	}
	for alias, p := range out {
		p.FollowerCount = counts[counterKey(alias, ports.CounterFollowers)]
		p.FollowingCount = counts[counterKey(alias, ports.CounterFollowing)]
		out[alias] = p
	}
	return out, nil
}

// batchGet splits keys to the store's batch limit. Reads are never retried here.
func (h *hydrator) batchGet(ctx context.Context, keys []ports.Key) ([]ports.Item, error) {
	var out []ports.Item
	for _, chunk := range Chunk(keys, h.store.MaxBatchSize()) {
		rows, err := h.store.BatchGet(ctx, chunk)
		if err != nil {
			return nil, domain.StoreUnavailable("batch get", err)
		}
		out = append(out, rows...)
	}
	return out, nil
}
