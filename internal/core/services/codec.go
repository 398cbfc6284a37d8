package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// Internal DTOs so the domain stays free of storage tags.

type postRecord struct {
	ID          string    `json:"id"`
	AuthorAlias string    `json:"author_alias"`
	Text        string    `json:"text"`
	Mentions    []string  `json:"mentions,omitempty"`
	URLs        []string  `json:"urls,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type referenceRecord struct {
	PostID      string    `json:"post_id"`
	AuthorAlias string    `json:"author_alias"`
	Timestamp   time.Time `json:"timestamp"`
}

type edgeRecord struct {
	Follower string `json:"follower"`
	Followee string `json:"followee"`
}

type profileRecord struct {
	Alias       string `json:"alias"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
}

// --- KEYS ---

func postKey(id string) ports.Key {
	return ports.Key{Table: ports.TablePosts, Partition: id}
}

func profileKey(alias string) ports.Key {
	return ports.Key{Table: ports.TableProfiles, Partition: alias}
}

func counterKey(alias, counter string) ports.Key {
	return ports.Key{Table: ports.TableCounters, Partition: alias, Sort: counter}
}

func followerKey(followee, follower string) ports.Key {
	return ports.Key{Table: ports.TableFollowers, Partition: followee, Sort: follower}
}

func followeeKey(follower, followee string) ports.Key {
	return ports.Key{Table: ports.TableFollowees, Partition: follower, Sort: followee}
}

// --- ENCODERS ---

func postItem(p *domain.Post) (ports.Item, error) {
	b, err := json.Marshal(postRecord{
		ID:          p.ID,
		AuthorAlias: p.AuthorAlias,
		Text:        p.Text,
		Mentions:    p.Mentions,
		URLs:        p.URLs,
		Timestamp:   p.Timestamp,
	})
	if err != nil {
		return ports.Item{}, fmt.Errorf("marshal post: %w", err)
	}
	return ports.Item{Key: postKey(p.ID), Value: b}, nil
}

func encodeReference(ref domain.PostReference) ([]byte, error) {
	b, err := json.Marshal(referenceRecord{PostID: ref.PostID, AuthorAlias: ref.AuthorAlias, Timestamp: ref.Timestamp})
	if err != nil {
		return nil, fmt.Errorf("marshal reference: %w", err)
	}
	return b, nil
}

// referenceItem places ref in table/partition (a story or a feed).
func referenceItem(table, partition string, ref domain.PostReference) (ports.Item, error) {
	b, err := encodeReference(ref)
	if err != nil {
		return ports.Item{}, err
	}
	return ports.Item{
		Key:   ports.Key{Table: table, Partition: partition, Sort: ref.SortKey()},
		Value: b,
	}, nil
}

// edgeItems returns both index rows of an edge.
func edgeItems(e domain.FollowEdge) ([]ports.Item, error) {
	b, err := json.Marshal(edgeRecord{Follower: e.FollowerAlias, Followee: e.FolloweeAlias})
	if err != nil {
		return nil, fmt.Errorf("marshal edge: %w", err)
	}
	return []ports.Item{
		{Key: followerKey(e.FolloweeAlias, e.FollowerAlias), Value: b},
		{Key: followeeKey(e.FollowerAlias, e.FolloweeAlias), Value: b},
	}, nil
}

func profileItem(p domain.Profile) (ports.Item, error) {
	b, err := json.Marshal(profileRecord{Alias: p.Alias, DisplayName: p.DisplayName, AvatarRef: p.AvatarRef})
	if err != nil {
		return ports.Item{}, fmt.Errorf("marshal profile: %w", err)
	}
	return ports.Item{Key: profileKey(p.Alias), Value: b}, nil
}

// --- DECODERS ---

func decodePost(it ports.Item) (domain.Post, error) {
	var r postRecord
	if err := json.Unmarshal(it.Value, &r); err != nil {
		return domain.Post{}, err
	}
	return domain.Post{
		ID:          r.ID,
		AuthorAlias: r.AuthorAlias,
		Text:        r.Text,
		Mentions:    r.Mentions,
		URLs:        r.URLs,
		Timestamp:   r.Timestamp,
	}, nil
}

func decodeReference(it ports.Item) (domain.PostReference, error) {
	var r referenceRecord
	if err := json.Unmarshal(it.Value, &r); err != nil {
		return domain.PostReference{}, err
	}
	if r.PostID == "" {
		return domain.PostReference{}, fmt.Errorf("reference without post id")
	}
	return domain.PostReference{PostID: r.PostID, AuthorAlias: r.AuthorAlias, Timestamp: r.Timestamp}, nil
}

func decodeEdge(it ports.Item) (domain.FollowEdge, error) {
	var r edgeRecord
	if err := json.Unmarshal(it.Value, &r); err != nil {
		return domain.FollowEdge{}, err
	}
	return domain.FollowEdge{FollowerAlias: r.Follower, FolloweeAlias: r.Followee}, nil
}

func decodeProfile(it ports.Item) (domain.Profile, error) {
	var r profileRecord
	if err := json.Unmarshal(it.Value, &r); err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{Alias: r.Alias, DisplayName: r.DisplayName, AvatarRef: r.AvatarRef}, nil
}

func decodeCounter(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}
