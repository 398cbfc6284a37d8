package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
)

// SessionExpiredMessage is what callers see when their token is rejected.
const SessionExpiredMessage = "Unable to authenticate! Your session may have expired. Please log out and log back in."

// --- INPUTS ---

// PageRequest is the shape of every list read.
type PageRequest struct {
	AuthToken   string
	TargetAlias string
	Limit       int
	Cursor      domain.Cursor
}

// RelationCmd is the shape of follow/unfollow and relationship checks.
type RelationCmd struct {
	AuthToken   string
	ActorAlias  string
	TargetAlias string
}

type CreatePostCmd struct {
	AuthToken   string
	AuthorAlias string
	Text        string
}

type ProfileRequest struct {
	AuthToken string
	Alias     string
}

// --- OUTPUTS ---

// Response is a tagged result: either Success with a Value, or an unsuccessful
// outcome carrying a user-facing Message. Faults travel as errors instead.
type Response[T any] struct {
	Success bool
	Message string
	Value   T
}

// OK wraps a successful value.
func OK[T any](v T) Response[T] {
	return Response[T]{Success: true, Value: v}
}

// Fail builds an unsuccessful outcome.
func Fail[T any](msg string) Response[T] {
	return Response[T]{Message: msg}
}

// --- DRIVING (what the service exposes) ---

type FeedService interface {
	GetFeed(ctx context.Context, req PageRequest) (Response[domain.Page[domain.TimelineItem]], error)
	GetStory(ctx context.Context, req PageRequest) (Response[domain.Page[domain.TimelineItem]], error)

	// DistributePost is called when a post.created event arrives.
	DistributePost(ctx context.Context, ref domain.PostReference) error
}

type PostService interface {
	CreatePost(ctx context.Context, cmd CreatePostCmd) (Response[*domain.Post], error)
}

type RelationshipService interface {
	ListFollowers(ctx context.Context, req PageRequest) (Response[domain.Page[domain.Profile]], error)
	ListFollowees(ctx context.Context, req PageRequest) (Response[domain.Page[domain.Profile]], error)
	Follow(ctx context.Context, cmd RelationCmd) (Response[struct{}], error)
	Unfollow(ctx context.Context, cmd RelationCmd) (Response[struct{}], error)
	// IsFollower reports whether ActorAlias follows TargetAlias.
	IsFollower(ctx context.Context, cmd RelationCmd) (Response[bool], error)
	GetFollowersCount(ctx context.Context, req ProfileRequest) (Response[int64], error)
	GetFollowingCount(ctx context.Context, req ProfileRequest) (Response[int64], error)
}

type ProfileService interface {
	GetProfile(ctx context.Context, req ProfileRequest) (Response[domain.Profile], error)
	SaveProfile(ctx context.Context, p domain.Profile) error
}

type SessionService interface {
	Logout(ctx context.Context, token string) (Response[struct{}], error)
}
