package domain

import "strings"

// Profile is the public view of a user.
// FollowerCount and FollowingCount are maintained incrementally and may drift from the edge count.
type Profile struct {
	Alias          string
	DisplayName    string
	AvatarRef      string
	FollowerCount  int64
	FollowingCount int64
}

// FollowEdge exists or it doesn't. There is no payload.
type FollowEdge struct {
	FollowerAlias string
	FolloweeAlias string
}

// NormalizeAlias trims whitespace around an alias.
func NormalizeAlias(alias string) string {
	return strings.TrimSpace(alias)
}
