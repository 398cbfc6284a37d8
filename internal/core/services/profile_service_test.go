package services_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

func TestGetProfile(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()
	env := newTestEnv(t, 25)
	require.NoError(t, env.profile.SaveProfile(ctx, domain.Profile{Alias: "@amy", DisplayName: "Amy", AvatarRef: "s3://a.png", FollowerCount: 99}))
	env.saveProfiles(t, "@bob")
	env.follow(t, "@bob", "@amy")

	resp, err := env.profile.GetProfile(ctx, ports.ProfileRequest{AuthToken: validToken, Alias: "@amy"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, domain.Profile{
		Alias:          "@amy",
		DisplayName:    "Amy",
		AvatarRef:      "s3://a.png",
		FollowerCount:  1,
		FollowingCount: 0,
	}, resp.Value)
}

func TestGetProfileUnknown(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()
	env := newTestEnv(t, 25)

	resp, err := env.profile.GetProfile(ctx, ports.ProfileRequest{AuthToken: validToken, Alias: "@nobody"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Contains(t, resp.Message, "@nobody")
}

func TestSaveProfileErrors(t *testing.T) {
	ctx, cancel := getTestContext()
	defer cancel()
	env := newTestEnv(t, 25)

	require.ErrorIs(t, env.profile.SaveProfile(ctx, domain.Profile{}), domain.ErrInvalidArgument)

	env.store.FailOn(repository.OpPut, errors.New("disk full"))
	require.ErrorIs(t, env.profile.SaveProfile(ctx, domain.Profile{Alias: "@amy"}), domain.ErrStoreUnavailable)
}
