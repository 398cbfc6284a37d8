package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/services"
)

const validToken = "valid-token"

// tokenAuth accepts validToken only and records every call.
type tokenAuth struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *tokenAuth) Authenticate(_ context.Context, token string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return false, a.err
	}
	return token == validToken, nil
}

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sleepRecorder replaces real backoff waits.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *sleepRecorder) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.delays {
		total += d
	}
	return total
}

type testEnv struct {
	store   *repository.MemoryStore
	auth    *tokenAuth
	clock   *stubClock
	sleeps  *sleepRecorder
	writer  *services.BatchWriter
	feed    *services.FeedService
	posts   ports.PostService
	rels    ports.RelationshipService
	profile ports.ProfileService
	session ports.SessionService
}

func newTestEnv(t *testing.T, batchSize int) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  repository.NewMemoryStore(batchSize),
		auth:   &tokenAuth{},
		clock:  &stubClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		sleeps: &sleepRecorder{},
	}
	env.writer = services.NewBatchWriter(env.store, services.WithSleep(env.sleeps.Sleep))
	env.feed = services.NewFeedService(env.store, env.writer, env.auth)
	env.posts = services.NewPostService(env.writer, env.auth, eventbroker.NewLocalPublisher(env.feed), env.clock)
	env.rels = services.NewRelationshipService(env.store, env.writer, env.auth)
	env.profile = services.NewProfileService(env.store, env.auth)
	env.session = services.NewSessionService(env.store)
	return env
}

func getTestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func (e *testEnv) saveProfiles(t *testing.T, aliases ...string) {
	t.Helper()
	for _, a := range aliases {
		require.NoError(t, e.profile.SaveProfile(context.Background(), domain.Profile{
			Alias:       a,
			DisplayName: "User " + a,
		}))
	}
}

func (e *testEnv) follow(t *testing.T, follower, followee string) {
	t.Helper()
	resp, err := e.rels.Follow(context.Background(), ports.RelationCmd{
		AuthToken:   validToken,
		ActorAlias:  follower,
		TargetAlias: followee,
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
}

func (e *testEnv) post(t *testing.T, author, text string) *domain.Post {
	t.Helper()
	e.clock.Advance(time.Second)
	resp, err := e.posts.CreatePost(context.Background(), ports.CreatePostCmd{
		AuthToken:   validToken,
		AuthorAlias: author,
		Text:        text,
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	return resp.Value
}

func aliases(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("@user%03d", i)
	}
	return out
}
