package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/jupiterclapton/cenackle/services/timeline-service/config"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/services"
)

type seedOptions struct {
	target        string
	count         int
	posts         int
	jwtPrivateKey string
}

func newSeedCmd() *cobra.Command {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create fake users following a target, then optionally post as the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			initLogger(cfg)
			return seed(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.target, "target", "@target", "alias every seeded user follows")
	cmd.Flags().IntVar(&opts.count, "count", 100, "number of followers to create")
	cmd.Flags().IntVar(&opts.posts, "posts", 0, "posts to create as the target afterwards")
	cmd.Flags().StringVar(&opts.jwtPrivateKey, "jwt-private-key", "", "PEM private key used to sign a session in jwt mode")
	return cmd
}

func seed(ctx context.Context, cfg config.Config, opts seedOptions) error {
	if opts.count < 0 || opts.posts < 0 {
		return fmt.Errorf("--count and --posts must not be negative")
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	auth, tokens, err := newAuthenticator(cfg, store)
	if err != nil {
		return err
	}
	writer := services.NewBatchWriter(store)
	profiles := services.NewProfileService(store, auth)
	feed := services.NewFeedService(store, writer, auth)
	relationships := services.NewRelationshipService(store, writer, auth)

	// 1. Cible + followers
	target := domain.NormalizeAlias(opts.target)
	if err := profiles.SaveProfile(ctx, domain.Profile{Alias: target, DisplayName: gofakeit.Name()}); err != nil {
		return err
	}
	followers := make([]domain.Profile, opts.count)
	for i := range followers {
		followers[i] = domain.Profile{
			Alias:       fmt.Sprintf("@%s%05d", strings.ToLower(gofakeit.Username()), i),
			DisplayName: gofakeit.Name(),
			AvatarRef:   fmt.Sprintf("avatars/%d.png", i%16),
		}
	}
	created, err := services.NewSeeder(store, writer).SeedFollowers(ctx, target, followers)
	if err != nil {
		return err
	}

	// 2. Session pour la cible
	token, err := issueSession(ctx, cfg, auth, tokens, target, opts.jwtPrivateKey)
	if err != nil {
		return err
	}

	// 3. Posts (fan-out par NATS si configuré, sinon en process)
	var publisher ports.EventPublisher = eventbroker.NewLocalPublisher(feed)
	if cfg.NatsUrl != "" {
		nc, err := nats.Connect(cfg.NatsUrl)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Drain()
		publisher = eventbroker.NewNatsPublisher(nc)
	}
	posts := services.NewPostService(writer, auth, publisher, ports.SystemClock{})
	for i := 0; i < opts.posts; i++ {
		resp, err := posts.CreatePost(ctx, ports.CreatePostCmd{AuthToken: token, AuthorAlias: target, Text: gofakeit.Phrase()})
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("create post: %s", resp.Message)
		}
	}

	count, err := relationships.GetFollowersCount(ctx, ports.ProfileRequest{AuthToken: token, Alias: target})
	if err != nil {
		return err
	}
	slog.Info("✅ Seed complete", "target", target, "new_followers", created, "follower_count", count.Value, "posts", opts.posts)
	fmt.Fprintln(os.Stdout, token)
	return nil
}

func issueSession(ctx context.Context, cfg config.Config, auth ports.Authenticator, tokens *security.TokenAuthenticator, alias, keyPath string) (string, error) {
	if tokens != nil {
		return tokens.IssueToken(ctx, alias)
	}
	jwtAuth, ok := auth.(*security.JWTAuthenticator)
	if !ok || keyPath == "" {
		return "", fmt.Errorf("AUTH_MODE=%s needs --jwt-private-key to seed", cfg.AuthMode)
	}
	pem, err := os.ReadFile(keyPath)
	if err != nil {
		return "", fmt.Errorf("read jwt private key: %w", err)
	}
	if err := jwtAuth.WithSigningKey(pem); err != nil {
		return "", err
	}
	return jwtAuth.Issue(alias, time.Hour)
}
