package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/cenackle/services/timeline-service/config"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config) (ports.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		slog.Warn("⚠️ Using in-memory store, data is lost on exit")
		return repository.NewMemoryStore(cfg.StoreBatchSize), func() {}, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			return nil, nil, fmt.Errorf("instrument redis: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		slog.Info("✅ Connected to Redis")
		return repository.NewRedisStore(rdb, cfg.StoreBatchSize), func() { _ = rdb.Close() }, nil

	case config.BackendPostgres:
		dbConfig, err := pgxpool.ParseConfig(cfg.DBURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse DB config: %w", err)
		}
		dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

		dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			dbPool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		store := repository.NewPostgresStore(dbPool, cfg.StoreBatchSize)
		if err := store.EnsureSchema(ctx); err != nil {
			dbPool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		slog.Info("✅ Connected to PostgreSQL")
		return store, dbPool.Close, nil

	case config.BackendDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
			}
		})
		slog.Info("✅ Using DynamoDB", "table", cfg.DynamoTable, "region", cfg.DynamoRegion)
		return repository.NewDynamoStore(client, cfg.DynamoTable), func() {}, nil

	case config.BackendPebble:
		store, err := repository.OpenPebbleStore(repository.PebbleOptions{
			Dir:       cfg.PebbleDir,
			BatchSize: cfg.StoreBatchSize,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open pebble: %w", err)
		}
		slog.Info("✅ Opened Pebble store", "dir", cfg.PebbleDir)
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// newAuthenticator builds the auth collaborator. The token authenticator is also
// returned (nil in jwt mode) so seed can issue sessions.
func newAuthenticator(cfg config.Config, store ports.Store) (ports.Authenticator, *security.TokenAuthenticator, error) {
	clock := ports.SystemClock{}
	if cfg.AuthMode == config.AuthJWT {
		pem, err := os.ReadFile(cfg.JWTPublicKeyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read jwt public key: %w", err)
		}
		auth, err := security.NewJWTAuthenticator(pem, clock)
		if err != nil {
			return nil, nil, err
		}
		return auth, nil, nil
	}
	tokens := security.NewTokenAuthenticator(store, clock, cfg.TokenTTL)
	return tokens, tokens, nil
}
