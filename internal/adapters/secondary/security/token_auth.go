package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/timeline-service/internal/core/ports"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

type tokenRecord struct {
	Token     string    `json:"token"`
	Alias     string    `json:"alias"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenAuthenticator checks opaque session tokens stored in the auth_tokens table.
type TokenAuthenticator struct {
	store ports.Store
	clock ports.Clock
	ttl   time.Duration
}

func NewTokenAuthenticator(store ports.Store, clock ports.Clock, ttl time.Duration) *TokenAuthenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenAuthenticator{store: store, clock: clock, ttl: ttl}
}

func tokenKey(token string) ports.Key {
	return ports.Key{Table: ports.TableAuthTokens, Partition: token}
}

// Authenticate is true for a known token that has not expired.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	raw, err := a.store.Get(ctx, tokenKey(token))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var rec tokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Token illisible = token invalide
		return false, nil
	}
	return a.clock.Now().Before(rec.ExpiresAt), nil
}

// IssueToken creates a session for alias. Login lives elsewhere; this is used
// by seeding and local tooling.
func (a *TokenAuthenticator) IssueToken(ctx context.Context, alias string) (string, error) {
	rec := tokenRecord{
		Token:     uuid.NewString(),
		Alias:     alias,
		ExpiresAt: a.clock.Now().Add(a.ttl),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}
	if err := a.store.Put(ctx, ports.Item{Key: tokenKey(rec.Token), Value: b}); err != nil {
		return "", domain.StoreUnavailable("put token", err)
	}
	return rec.Token, nil
}
