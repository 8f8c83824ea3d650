// Package loopback implements the out-of-band deactivation path: single-use
// tokens, the fire-and-forget trigger client, and the receiving endpoint
// that re-loads a demoted extension and runs its deactivation hook in a
// fresh request context.
package loopback

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix  = "extpin:token:"
	defaultTokenTTL = 5 * time.Minute
)

// DeactivateScope returns the token scope for deactivating one identifier.
func DeactivateScope(id string) string {
	return "deactivate_" + id
}

// TokenStore issues and consumes single-use tokens bound to a scope.
// Consumption is atomic (GETDEL), so a token can authorize at most one call.
type TokenStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewTokenStore wraps a Redis client. A non-positive ttl uses the default.
func NewTokenStore(client redis.UniversalClient, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenStore{client: client, ttl: ttl}
}

// Issue creates a fresh single-use token for the scope.
func (s *TokenStore) Issue(ctx context.Context, scope string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("token store unavailable")
	}
	token := uuid.NewString()
	if err := s.client.Set(ctx, tokenKey(scope, token), "1", s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume validates and burns a token. It fails closed: any store error
// reports the token as invalid.
func (s *TokenStore) Consume(ctx context.Context, scope, token string) bool {
	if s == nil || s.client == nil || token == "" {
		return false
	}
	val, err := s.client.GetDel(ctx, tokenKey(scope, token)).Result()
	if err != nil {
		return false
	}
	return val == "1"
}

func tokenKey(scope, token string) string {
	return tokenKeyPrefix + scope + ":" + token
}
