package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// revokedKeyPrefix namespaces denylist entries in the shared Redis instance.
const revokedKeyPrefix = "bl_"

// RevocationStore is the token denylist. Entries expire on their own once
// the underlying token does, so the store never needs sweeping.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

var _ RevocationStore = (*RedisRevocationStore)(nil)

type RedisRevocationStore struct {
	client *redis.Client
}

func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	// A token at the edge of its lifetime still needs a live denylist entry.
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+jti, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("failed to write revocation entry: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := s.client.Get(ctx, revokedKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check revocation entry: %w", err)
	}
	return true, nil
}
