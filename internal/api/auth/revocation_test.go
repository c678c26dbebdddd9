package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRevocationStore(t *testing.T) (*RedisRevocationStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	opts, err := redis.ParseURL("redis://" + mr.Addr())
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisRevocationStore(client), mr
}

func TestRedisRevocationStore(t *testing.T) {
	ctx := context.Background()

	t.Run("RevokeThenCheck", func(t *testing.T) {
		store, _ := newTestRevocationStore(t)

		revoked, err := store.IsRevoked(ctx, "session-1")
		assert.NoError(t, err)
		assert.False(t, revoked)

		err = store.Revoke(ctx, "session-1", time.Minute)
		assert.NoError(t, err)

		revoked, err = store.IsRevoked(ctx, "session-1")
		assert.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("KeyUsesDenylistPrefix", func(t *testing.T) {
		store, mr := newTestRevocationStore(t)

		require.NoError(t, store.Revoke(ctx, "session-2", time.Minute))
		assert.True(t, mr.Exists("bl_session-2"))
	})

	t.Run("EntryExpiresWithToken", func(t *testing.T) {
		store, mr := newTestRevocationStore(t)

		require.NoError(t, store.Revoke(ctx, "session-3", 30*time.Second))

		mr.FastForward(29 * time.Second)
		revoked, err := store.IsRevoked(ctx, "session-3")
		assert.NoError(t, err)
		assert.True(t, revoked)

		mr.FastForward(2 * time.Second)
		revoked, err = store.IsRevoked(ctx, "session-3")
		assert.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("ExpiredTokenStillGetsEntry", func(t *testing.T) {
		store, mr := newTestRevocationStore(t)

		// Negative remaining lifetime clamps to one second instead of
		// writing a key that never expires.
		require.NoError(t, store.Revoke(ctx, "session-4", -5*time.Second))
		assert.True(t, mr.Exists("bl_session-4"))

		ttl := mr.TTL("bl_session-4")
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Second)
	})

	t.Run("RevokeIsIdempotent", func(t *testing.T) {
		store, _ := newTestRevocationStore(t)

		require.NoError(t, store.Revoke(ctx, "session-5", time.Minute))
		require.NoError(t, store.Revoke(ctx, "session-5", time.Minute))

		revoked, err := store.IsRevoked(ctx, "session-5")
		assert.NoError(t, err)
		assert.True(t, revoked)
	})
}
