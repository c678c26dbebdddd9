package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"

	"github.com/viberoll/viberoll/internal/types"
)

const (
	publicListingKey = "viberoll:videos_public"
	viewerKeyPrefix  = "viberoll:videos_"
	listingTTL       = time.Hour
)

// ListingCache caches video listings. Redis is the shared tier; when it is
// unreachable the in-process cache keeps reads cheap on this instance until
// Redis comes back.
type ListingCache struct {
	client *redis.Client
	local  *gocache.Cache
	logger *slog.Logger
}

func NewListingCache(client *redis.Client, logger *slog.Logger) *ListingCache {
	return &ListingCache{
		client: client,
		local:  gocache.New(listingTTL, 10*time.Minute),
		logger: logger,
	}
}

func listingKey(viewerID *int64) string {
	if viewerID == nil {
		return publicListingKey
	}
	return fmt.Sprintf("%s%d", viewerKeyPrefix, *viewerID)
}

// Get returns the cached listing, or ok=false on any miss.
func (c *ListingCache) Get(ctx context.Context, viewerID *int64) ([]types.Video, bool) {
	key := listingKey(viewerID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var videos []types.Video
		if err := json.Unmarshal(raw, &videos); err != nil {
			c.logger.WarnContext(ctx, "Corrupt cache entry, dropping", slog.String("key", key), slog.Any("error", err))
			c.client.Del(ctx, key)
			return nil, false
		}
		return videos, true
	case errors.Is(err, redis.Nil):
		return nil, false
	default:
		c.logger.WarnContext(ctx, "Redis cache read failed, trying local tier", slog.Any("error", err))
		if cached, found := c.local.Get(key); found {
			// Callers fill in signed URLs on the slice they get back, so
			// hand out a copy rather than the stored one.
			stored := cached.([]types.Video)
			videos := make([]types.Video, len(stored))
			copy(videos, stored)
			return videos, true
		}
		return nil, false
	}
}

// Set stores the listing in both tiers.
func (c *ListingCache) Set(ctx context.Context, viewerID *int64, videos []types.Video) {
	key := listingKey(viewerID)

	raw, err := json.Marshal(videos)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to marshal listing for cache", slog.Any("error", err))
		return
	}

	if err := c.client.Set(ctx, key, raw, listingTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache write failed", slog.Any("error", err))
	}
	local := make([]types.Video, len(videos))
	copy(local, videos)
	c.local.Set(key, local, gocache.DefaultExpiration)
}

// Invalidate drops the public listing and the creator's personal listing.
// Called after every upload and tag update.
func (c *ListingCache) Invalidate(ctx context.Context, creatorID int64) {
	keys := []string{publicListingKey, fmt.Sprintf("%s%d", viewerKeyPrefix, creatorID)}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache invalidation failed", slog.Any("error", err))
	}
	for _, key := range keys {
		c.local.Delete(key)
	}
}
