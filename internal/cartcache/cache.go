package cartcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores rendered cart views keyed by user. Every Delete moves the
// user's generation, and Set only writes under the generation the caller read
// before loading, so a load that raced a mutation never repopulates the cache.
type Cache interface {
	Get(ctx context.Context, userID string) (*types.CartView, error)
	Generation(ctx context.Context, userID string) (string, error)
	Set(ctx context.Context, userID, generation string, view *types.CartView) error
	Delete(ctx context.Context, userID string) error
}

type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	SetIfEqual(ctx context.Context, guardKey, expected, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CartCacheKey(userID string) string
	CartCacheGenerationKey(userID string) string
}

// generationTTLFactor keeps generation tokens alive past any view they guard.
const generationTTLFactor = 4

// RedisCache keeps cart views in redis for a short TTL.
type RedisCache struct {
	client store
	ttl    time.Duration
}

// NewRedisCache returns a cache, or a no-op cache when ttl is not positive.
func NewRedisCache(client store, ttl time.Duration) Cache {
	if client == nil || ttl <= 0 {
		return Noop{}
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*types.CartView, error) {
	data, err := r.client.Get(ctx, r.client.CartCacheKey(userID))
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var view types.CartView
	if err := json.Unmarshal([]byte(data), &view); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &view, nil
}

// Generation returns the current token for userID, minting one when absent.
func (r *RedisCache) Generation(ctx context.Context, userID string) (string, error) {
	key := r.client.CartCacheGenerationKey(userID)
	current, err := r.client.Get(ctx, key)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("redis get generation failed: %w", err)
	}
	minted := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, minted, r.generationTTL())
	if err != nil {
		return "", fmt.Errorf("redis set generation failed: %w", err)
	}
	if ok {
		return minted, nil
	}
	current, err = r.client.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("redis get generation failed: %w", err)
	}
	return current, nil
}

// Set stores view unless the generation moved since it was read.
func (r *RedisCache) Set(ctx context.Context, userID, generation string, view *types.CartView) error {
	if generation == "" {
		return nil
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if _, err := r.client.SetIfEqual(ctx, r.client.CartCacheGenerationKey(userID), generation, r.client.CartCacheKey(userID), string(payload), r.ttl); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete moves the generation first and then drops the view.
func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Set(ctx, r.client.CartCacheGenerationKey(userID), uuid.NewString(), r.generationTTL()); err != nil {
		return fmt.Errorf("redis bump generation failed: %w", err)
	}
	if err := r.client.Del(ctx, r.client.CartCacheKey(userID)); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache) generationTTL() time.Duration {
	return r.ttl * generationTTLFactor
}

// Noop never caches.
type Noop struct{}

func (Noop) Get(context.Context, string) (*types.CartView, error) { return nil, ErrCacheMiss }
func (Noop) Generation(context.Context, string) (string, error) { return "", nil }
func (Noop) Set(context.Context, string, string, *types.CartView) error { return nil }
func (Noop) Delete(context.Context, string) error { return nil }
