package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"courier/internal/middleware"
	"courier/internal/observability"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

var errStaleGeneration = errors.New("cache generation moved during fetch")

// CacheAside tries Redis first, on miss it calls fetch (which should populate dest),
// then stores the result in Redis with ttl. fetch must write into dest.
// A zero ttl bypasses the cache. Redis failures degrade to a direct fetch.
func CacheAside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	return cacheAside(ctx, key, "", dest, ttl, fetch)
}

// CacheAsideGuarded is CacheAside for keys with a generation counter. The
// fetched value is written only if genKey still holds the value it had
// before fetch ran, so an invalidation that lands mid-fetch wins.
func CacheAsideGuarded(ctx context.Context, key, genKey string, dest any, ttl time.Duration, fetch func() error) error {
	return cacheAside(ctx, key, genKey, dest, ttl, fetch)
}

func cacheAside(ctx context.Context, key, genKey string, dest any, ttl time.Duration, fetch func() error) error {
	if ttl <= 0 {
		return fetch()
	}

	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed, loading from source",
			slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		observability.CharacterCacheResults.WithLabelValues("hit").Inc()
		return nil
	}
	observability.CharacterCacheResults.WithLabelValues("miss").Inc()

	var gen string
	if genKey != "" && client != nil {
		if gen, err = generation(ctx, client, genKey); err != nil {
			// no baseline to compare against, so don't write
			return fetch()
		}
	}

	if err := fetch(); err != nil {
		return err
	}

	// Store into cache (best-effort)
	if genKey == "" {
		err = SetJSON(ctx, key, dest, ttl)
	} else {
		err = setIfGeneration(ctx, key, genKey, gen, dest, ttl)
	}
	switch {
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		observability.CharacterCacheResults.WithLabelValues("stale").Inc()
	case err != nil:
		middleware.Logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, c getter, genKey string) (string, error) {
	gen, err := c.Get(ctx, genKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return gen, err
}

// setIfGeneration writes v under WATCH so a concurrent bump aborts the write.
func setIfGeneration(ctx context.Context, key, genKey, want string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generation(ctx, tx, genKey)
		if err != nil {
			return err
		}
		if current != want {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, genKey)
}
