package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"courier/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	CharactersKeyPrefix    = "messengers:user:%d"
	CharactersGenKeyPrefix = "messengers:user:%d:gen"

	// generations only need to outlive the slowest projection
	generationTTL = 24 * time.Hour
)

// CharactersKey holds the projected messenger list for one user.
func CharactersKey(userID uint) string {
	return fmt.Sprintf(CharactersKeyPrefix, userID)
}

// CharactersGenerationKey is bumped on every invalidation of CharactersKey.
// A projection computed under an older generation is never written back.
func CharactersGenerationKey(userID uint) string {
	return fmt.Sprintf(CharactersGenKeyPrefix, userID)
}

// InvalidateCharacters drops the projection for every listed user. Both parties of
// a connection see the same messenger, so transitions pass sender and recipient.
// The generation bump and the delete commit together.
func InvalidateCharacters(ctx context.Context, userIDs ...uint) {
	if client == nil {
		return
	}
	var keys []string
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			if id == 0 {
				continue
			}
			gen := CharactersGenerationKey(id)
			pipe.Incr(ctx, gen)
			pipe.Expire(ctx, gen, generationTTL)
			pipe.Del(ctx, CharactersKey(id))
			keys = append(keys, CharactersKey(id))
		}
		return nil
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed",
			slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}
