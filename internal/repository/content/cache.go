package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/party/internal/repository/room"
)

type iContentRepo interface {
	GetContent(ctx context.Context, ref room.ContentRef) (room.Content, error)
}

type cache struct {
	next   iContentRepo
	rc     *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache wraps a lookup with a Redis read-through cache. Misses of the
// wrapped lookup are not cached.
func NewCache(next iContentRepo, rc *redis.Client, ttl time.Duration, logger *slog.Logger) *cache {
	return &cache{
		next:   next,
		rc:     rc,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *cache) getKey(kind, id string) string {
	return "content:" + kind + ":" + id
}

func (c *cache) GetContent(ctx context.Context, ref room.ContentRef) (room.Content, error) {
	kind, id := ref.Kind()
	if kind == "" {
		return room.Content{}, ErrContentNotFound
	}

	key := c.getKey(kind, id)
	raw, err := c.rc.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var content room.Content
		if err := json.Unmarshal(raw, &content); err == nil {
			c.logger.DebugContext(ctx, "cache hit", "key", key)
			return content, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.InfoContext(ctx, "failed to read content cache", "error", err)
	}

	content, err := c.next.GetContent(ctx, ref)
	if err != nil {
		return room.Content{}, err
	}

	raw, err = json.Marshal(content)
	if err != nil {
		return room.Content{}, fmt.Errorf("failed to encode content: %w", err)
	}

	if err := c.rc.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.InfoContext(ctx, "failed to write content cache", "error", err)
	}

	return content, nil
}
