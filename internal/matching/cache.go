package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ScoreCache caches computed compatibility scores in Redis keyed by the
// unordered pair and the catalog version. Catalog bumps invalidate
// implicitly through the key; answer changes invalidate explicitly.
type ScoreCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewScoreCache(client *redis.Client, ttl time.Duration) *ScoreCache {
	return &ScoreCache{client: client, ttl: ttl}
}

func cacheKey(userA, userB, catalogVersion int64) string {
	lo, hi := userA, userB
	if lo > hi {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("compat:%d:%d:v%d", lo, hi, catalogVersion)
}

// Get returns the cached score for an unordered pair, if present
func (c *ScoreCache) Get(ctx context.Context, userA, userB, catalogVersion int64) (*Score, error) {
	data, err := c.client.Get(ctx, cacheKey(userA, userB, catalogVersion)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var score Score
	if err := json.Unmarshal(data, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// Set stores a computed score
func (c *ScoreCache) Set(ctx context.Context, userA, userB int64, score *Score) error {
	data, err := json.Marshal(score)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(userA, userB, score.CatalogVersion), data, c.ttl).Err()
}

// InvalidateUser drops every cached score involving the given user.
// Called when the user re-answers a questionnaire field.
func (c *ScoreCache) InvalidateUser(ctx context.Context, userID int64) error {
	patterns := []string{
		fmt.Sprintf("compat:%d:*", userID),
		fmt.Sprintf("compat:*:%d:v*", userID),
	}

	for _, pattern := range patterns {
		var cursor uint64
		for {
			keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := c.client.Del(ctx, keys...).Err(); err != nil {
					return err
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}

	return nil
}
