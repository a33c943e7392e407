package redis

import (
	"context"
	"encoding/json"
	"time"

	"quiniela-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache keeps the last projected leaderboard per brand so repeated
// reads between recomputes skip the participant store. Writes are best-effort;
// the store stays authoritative.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) Get(ctx context.Context, slug string) (domain.Leaderboard, bool) {
	data, err := c.client.Get(ctx, c.key(slug)).Bytes()
	if err != nil || len(data) == 0 {
		return domain.Leaderboard{}, false
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(data, &lb); err != nil {
		return domain.Leaderboard{}, false
	}
	return lb, true
}

func (c *LeaderboardCache) Set(ctx context.Context, slug string, lb domain.Leaderboard) {
	data, err := json.Marshal(lb)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(slug), data, c.ttl).Err()
}

func (c *LeaderboardCache) Invalidate(ctx context.Context, slug string) {
	_ = c.client.Del(ctx, c.key(slug)).Err()
}

func (c *LeaderboardCache) key(slug string) string {
	return "contest:leaderboard:" + slug
}
