package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisWindow is the shared sliding window: hits live in a per-key sorted
// set scored by unix-nano timestamp, so multiple gateway instances enforce
// one combined limit.
type RedisWindow struct {
	client *redis.Client
	policy Policy
	now    func() time.Time
}

// NewRedisWindow builds a Redis-backed limiter with the given policy.
func NewRedisWindow(client *redis.Client, policy Policy) *RedisWindow {
	return &RedisWindow{
		client: client,
		policy: policy,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (l *RedisWindow) WithClock(now func() time.Time) *RedisWindow {
	l.now = now
	return l
}

// Allow decides admission in one transaction: the hit is recorded first,
// then counted, so two concurrent requests can never both claim the last
// slot. An over-limit hit is removed again and does not consume the window.
func (l *RedisWindow) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	cutoff := now.Add(-l.policy.Window).UnixNano()
	member := uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	})
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.Expire(ctx, key, l.policy.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit check: %w", err)
	}

	count := int(countCmd.Val())
	if count <= l.policy.Limit {
		return Decision{Allowed: true, Remaining: l.policy.Limit - count}, nil
	}

	if err := l.client.ZRem(ctx, key, member).Err(); err != nil {
		return Decision{}, fmt.Errorf("rate limit rollback: %w", err)
	}

	retry := l.policy.Window
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		oldestAt := time.Unix(0, int64(oldest[0].Score))
		retry = oldestAt.Add(l.policy.Window).Sub(now)
	}
	if retry < time.Second {
		retry = time.Second
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}
