package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"
)

const redisKeyPrefix = "intake:rl:"

// Redis is a sliding-window limiter backed by a Redis sorted set per key,
// so the window is shared across gateway processes. Each admission is a
// member scored by its arrival time; the window is pruned on every check.
type Redis struct {
	rdb goredis.UniversalClient
	now func() time.Time
}

var _ Limiter = (*Redis)(nil)

// NewRedis creates a Redis-backed limiter from a Grove KV store.
func NewRedis(store *kv.Store) *Redis {
	return &Redis{
		rdb: redisdriver.UnwrapClient(store),
		now: time.Now,
	}
}

// Allow implements Limiter.
func (l *Redis) Allow(ctx context.Context, key string, limit int, period time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	now := l.now()
	rkey := redisKeyPrefix + key
	member := strconv.FormatInt(now.UnixNano(), 10)
	cutoff := float64(now.Add(-period).UnixNano()) / 1e9

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "0", strconv.FormatFloat(cutoff, 'f', -1, 64))
	pipe.ZAdd(ctx, rkey, goredis.Z{Score: float64(now.UnixNano()) / 1e9, Member: member})
	card := pipe.ZCard(ctx, rkey)
	pipe.Expire(ctx, rkey, period)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit: redis window update: %w", err)
	}

	if card.Val() > int64(limit) {
		// Over the window. Take this admission back out so a rejected
		// request does not consume budget.
		if err := l.rdb.ZRem(ctx, rkey, member).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: redis window rollback: %w", err)
		}
		return false, nil
	}

	return true, nil
}

// Reset implements Limiter.
func (l *Redis) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, redisKeyPrefix+key).Err()
}
