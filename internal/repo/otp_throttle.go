package repo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeThrottle limits how often a login code can be requested per address.
type CodeThrottle interface {
	// Allow reserves the next send slot for email and reports whether the
	// caller may send now.
	Allow(ctx context.Context, email string) (bool, error)
	// Release frees a slot taken by Allow when the send did not happen.
	Release(ctx context.Context, email string) error
}

type redisThrottle struct {
	rdb      *redis.Client
	cooldown time.Duration
}

func NewRedisThrottle(rdb *redis.Client, cooldown time.Duration) CodeThrottle {
	return &redisThrottle{rdb: rdb, cooldown: cooldown}
}

func (t *redisThrottle) Allow(ctx context.Context, email string) (bool, error) {
	if t.cooldown <= 0 {
		return true, nil
	}
	return t.rdb.SetNX(ctx, cooldownKey(email), 1, t.cooldown).Result()
}

func (t *redisThrottle) Release(ctx context.Context, email string) error {
	if t.cooldown <= 0 {
		return nil
	}
	return t.rdb.Del(ctx, cooldownKey(email)).Err()
}

func cooldownKey(email string) string {
	return "otp:cooldown:" + email
}
