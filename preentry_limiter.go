package goIDP

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// preEntryLimiter is a fixed-window throttle on registration attempts, counted
// per mail address and, when the caller supplied one, per client IP.
type preEntryLimiter struct {
	redis  redis.UniversalClient
	config PreEntryConfig
}

func newPreEntryLimiter(redisClient redis.UniversalClient, cfg PreEntryConfig) *preEntryLimiter {
	return &preEntryLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *preEntryLimiter) Enforce(ctx context.Context, mailAddress, ip string) error {
	if l == nil || !l.config.LimiterEnabled {
		return nil
	}

	if err := l.enforceKey(ctx, "pel:mail:"+mailAddress); err != nil {
		return err
	}
	if ip != "" {
		if err := l.enforceKey(ctx, "pel:ip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *preEntryLimiter) enforceKey(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.LimiterWindow).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}
	}

	if count > int64(l.config.LimiterMax) {
		return ErrPreEntryRateLimited
	}

	return nil
}
