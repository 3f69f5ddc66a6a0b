package httpx

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	redisRateLimitPrefix  = "carebase:ratelimit:"
	redisRateLimitTimeout = 250 * time.Millisecond
)

type redisRateLimiter struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisRateLimiter returns a limiter shared by every API instance using the
// same Redis database. It fails when Redis does not answer a ping.
func NewRedisRateLimiter(ctx context.Context, opts *redis.Options, logger *slog.Logger) (RateLimiter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisRateLimiter{
		client: client,
		logger: logger.With("component", "rate_limiter"),
		now:    time.Now,
	}, nil
}

// Allow increments the window counter and sets its expiry in one MULTI block.
func (rl *redisRateLimiter) Allow(ctx context.Context, key string, policy RatePolicy) RateDecision {
	if policy.Limit <= 0 {
		return RateDecision{Allowed: true}
	}
	ctx, cancel := context.WithTimeout(ctx, redisRateLimitTimeout)
	defer cancel()

	redisKey := redisRateLimitPrefix + key
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, policy.window())
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		rl.logger.Warn("rate limit check failed, allowing request", "error", err)
		return RateDecision{Allowed: true}
	}
	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = policy.window()
	}
	count := int(incr.Val())
	return RateDecision{
		Allowed: count <= policy.Limit,
		Count:   count,
		Reset:   rl.now().Add(remaining),
	}
}

func (rl *redisRateLimiter) Close() {
	if err := rl.client.Close(); err != nil {
		rl.logger.Warn("close redis rate limiter", "error", err)
	}
}
