package httpx

import (
	"context"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"
)

const (
	// limiterKeyPrefix namespaces counters so the limiter can share a Redis
	// instance with other VeHosts state.
	limiterKeyPrefix = "vehosts:ratelimit:"
	// limiterCallTimeout caps each Redis round trip; the limiter sits on the
	// hot path of every dashboard request.
	limiterCallTimeout = 250 * time.Millisecond
)

// redisLimiter implements fixed windows with INCR+EXPIRE counters, letting
// multiple api replicas enforce one shared budget per caller.
type redisLimiter struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisRateLimiter connects to Redis and verifies it with a ping before
// handing back a limiter.
func NewRedisRateLimiter(addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisLimiter{client: client, logger: logger}, nil
}

// Allow counts the request against the caller's current window. Redis errors
// fail open: losing rate limiting briefly beats refusing dashboard traffic.
func (rl *redisLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), limiterCallTimeout)
	defer cancel()

	counterKey := limiterKeyPrefix + key
	counter, err := rl.client.Incr(ctx, counterKey).Result()
	if err != nil {
		rl.logRedisError("incr", err)
		return rateDecision{allowed: true}
	}
	if counter == 1 {
		if err := rl.client.Expire(ctx, counterKey, window).Err(); err != nil {
			rl.logRedisError("expire", err)
		}
	}
	ttl, err := rl.client.TTL(ctx, counterKey).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}
	return rateDecision{
		allowed:   int(counter) <= limit,
		count:     int(counter),
		windowEnd: time.Now().Add(ttl),
	}
}

func (rl *redisLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *redisLimiter) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "op", op, "error", err)
}
