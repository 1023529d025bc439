package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds per-client request quotas
type RateLimitConfig struct {
	PerSecond int
	PerMinute int
}

// DefaultRateLimits returns the quotas for the public planner API
func DefaultRateLimits() RateLimitConfig {
	return RateLimitConfig{
		PerSecond: 10,
		PerMinute: 120,
	}
}

// RateLimitMiddleware limits requests per client IP using Redis counters.
// When Redis is unreachable the request passes through; planning must not
// depend on the limiter being up.
func RateLimitMiddleware(rdb *redis.Client, limits RateLimitConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()
		now := time.Now()
		ip := c.IP()

		keySecond := fmt.Sprintf("rl:ip:%s:second:%d", ip, now.Unix())
		keyMinute := fmt.Sprintf("rl:ip:%s:minute:%s", ip, now.Format("2006-01-02T15:04"))

		if limits.PerSecond > 0 {
			countSecond, err := rdb.Incr(ctx, keySecond).Result()
			if err == nil {
				rdb.Expire(ctx, keySecond, 2*time.Second)

				if countSecond > int64(limits.PerSecond) {
					c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limits.PerSecond))
					c.Set("X-RateLimit-Remaining-Second", "0")
					c.Set("Retry-After", "1")

					return c.Status(429).JSON(fiber.Map{
						"error":       "rate_limit_exceeded",
						"message":     "Too many requests per second",
						"limit_type":  "per_second",
						"limit":       limits.PerSecond,
						"retry_after": 1,
					})
				}
			}
		}

		if limits.PerMinute > 0 {
			countMinute, err := rdb.Incr(ctx, keyMinute).Result()
			if err == nil {
				rdb.Expire(ctx, keyMinute, 2*time.Minute)

				if countMinute > int64(limits.PerMinute) {
					retryAfter := 60 - now.Second()

					c.Set("X-RateLimit-Limit-Minute", strconv.Itoa(limits.PerMinute))
					c.Set("X-RateLimit-Remaining-Minute", "0")
					c.Set("Retry-After", strconv.Itoa(retryAfter))

					return c.Status(429).JSON(fiber.Map{
						"error":       "rate_limit_exceeded",
						"message":     "Too many requests per minute",
						"limit_type":  "per_minute",
						"limit":       limits.PerMinute,
						"used":        countMinute,
						"retry_after": retryAfter,
					})
				}

				c.Set("X-RateLimit-Remaining-Minute", strconv.FormatInt(int64(limits.PerMinute)-countMinute, 10))
			}
		}

		c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limits.PerSecond))
		c.Set("X-RateLimit-Limit-Minute", strconv.Itoa(limits.PerMinute))

		return c.Next()
	}
}
