package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/library-reservation/internal/config"
	"github.com/iliyamo/library-reservation/internal/metrics"
)

// tokenBucket refills capacity-limited buckets stored as Redis hashes.
// It returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])
	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals * refill_tokens)
			last_refill = last_refill + intervals * interval_ms
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)
	return { allowed, tokens, retry_after_ms }
`)

type bucketResult struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

func parseBucketResult(v interface{}) (bucketResult, error) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 3 {
		return bucketResult{}, fmt.Errorf("unexpected script result %#v", v)
	}
	return bucketResult{
		allowed:   asInt64(arr[0]) == 1,
		remaining: asInt64(arr[1]),
		retry:     time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests per key with a Redis token bucket.  It
// is a pass-through when disabled or when Redis is unavailable, and it
// fails open on Redis errors.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	take := func(ctx context.Context, key string) (bucketResult, error) {
		v, err := tokenBucket.Run(ctx, rdb, []string{key},
			time.Now().UnixMilli(),
			cfg.Capacity,
			cfg.RefillTokens,
			cfg.RefillInterval.Milliseconds(),
			int64(cfg.TTL/time.Second),
		).Result()
		if err != nil {
			return bucketResult{}, err
		}
		return parseBucketResult(v)
	}
	return rateLimit(cfg, take)
}

func rateLimit(cfg config.RateLimitConfig, take func(context.Context, string) (bucketResult, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := take(c.Request().Context(), key)
			if err != nil {
				slog.Warn("rate limiter unavailable", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if !res.allowed {
				secs := int(math.Ceil(res.retry.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				metrics.RateLimited.WithLabelValues(c.Path()).Inc()
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":      "Too many requests",
					"retryAfter": secs,
				})
			}
			return next(c)
		}
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", userKey(c))
	case "route":
		parts = append(parts, "route", route)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", userKey(c), "route", route)
	default:
		parts = append(parts, "ip", ip, "user", userKey(c), "route", route)
	}
	return strings.Join(parts, ":")
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
