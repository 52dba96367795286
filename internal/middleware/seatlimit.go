package middleware

import (
    "context"
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/seatsync/internal/config"
    "github.com/iliyamo/seatsync/pkg/logger"
)

// Decision is the outcome of taking one token from a bucket.
type Decision struct {
    Allowed   bool
    Remaining int64
    RetryIn   time.Duration
}

// Buckets hands out tokens from named buckets.
type Buckets interface {
    Take(ctx context.Context, key string, now time.Time) (Decision, error)
}

// takeToken refills the bucket continuously at one token per every_ms and
// takes one.  Tokens are kept fractional so refill does not drift.
var takeToken = redis.NewScript(`
local burst = tonumber(ARGV[2])
local every = tonumber(ARGV[3])
local now = tonumber(ARGV[1])
local b = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens = tonumber(b[1]) or burst
local at = tonumber(b[2]) or now
if now > at then
  tokens = math.min(burst, tokens + (now - at) / every)
  at = now
end
local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) * every)
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'at', at)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
if wait == 0 then
  return {1, math.floor(tokens), 0}
end
return {0, 0, wait}
`)

// RedisBuckets keeps the buckets in Redis hashes, so every replica draws on
// the same budget.
type RedisBuckets struct {
    rdb   *redis.Client
    limit config.SeatLimit
}

// NewRedisBuckets returns buckets sized by limit.
func NewRedisBuckets(rdb *redis.Client, limit config.SeatLimit) *RedisBuckets {
    return &RedisBuckets{rdb: rdb, limit: limit}
}

// Take runs the bucket script for key.
func (b *RedisBuckets) Take(ctx context.Context, key string, now time.Time) (Decision, error) {
    args := []interface{}{now.UnixMilli(), b.limit.Burst, b.limit.Every.Milliseconds(), b.limit.Idle.Milliseconds()}
    vals, err := takeToken.Run(ctx, b.rdb, []string{key}, args...).Int64Slice()
    if err != nil {
        return Decision{}, err
    }
    if len(vals) != 3 {
        return Decision{}, fmt.Errorf("seat limit script returned %d values", len(vals))
    }
    return Decision{Allowed: vals[0] == 1, Remaining: vals[1], RetryIn: time.Duration(vals[2]) * time.Millisecond}, nil
}

// SeatLimit throttles seat mutations per holder and showing.  It passes every
// request when the limit is disabled or buckets is nil, and when a bucket
// cannot be read.
func SeatLimit(limit config.SeatLimit, buckets Buckets, log *logger.Logger) echo.MiddlewareFunc {
    if !limit.Enabled || buckets == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := seatKey(limit.Prefix, c)
            d, err := buckets.Take(c.Request().Context(), key, time.Now())
            if err != nil {
                log.WithShowing(c.Param("id")).Warn("seat limit unavailable", "seat", c.Param("seat"), "error", err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
            if d.Allowed {
                return next(c)
            }

            secs := int(math.Ceil(d.RetryIn.Seconds()))
            h.Set("Retry-After", strconv.Itoa(secs))
            log.WithShowing(c.Param("id")).Info("seat mutation throttled", "seat", c.Param("seat"), "key", key)
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "rate_limited",
                "message":     "too many seat requests for this showing",
                "retry_after": secs,
            })
        }
    }
}

// seatKey names the bucket of the caller for the showing in the route.
// Callers without a holder identity share a bucket per client address.
func seatKey(prefix string, c echo.Context) string {
    who := []string{"holder", HolderID(c)}
    if who[1] == "" {
        who = []string{"ip", c.RealIP()}
    }
    return strings.Join(append([]string{prefix, "showing", c.Param("id")}, who...), ":")
}
