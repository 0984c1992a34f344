package middleware

import (
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "golang.org/x/time/rate"

    "github.com/iliyamo/marketplace-negotiation/internal/config"
    "github.com/iliyamo/marketplace-negotiation/internal/logger"
)

// limiterScript implements a token bucket stored in a Redis hash.  It
// returns {allowed, remaining, retry_after_ms}.
var limiterScript = redis.NewScript(`
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
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// decision is the outcome of one bucket check.
type decision struct {
    allowed   bool
    remaining int64
    retry     time.Duration
}

// localBuckets is the in-process fallback used when Redis is absent or
// failing.  Buckets idle for longer than ttl are evicted lazily.
type localBuckets struct {
    mu      sync.Mutex
    perSec  rate.Limit
    burst   int
    ttl     time.Duration
    buckets map[string]*localBucket
    sweep   time.Time
}

type localBucket struct {
    limiter  *rate.Limiter
    lastSeen time.Time
}

func newLocalBuckets(cfg config.RateLimitConfig) *localBuckets {
    return &localBuckets{
        perSec:  rate.Limit(cfg.PerSecond()),
        burst:   cfg.Capacity,
        ttl:     cfg.TTL,
        buckets: make(map[string]*localBucket),
    }
}

func (l *localBuckets) take(key string, now time.Time) decision {
    l.mu.Lock()
    defer l.mu.Unlock()
    if now.Sub(l.sweep) > l.ttl {
        for k, b := range l.buckets {
            if now.Sub(b.lastSeen) > l.ttl {
                delete(l.buckets, k)
            }
        }
        l.sweep = now
    }
    b, ok := l.buckets[key]
    if !ok {
        b = &localBucket{limiter: rate.NewLimiter(l.perSec, l.burst)}
        l.buckets[key] = b
    }
    b.lastSeen = now
    r := b.limiter.ReserveN(now, 1)
    if !r.OK() {
        return decision{}
    }
    if d := r.DelayFrom(now); d > 0 {
        r.CancelAt(now)
        return decision{retry: d}
    }
    return decision{allowed: true, remaining: int64(b.limiter.TokensAt(now))}
}

// NewTokenBucket limits requests per key (see config.RateLimitConfig.KeyStrategy).
// Buckets are shared through Redis when rdb is non-nil; on any Redis error,
// or without a client, the process-local buckets decide instead.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *logger.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = logger.Discard()
    }
    local := newLocalBuckets(cfg)

    check := func(c echo.Context, key string) decision {
        now := time.Now()
        if rdb == nil {
            return local.take(key, now)
        }
        args := []interface{}{
            now.UnixMilli(),
            cfg.Capacity,
            cfg.RefillTokens,
            cfg.RefillInterval.Milliseconds(),
            int64(math.Ceil(cfg.TTL.Seconds())),
        }
        vals, err := limiterScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
        if err != nil {
            if cfg.Debug {
                log.Warn("ratelimit_redis_error", "key", key, "error", err.Error())
            }
            return local.take(key, now)
        }
        arr, ok := vals.([]interface{})
        if !ok || len(arr) != 3 {
            log.Warn("ratelimit_unexpected_result", "key", key, "result", fmt.Sprintf("%#v", vals))
            return local.take(key, now)
        }
        return decision{
            allowed:   asInt64(arr[0]) == 1,
            remaining: asInt64(arr[1]),
            retry:     time.Duration(asInt64(arr[2])) * time.Millisecond,
        }
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            d := check(c, key)

            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
            if cfg.Debug {
                c.Response().Header().Set("X-RateLimit-Key", key)
            }

            if !d.allowed {
                secs := int(math.Ceil(d.retry.Seconds()))
                if secs < 1 {
                    secs = 1
                }
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                log.WithContext(c.Request().Context()).RateLimitExceeded(key, c.Path())
                return c.JSON(http.StatusTooManyRequests, map[string]any{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
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
    parts := []string{cfg.Prefix}
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "actor":
        parts = append(parts, "actor", rateSubject(c))
    default: // actor_route
        parts = append(parts, "actor", rateSubject(c), "route", c.Request().Method+" "+c.Path())
    }
    return strings.Join(parts, ":")
}
