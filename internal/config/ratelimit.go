package config

import (
    "strings"
    "time"
)

// RateLimitConfig describes the token bucket applied to negotiation
// mutations.  Buckets live in Redis when a client is available and in
// process memory otherwise.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int           // bucket size (burst)
    RefillTokens   int           // tokens added every RefillInterval
    RefillInterval time.Duration
    TTL            time.Duration // idle buckets expire after TTL
    KeyStrategy    string        // "actor", "ip" or "actor_route"
    Prefix         string        // Redis key prefix
    Debug          bool          // expose X-RateLimit-* headers
}

// PerSecond returns the refill rate in tokens per second.
func (c RateLimitConfig) PerSecond() float64 {
    return float64(c.RefillTokens) / c.RefillInterval.Seconds()
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables.  Out-of-range
// values are clamped and an unknown key strategy falls back to actor_route.
func LoadRateLimitConfig() RateLimitConfig {
    rl := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    strings.ToLower(getenv("RATE_LIMIT_KEY_STRATEGY", "actor_route")),
        Prefix:         getenv("RATE_LIMIT_PREFIX", "rl:neg"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    // RATE_LIMIT_BURST is the older name of the capacity setting
    if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
        rl.Capacity = b
    }
    rl.Capacity = max(rl.Capacity, 1)
    rl.RefillTokens = max(rl.RefillTokens, 1)
    if rl.RefillInterval <= 0 {
        rl.RefillInterval = time.Second
    }
    switch rl.KeyStrategy {
    case "actor", "ip", "actor_route":
    default:
        rl.KeyStrategy = "actor_route"
    }
    // a bucket must outlive a full refill or idle actors get a fresh burst early
    rl.TTL = max(rl.TTL, time.Duration(rl.Capacity/rl.RefillTokens+1)*rl.RefillInterval)
    return rl
}
