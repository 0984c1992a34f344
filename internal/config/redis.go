package config

import (
    "context"
    "crypto/tls"
    "errors"
    "fmt"
    "net"
    "time"

    "github.com/redis/go-redis/v9"
)

// ErrRedisDisabled is returned by NewRedisClient when REDIS_ENABLED is false.
var ErrRedisDisabled = errors.New("redis disabled")

// RedisConfig locates the Redis server shared by the rate limiter and the
// live negotiation feed.
type RedisConfig struct {
    Enabled     bool
    Addr        string // host:port
    Password    string
    DB          int
    TLS         bool
    PingTimeout time.Duration
}

// LoadRedisConfig reads REDIS_ENABLED, REDIS_HOST/REDIS_PORT (or REDIS_ADDR),
// REDIS_PASSWORD, REDIS_DB, REDIS_TLS and REDIS_PING_TIMEOUT.  HOST and PORT
// win over ADDR when both are set.
func LoadRedisConfig() RedisConfig {
    addr := getenv("REDIS_ADDR", "localhost:6379")
    if host, port := getenv("REDIS_HOST", ""), getenv("REDIS_PORT", ""); host != "" && port != "" {
        addr = net.JoinHostPort(host, port)
    }
    return RedisConfig{
        Enabled:     envBool("REDIS_ENABLED", true),
        Addr:        addr,
        Password:    getenv("REDIS_PASSWORD", ""),
        DB:          envInt("REDIS_DB", 0),
        TLS:         envBool("REDIS_TLS", false),
        PingTimeout: envDur("REDIS_PING_TIMEOUT", 2*time.Second),
    }
}

// NewRedisClient connects and pings.  Redis is optional for the service, so
// callers treat any error as "run without Redis": the limiter stays in
// process and the live feed is skipped.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
    if !cfg.Enabled {
        return nil, ErrRedisDisabled
    }
    opts := &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
    if cfg.TLS {
        host, _, err := net.SplitHostPort(cfg.Addr)
        if err != nil {
            host = cfg.Addr
        }
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
    }
    client := redis.NewClient(opts)
    pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
    defer cancel()
    if err := client.Ping(pingCtx).Err(); err != nil {
        _ = client.Close()
        return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
    }
    return client, nil
}
