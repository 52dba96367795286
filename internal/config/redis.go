package config

import (
    "context"
    "crypto/tls"
    "errors"
    "fmt"
    "net"
    "os"

    "github.com/redis/go-redis/v9"
)

// ErrRedisDisabled is returned by Connect when no address is configured.
var ErrRedisDisabled = errors.New("redis not configured")

// RedisSettings locate the Redis instance whose seat limit buckets every
// replica shares.
type RedisSettings struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

// LoadRedisSettings reads REDIS_ADDR, or REDIS_HOST and REDIS_PORT when both
// are set, plus REDIS_PASSWORD, REDIS_DB and REDIS_TLS.
func LoadRedisSettings() RedisSettings {
    s := RedisSettings{
        Addr:     os.Getenv("REDIS_ADDR"),
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
        TLS:      envBool("REDIS_TLS", false),
    }
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        s.Addr = net.JoinHostPort(host, port)
    }
    return s
}

// Connect opens a client and pings it.  The client is closed again when the
// ping fails.
func (s RedisSettings) Connect(ctx context.Context) (*redis.Client, error) {
    if s.Addr == "" {
        return nil, ErrRedisDisabled
    }
    opts := &redis.Options{Addr: s.Addr, Password: s.Password, DB: s.DB}
    if s.TLS {
        host, _, err := net.SplitHostPort(s.Addr)
        if err != nil {
            return nil, fmt.Errorf("redis addr %q: %w", s.Addr, err)
        }
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
    }
    rdb := redis.NewClient(opts)
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("redis ping %s: %w", s.Addr, err)
    }
    return rdb, nil
}
