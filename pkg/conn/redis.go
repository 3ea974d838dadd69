package conn

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
)

// RedisOption defines connection options for Redis.
type RedisOption struct {
	Host     string
	Port     int
	Password string
	DB       int
	URL      string
}

// Redis wraps a Redis client handle.
type Redis struct {
	opt RedisOption
	rdb *redis.Client
}

// NewRedis creates a Redis client from the provided options. The URL
// form takes precedence when set.
func NewRedis(option RedisOption) (*Redis, error) {
	var opts *redis.Options
	if option.URL != "" {
		parsed, err := redis.ParseURL(option.URL)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		host := option.Host
		if host == "" {
			host = defaultRedisHost
		}
		port := option.Port
		if port == 0 {
			port = defaultRedisPort
		}
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", host, port),
			Password: option.Password,
			DB:       option.DB,
		}
	}

	return &Redis{opt: option, rdb: redis.NewClient(opts)}, nil
}

// DB returns the underlying redis client.
func (c *Redis) DB() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

// Ping verifies the connection is live.
func (c *Redis) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return redis.ErrClosed
	}
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (c *Redis) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
