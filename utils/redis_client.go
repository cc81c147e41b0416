package utils

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tidewell/suggestbox/config"
)

var redisClient *redis.Client

// InitRedis connects a Redis client from config. A missing RedisHost leaves the
// client nil; callers must treat a nil client as "no Redis" and fall back.
func InitRedis(cfg config.AppConfig) *redis.Client {
	if cfg.RedisHost == "" {
		return nil
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	// Ping to validate; ignore error to allow fallback paths
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = redisClient.Ping(ctx).Err()
	return redisClient
}

// GetRedis returns the shared client, or nil when Redis is not configured.
func GetRedis() *redis.Client {
	return redisClient
}

// SetRedis overrides the shared client. Used by tests to point the cache and
// stores at a miniredis instance.
func SetRedis(c *redis.Client) {
	redisClient = c
}
