package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects the client used by the idempotency guard and
// the scan rate limiter. Both callers fail open, so a dead Redis at
// boot is the only fatal case.
func NewRedisClient(url, password string, db int) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		// Plain host:port
		opts = &redis.Options{Addr: url}
	}

	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}

	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	log.Println("Successfully connected to Redis")
	return client
}

// RedisHealthCheck backs the /health endpoint.
func RedisHealthCheck(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}
