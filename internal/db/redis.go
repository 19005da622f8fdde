package db

import (
	"context"
	"log"
	"time"

	"backend-mtbtrainer/internal/config"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when redis is not configured or not reachable;
// the snapshot hub and refresh tokens then run without it.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis unreachable at %s: %v", cfg.RedisAddr, err)
		_ = client.Close()
		return nil
	}
	return client
}
