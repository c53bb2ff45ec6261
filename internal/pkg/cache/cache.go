package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuelReschke/ChatFox/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// SetupCache builds the shared client from CACHE_* settings. An unreachable
// server is only logged: the engine falls back to in-process stores.
func SetupCache() {
	client = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379")),
		Password:     env.GetEnv("CACHE_PASSWORD", ""),
		DB:           env.GetEnvInt("CACHE_DB", 0),
		DialTimeout:  2 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("[Cache] Could not connect to %s: %v", client.Options().Addr, err)
		return
	}
	log.Infof("[Cache] Connected to %s (db %d)", client.Options().Addr, client.Options().DB)
}

// GetClient returns the shared client, creating it on first use.
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

func Ping(ctx context.Context) error {
	return GetClient().Ping(ctx).Err()
}
