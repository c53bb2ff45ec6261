// Package cachetest finds a reachable Redis for integration tests and skips
// the test when there is none.
package cachetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ManuelReschke/ChatFox/internal/pkg/env"
	"github.com/redis/go-redis/v9"
)

// Client returns a client on an isolated, flushed database. The database is
// flushed again when the test ends.
func Client(t *testing.T, db int) *redis.Client {
	t.Helper()

	hosts := unique(env.GetEnv("CACHE_HOST", ""), "cache", "chatfox-cache", "localhost", "127.0.0.1")
	ports := unique(env.GetEnv("CACHE_PORT", "6379"), "6379")
	passwords := unique(env.GetEnv("CACHE_PASSWORD", ""), "")

	var lastErr error
	for _, host := range hosts {
		if host == "" {
			continue
		}
		for _, port := range ports {
			for _, password := range passwords {
				client := redis.NewClient(&redis.Options{
					Addr:     fmt.Sprintf("%s:%s", host, port),
					Password: password,
					DB:       db,
				})

				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				err := client.Ping(ctx).Err()
				if err == nil {
					err = client.FlushDB(ctx).Err()
				}
				cancel()
				if err == nil {
					t.Cleanup(func() {
						_ = client.FlushDB(context.Background()).Err()
						_ = client.Close()
					})
					return client
				}
				_ = client.Close()
				lastErr = err
			}
		}
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", lastErr)
	return nil
}

func unique(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
