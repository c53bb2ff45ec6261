package repository

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

type queueRepository struct {
	rdb *redis.Client
}

// NewQueueRepository inspects job queue keys on rdb. Returns nil without a client.
func NewQueueRepository(rdb *redis.Client) QueueRepository {
	if rdb == nil {
		return nil
	}
	return &queueRepository{rdb: rdb}
}

func (r *queueRepository) ListLength(ctx context.Context, key string) (int64, error) {
	return r.rdb.LLen(ctx, key).Result()
}

// ScanKeys walks SCAN for every pattern and returns the sorted union.
func (r *queueRepository) ScanKeys(ctx context.Context, patterns ...string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		iter := r.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
		for iter.Next(ctx) {
			seen[iter.Val()] = struct{}{}
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteKeys removes keys in pipelined batches and reports how many existed.
func (r *queueRepository) DeleteKeys(ctx context.Context, keys []string) (int64, error) {
	var total int64
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		n, err := r.rdb.Unlink(ctx, keys[start:end]...).Result()
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
