package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuelReschke/ChatFox/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

func redisKey(key cacheKey) string {
	return fmt.Sprintf("usage:%d:%s", key.tenant, key.resource)
}

func (l *Ledger) cachedRemote(ctx context.Context, key cacheKey) (entitlements.Usage, bool) {
	if l.rdb == nil || l.ttl <= 0 {
		return entitlements.Usage{}, false
	}
	raw, err := l.rdb.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debugf("[Usage] Shared cache read failed: %v", err)
		}
		return entitlements.Usage{}, false
	}
	var u entitlements.Usage
	if err := json.Unmarshal(raw, &u); err != nil {
		return entitlements.Usage{}, false
	}
	return u, true
}

func (l *Ledger) storeRemote(ctx context.Context, key cacheKey, u entitlements.Usage) {
	if l.rdb == nil || l.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := l.rdb.Set(ctx, redisKey(key), raw, l.ttl).Err(); err != nil {
		log.Debugf("[Usage] Shared cache write failed: %v", err)
	}
}
