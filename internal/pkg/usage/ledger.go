// Package usage computes how much of each plan quota a tenant consumes.
package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuelReschke/ChatFox/app/repository"
	"github.com/ManuelReschke/ChatFox/internal/pkg/billing"
	"github.com/ManuelReschke/ChatFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/ChatFox/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheTTL = 5 * time.Second

type cacheKey struct {
	tenant   uint
	resource entitlements.Resource
}

type cacheEntry struct {
	usage   entitlements.Usage
	expires time.Time
	gen     uint64
}

// Ledger derives usage from the stored rows and caches it for a short TTL.
// Figures may lag behind writes by at most the TTL unless Recompute is used.
// Every count takes a generation number when it starts; the cache only
// accepts results newer than what it holds, so a slow count never replaces
// a fresher one.
type Ledger struct {
	counter repository.UsageRepository
	catalog billing.Catalog
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	floor   map[uint]uint64
	group   singleflight.Group
	gen     atomic.Uint64

	rdb *redis.Client
}

// NewLedger creates a ledger. A ttl <= 0 disables caching.
func NewLedger(counter repository.UsageRepository, catalog billing.Catalog, ttl time.Duration) *Ledger {
	return &Ledger{
		counter: counter,
		catalog: catalog,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
		floor:   make(map[uint]uint64),
	}
}

// WithRedis shares cached figures between nodes through Redis.
func (l *Ledger) WithRedis(rdb *redis.Client) *Ledger {
	l.rdb = rdb
	return l
}

// SetClock overrides the time source, used by tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Usage returns the tenant's usage of a resource, served from cache when fresh.
func (l *Ledger) Usage(ctx context.Context, tenantID uint, resource entitlements.Resource) (entitlements.Usage, error) {
	key := cacheKey{tenant: tenantID, resource: resource}
	if u, ok := l.cached(key); ok {
		metrics.UsageLookups.WithLabelValues("hit").Inc()
		return u, nil
	}
	if u, ok := l.cachedRemote(ctx, key); ok {
		metrics.UsageLookups.WithLabelValues("hit").Inc()
		l.store(key, u)
		return u, nil
	}
	return l.load(ctx, key)
}

// Recompute counts now, outside any in-flight lookup, so the result includes
// every row written before the call. Callers that just wrote a row rely on it.
func (l *Ledger) Recompute(ctx context.Context, tenantID uint, resource entitlements.Resource) (entitlements.Usage, error) {
	metrics.UsageLookups.WithLabelValues("recompute").Inc()
	return l.fresh(ctx, cacheKey{tenant: tenantID, resource: resource})
}

// Snapshot returns the usage of every resource kind of a tenant.
func (l *Ledger) Snapshot(ctx context.Context, tenantID uint) (map[entitlements.Resource]entitlements.Usage, error) {
	var mu sync.Mutex
	out := make(map[entitlements.Resource]entitlements.Usage, len(entitlements.AllResources))
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range entitlements.AllResources {
		r := r
		g.Go(func() error {
			u, err := l.Usage(gctx, tenantID, r)
			if err != nil {
				return err
			}
			mu.Lock()
			out[r] = u
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops every cached figure of a tenant.
func (l *Ledger) Invalidate(tenantID uint) {
	l.mu.Lock()
	for key := range l.entries {
		if key.tenant == tenantID {
			delete(l.entries, key)
		}
	}
	// counts already running were started under the old plan
	l.floor[tenantID] = l.gen.Load()
	l.mu.Unlock()

	if l.rdb != nil {
		keys := make([]string, 0, len(entitlements.AllResources))
		for _, r := range entitlements.AllResources {
			keys = append(keys, redisKey(cacheKey{tenant: tenantID, resource: r}))
		}
		if err := l.rdb.Del(context.Background(), keys...).Err(); err != nil {
			log.Warnf("[Usage] Failed to drop shared cache for tenant %d: %v", tenantID, err)
		}
	}
}

func (l *Ledger) load(ctx context.Context, key cacheKey) (entitlements.Usage, error) {
	sfKey := fmt.Sprintf("%d:%s", key.tenant, key.resource)
	v, err, shared := l.group.Do(sfKey, func() (interface{}, error) {
		return l.fresh(ctx, key)
	})
	if err != nil {
		return entitlements.Usage{}, err
	}
	if shared {
		metrics.UsageLookups.WithLabelValues("shared").Inc()
	} else {
		metrics.UsageLookups.WithLabelValues("miss").Inc()
	}
	return v.(entitlements.Usage), nil
}

func (l *Ledger) fresh(ctx context.Context, key cacheKey) (entitlements.Usage, error) {
	gen := l.gen.Add(1)
	u, err := l.compute(ctx, key.tenant, key.resource)
	if err != nil {
		return entitlements.Usage{}, err
	}
	if l.storeGen(key, u, gen) {
		l.storeRemote(ctx, key, u)
	}
	return u, nil
}

func (l *Ledger) compute(ctx context.Context, tenantID uint, resource entitlements.Resource) (entitlements.Usage, error) {
	now := l.now()
	plan, sub, err := l.catalog.ActivePlan(ctx, tenantID, now)
	if err != nil {
		return entitlements.Usage{}, fmt.Errorf("resolve plan: %w", err)
	}

	u := entitlements.Usage{Resource: resource, HasPlan: plan != nil}
	u.Max = entitlements.LimitFor(plan, resource)

	switch resource {
	case entitlements.ResourceInstances:
		u.Current, err = l.counter.CountInstances(ctx, tenantID)
	case entitlements.ResourceContacts:
		u.Current, err = l.counter.CountContacts(ctx, tenantID)
	case entitlements.ResourceCampaigns:
		u.Current, err = l.counter.CountSentCampaigns(ctx, tenantID)
	case entitlements.ResourceConversations:
		u.Current, err = l.counter.CountConversations(ctx, tenantID)
	case entitlements.ResourceMessages:
		// messages are counted per plan period; without a plan there is no
		// period and nothing is allowed anyway
		if sub == nil {
			return u, nil
		}
		u.Current, err = l.counter.CountInboundMessages(ctx, tenantID, sub.StartsAt)
	default:
		return entitlements.Usage{}, errors.New("unknown resource kind")
	}
	if err != nil {
		return entitlements.Usage{}, fmt.Errorf("count %s: %w", resource, err)
	}
	return u, nil
}

func (l *Ledger) cached(key cacheKey) (entitlements.Usage, bool) {
	if l.ttl <= 0 {
		return entitlements.Usage{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok || !l.now().Before(e.expires) {
		return entitlements.Usage{}, false
	}
	return e.usage, true
}

// store caches a figure read from the shared cache. It counts as the newest
// generation seen so far.
func (l *Ledger) store(key cacheKey, u entitlements.Usage) {
	l.storeGen(key, u, l.gen.Load())
}

// storeGen reports whether u replaced the cached figure.
func (l *Ledger) storeGen(key cacheKey, u entitlements.Usage, gen uint64) bool {
	if l.ttl <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen <= l.floor[key.tenant] {
		return false
	}
	if e, ok := l.entries[key]; ok && e.gen > gen {
		return false
	}
	l.entries[key] = cacheEntry{usage: u, expires: l.now().Add(l.ttl), gen: gen}
	return true
}
