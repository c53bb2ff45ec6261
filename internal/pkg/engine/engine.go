// Package engine wires the messaging engine components together.
package engine

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/ChatFox/app/repository"
	"github.com/ManuelReschke/ChatFox/app/repository/memory"
	"github.com/ManuelReschke/ChatFox/internal/pkg/billing"
	"github.com/ManuelReschke/ChatFox/internal/pkg/botgate"
	"github.com/ManuelReschke/ChatFox/internal/pkg/cache"
	"github.com/ManuelReschke/ChatFox/internal/pkg/conversation"
	"github.com/ManuelReschke/ChatFox/internal/pkg/database"
	"github.com/ManuelReschke/ChatFox/internal/pkg/inbound"
	"github.com/ManuelReschke/ChatFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/ChatFox/internal/pkg/natsx"
	"github.com/ManuelReschke/ChatFox/internal/pkg/notify"
	"github.com/ManuelReschke/ChatFox/internal/pkg/presence"
	"github.com/ManuelReschke/ChatFox/internal/pkg/provider"
	"github.com/ManuelReschke/ChatFox/internal/pkg/resources"
	"github.com/ManuelReschke/ChatFox/internal/pkg/usage"
)

// Deps are the external connections. Redis and NATS are optional.
type Deps struct {
	Repos    *repository.Repositories
	Redis    *redis.Client
	NATS     *nats.Conn
	Provider provider.Client
}

// Engine holds every service of a node
type Engine struct {
	Config        Config
	Repos         *repository.Repositories
	Redis         *redis.Client
	Billing       *billing.Service
	Ledger        *usage.Ledger
	Bots          *botgate.Gate
	Conversations *conversation.Service
	Resources     *resources.Service
	Presence      *presence.Hub
	Bridge        *notify.Bridge
	Provider      provider.Client
	Jobs          *jobqueue.Manager
	Reconciler    *jobqueue.Reconciler

	nc      *nats.Conn
	relay   *notify.NATSRelay
	inbound *inbound.Consumer
}

// New wires the services on top of the given connections.
func New(cfg Config, deps Deps) *Engine {
	if deps.Provider == nil {
		deps.Provider = provider.LogClient{}
	}
	e := &Engine{
		Config:   cfg,
		Repos:    deps.Repos,
		Redis:    deps.Redis,
		Provider: deps.Provider,
		Bridge:   notify.NewBridge(),
		nc:       deps.NATS,
	}

	e.Billing = billing.NewServiceFromRepositories(deps.Repos)
	e.Ledger = usage.NewLedger(deps.Repos.Usage, e.Billing, cfg.UsageCacheTTL)
	e.Bots = botgate.NewGate(deps.Repos.Bot, e.Bridge)
	e.Conversations = conversation.NewService(conversation.Config{
		Conversations: deps.Repos.Conversation,
		Messages:      deps.Repos.Message,
		Usage:         e.Ledger,
		Bots:          e.Bots,
		Provider:      deps.Provider,
		Publisher:     e.Bridge,
	})
	e.Resources = resources.NewService(deps.Repos.Resource, e.Ledger)
	e.Reconciler = jobqueue.NewReconciler(deps.Repos.Bot, e.Ledger, e.Bots)

	var store presence.Store = presence.NewMemoryStore()
	var queue *jobqueue.Queue
	if deps.Redis != nil {
		e.Ledger.WithRedis(deps.Redis)
		store = presence.NewRedisStore(deps.Redis, 2*cfg.PresenceTimeout)
		queue = jobqueue.NewQueue(deps.Redis, cfg.Workers, jobqueue.Handlers{
			Bots:          e.Bots,
			Conversations: e.Conversations,
			Quotas:        e.Conversations,
		})
		e.Bots.SetRetryScheduler(queue)
		e.Conversations.SetRepairScheduler(queue)
		e.Conversations.SetRecomputeScheduler(queue)
	}
	e.Presence = presence.NewHub(store, e.Bridge, cfg.PresenceTimeout)

	e.Jobs = jobqueue.NewManager(queue, e.Reconciler, e.Presence, repository.NewQueueRepository(deps.Redis), jobqueue.ManagerConfig{
		ReconcileInterval: cfg.ReconcileInterval,
		PruneInterval:     cfg.PruneInterval,
	})

	// a plan change can lift or lower every limit at once
	e.Billing.OnChange(e.planChanged)
	return e
}

func (e *Engine) planChanged(tenantID uint) {
	e.Ledger.Invalidate(tenantID)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	restored, err := e.Reconciler.ReconcileTenant(ctx, tenantID)
	if err != nil {
		log.Warnf("[Engine] Reconcile after plan change of tenant %d failed: %v", tenantID, err)
		return
	}
	if restored {
		log.Infof("[Engine] Tenant %d back under quota after plan change", tenantID)
	}
}

// Start launches background work and the NATS consumers.
func (e *Engine) Start() error {
	if e.nc != nil {
		e.relay = notify.NewNATSRelay(e.nc, e.Config.EventsSubject, e.Bridge)
		if err := e.relay.Start(); err != nil {
			return err
		}
		e.inbound = inbound.NewConsumer(e.nc, e.Config.InboundSubject, e.Conversations)
		if err := e.inbound.Start(); err != nil {
			e.relay.Stop()
			return err
		}
	}
	e.Jobs.Start()
	return nil
}

// Stop shuts background work down.
func (e *Engine) Stop() {
	if e.inbound != nil {
		e.inbound.Stop()
	}
	if e.relay != nil {
		e.relay.Stop()
	}
	e.Jobs.Stop()
	if e.nc != nil {
		e.nc.Close()
	}
}

// Setup opens the connections named by the environment and wires the engine.
// Redis and NATS are used when reachable; storage is MySQL unless
// APP_STORAGE=memory.
func Setup(cfg Config) *Engine {
	deps := Deps{Provider: provider.NewClientFromEnv()}

	switch cfg.Storage {
	case StorageMemory:
		log.Warn("[Engine] Using in-memory storage, data is lost on restart")
		deps.Repos = memory.NewRepositories()
	default:
		database.SetupDatabase()
		repository.InitializeFactory(database.GetDB())
		deps.Repos = repository.GetGlobalRepositories()
	}

	cache.SetupCache()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err == nil {
		deps.Redis = cache.GetClient()
	} else {
		log.Warnf("[Engine] Redis unavailable, running without job queue and shared caches: %v", err)
	}

	if natsCfg := natsx.ConfigFromEnv(); len(natsCfg.Servers) > 0 {
		nc, err := natsx.Connect(natsCfg)
		if err != nil {
			log.Warnf("[Engine] NATS unavailable, inbound events only via webhook: %v", err)
		} else {
			deps.NATS = nc
		}
	}

	return New(cfg, deps)
}
