package engine

import (
	"strings"
	"time"

	"github.com/ManuelReschke/ChatFox/internal/pkg/env"
	"github.com/ManuelReschke/ChatFox/internal/pkg/inbound"
	"github.com/ManuelReschke/ChatFox/internal/pkg/notify"
	"github.com/ManuelReschke/ChatFox/internal/pkg/presence"
	"github.com/ManuelReschke/ChatFox/internal/pkg/usage"
)

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// Config holds the engine settings read from the environment
type Config struct {
	Storage           string
	UsageCacheTTL     time.Duration
	PresenceTimeout   time.Duration
	Workers           int
	ReconcileInterval time.Duration
	PruneInterval     time.Duration
	InboundSubject    string
	EventsSubject     string
	WebhookSecret     string
}

// ConfigFromEnv reads APP_STORAGE, USAGE_CACHE_TTL, PRESENCE_TIMEOUT,
// JOBQUEUE_WORKERS, QUOTA_RECONCILE_INTERVAL, PRESENCE_PRUNE_INTERVAL,
// NATS_INBOUND_SUBJECT, NATS_EVENTS_SUBJECT and PROVIDER_WEBHOOK_SECRET.
func ConfigFromEnv() Config {
	return Config{
		Storage:           strings.ToLower(env.GetEnv("APP_STORAGE", StorageMySQL)),
		UsageCacheTTL:     env.GetEnvDuration("USAGE_CACHE_TTL", usage.DefaultCacheTTL),
		PresenceTimeout:   presence.ClampTimeout(env.GetEnvDuration("PRESENCE_TIMEOUT", presence.DefaultTimeout)),
		Workers:           env.GetEnvInt("JOBQUEUE_WORKERS", 3),
		ReconcileInterval: env.GetEnvDuration("QUOTA_RECONCILE_INTERVAL", time.Minute),
		PruneInterval:     env.GetEnvDuration("PRESENCE_PRUNE_INTERVAL", 15*time.Second),
		InboundSubject:    env.GetEnv("NATS_INBOUND_SUBJECT", inbound.DefaultSubject),
		EventsSubject:     env.GetEnv("NATS_EVENTS_SUBJECT", notify.DefaultEventsSubject),
		WebhookSecret:     env.GetEnv("PROVIDER_WEBHOOK_SECRET", ""),
	}
}
