// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesAppended counts stored messages by direction.
	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatfox",
		Subsystem: "conversation",
		Name:      "messages_appended_total",
		Help:      "Total messages stored by direction.",
	}, []string{"direction"})

	// PreviewRepairs counts conversations whose cached preview was recomputed.
	PreviewRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatfox",
		Subsystem: "conversation",
		Name:      "preview_repairs_total",
		Help:      "Conversation previews marked stale or repaired.",
	}, []string{"stage"})

	// QuotaDecisions counts quota checks by resource and classification.
	QuotaDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatfox",
		Subsystem: "quota",
		Name:      "decisions_total",
		Help:      "Quota decisions by resource kind and classification.",
	}, []string{"resource", "classification"})

	// UsageLookups counts ledger reads by cache outcome.
	UsageLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatfox",
		Subsystem: "usage",
		Name:      "lookups_total",
		Help:      "Usage ledger lookups by cache result (hit, shared, miss, recompute).",
	}, []string{"result"})

	// BotTransitions counts responder state changes.
	BotTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatfox",
		Subsystem: "botgate",
		Name:      "transitions_total",
		Help:      "Bot enable/disable transitions by kind.",
	}, []string{"kind"})

	// PresenceActive tracks presence records seen by the last prune.
	PresenceActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatfox",
		Subsystem: "presence",
		Name:      "active_records",
		Help:      "Presence records alive after the last prune.",
	})

	// EventsPublished counts notification events by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatfox",
		Subsystem: "notify",
		Name:      "events_published_total",
		Help:      "Events published on the notification bridge by type.",
	}, []string{"type"})

	// EventsDropped counts deliveries skipped because a subscriber was too slow.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatfox",
		Subsystem: "notify",
		Name:      "events_dropped_total",
		Help:      "Events dropped for slow subscribers.",
	})

	// ProviderRequests counts outbound provider calls by outcome.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatfox",
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Messaging provider requests by outcome.",
	}, []string{"outcome"})

	// ProviderDuration tracks provider send latency including retries.
	ProviderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chatfox",
		Subsystem: "provider",
		Name:      "send_duration_seconds",
		Help:      "Provider send duration in seconds including retries.",
		Buckets:   prometheus.DefBuckets,
	})

	// JobsProcessed counts background jobs by type and outcome.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatfox",
		Subsystem: "jobqueue",
		Name:      "jobs_processed_total",
		Help:      "Background jobs processed by type and status.",
	}, []string{"type", "status"})
)
