package billing

import (
	"strings"

	"github.com/ManuelReschke/ChatFox/app/models"
)

func normalizeInterval(interval string) string {
	i := strings.ToLower(strings.TrimSpace(interval))
	switch i {
	case "month", models.PlanIntervalMonthly:
		return models.PlanIntervalMonthly
	case "quarter", models.PlanIntervalQuarterly:
		return models.PlanIntervalQuarterly
	case "year", models.PlanIntervalYearly:
		return models.PlanIntervalYearly
	case models.PlanIntervalTrial:
		return models.PlanIntervalTrial
	default:
		return "unknown"
	}
}

func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive:
		return true
	default:
		return false
	}
}
