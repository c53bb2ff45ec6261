package entitlements

import (
	"fmt"
	"strings"

	"github.com/ManuelReschke/ChatFox/app/models"
)

// Resource identifies a quota-bounded resource kind.
type Resource string

const (
	ResourceInstances     Resource = "instances"
	ResourceContacts      Resource = "contacts"
	ResourceCampaigns     Resource = "campaigns"
	ResourceConversations Resource = "conversations"
	ResourceMessages      Resource = "messages"
)

// AllResources lists every resource kind in display order.
var AllResources = []Resource{
	ResourceInstances,
	ResourceContacts,
	ResourceCampaigns,
	ResourceConversations,
	ResourceMessages,
}

// ParseResource normalizes a resource name coming from a URL or config.
func ParseResource(s string) (Resource, error) {
	r := Resource(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllResources {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// LimitFor returns the plan maximum for the resource. A nil plan allows nothing.
func LimitFor(plan *models.Plan, r Resource) int64 {
	if plan == nil {
		return 0
	}
	switch r {
	case ResourceInstances:
		return plan.MaxInstances
	case ResourceContacts:
		return plan.MaxContacts
	case ResourceCampaigns:
		return plan.MaxCampaigns
	case ResourceConversations:
		return plan.MaxConversations
	case ResourceMessages:
		return plan.MaxMessages
	default:
		return 0
	}
}
