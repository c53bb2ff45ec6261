package entitlements

import (
	"sort"

	"github.com/ManuelReschke/ChatFox/app/models"
)

// Classification is the quota state of a resource.
type Classification string

const (
	Allowed   Classification = "allowed"
	NearLimit Classification = "near_limit"
	Blocked   Classification = "blocked"
)

// NearLimitRatio is the usage share from which a resource is reported as near its limit.
const NearLimitRatio = 0.8

// Usage is the consumption of one resource against the active plan.
// HasPlan is false when the tenant has no active subscription; Max is 0 then.
type Usage struct {
	Resource Resource `json:"resource"`
	Current  int64    `json:"current"`
	Max      int64    `json:"max"`
	HasPlan  bool     `json:"has_plan"`
}

// Classification returns the quota state of the usage.
func (u Usage) Classification() Classification {
	return Classify(u.Current, u.Max)
}

// Remaining returns how many more units fit under the limit.
func (u Usage) Remaining() int64 {
	if u.Current >= u.Max {
		return 0
	}
	return u.Max - u.Current
}

// Classify maps current/max to Allowed, NearLimit or Blocked.
func Classify(current, max int64) Classification {
	if current >= max {
		return Blocked
	}
	if float64(current)/float64(max) >= NearLimitRatio {
		return NearLimit
	}
	return Allowed
}

// CheckCreate decides whether one more unit of the resource may be created.
// Campaign creation is never blocked; only sending is.
func CheckCreate(u Usage) error {
	if u.Resource == ResourceCampaigns {
		return nil
	}
	return check(u)
}

// CheckCampaignSend decides whether a campaign may move to the sent state.
func CheckCampaignSend(u Usage) error {
	return check(u)
}

func check(u Usage) error {
	if !u.HasPlan {
		return ErrNoActivePlan
	}
	if Classify(u.Current, u.Max) == Blocked {
		return &QuotaExceededError{Resource: u.Resource, Current: u.Current, Max: u.Max}
	}
	return nil
}

// SelectVisible keeps the max most recently active conversations visible and
// reports the rest as blocked. Blocked conversations are not deleted; they come
// back as soon as the tenant upgrades or the set shrinks. Input order is irrelevant.
func SelectVisible(conversations []models.Conversation, max int64) (visible, blocked []models.Conversation) {
	sorted := make([]models.Conversation, len(conversations))
	copy(sorted, conversations)
	SortByActivity(sorted)

	if max < 0 {
		max = 0
	}
	if int64(len(sorted)) <= max {
		return sorted, []models.Conversation{}
	}
	return sorted[:max], sorted[max:]
}

// SortByActivity orders conversations newest first. Equal timestamps fall
// back to the higher ID so the result is deterministic.
func SortByActivity(conversations []models.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		ai, aj := conversations[i].ActivityAt(), conversations[j].ActivityAt()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return conversations[i].ID > conversations[j].ID
	})
}

// VisibleIDs returns the IDs of the conversations SelectVisible keeps.
func VisibleIDs(conversations []models.Conversation, max int64) map[uint]struct{} {
	visible, _ := SelectVisible(conversations, max)
	ids := make(map[uint]struct{}, len(visible))
	for _, c := range visible {
		ids[c.ID] = struct{}{}
	}
	return ids
}
