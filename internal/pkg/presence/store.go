package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Role of an operator in a conversation
type Role string

const (
	RolePrimary      Role = "primary"
	RoleCollaborator Role = "collaborator"
	RoleObserver     Role = "observer"
)

// ParseRole falls back to collaborator for unknown values.
func ParseRole(s string) Role {
	switch Role(s) {
	case RolePrimary, RoleObserver:
		return Role(s)
	default:
		return RoleCollaborator
	}
}

// Record is the advisory presence of one operator in one conversation.
type Record struct {
	ConversationID uint      `json:"conversation_id"`
	TenantID       uint      `json:"tenant_id"`
	OperatorID     uint      `json:"operator_id"`
	OperatorName   string    `json:"operator_name"`
	Role           Role      `json:"role"`
	LastSeen       time.Time `json:"last_seen"`
	IsTyping       bool      `json:"is_typing"`
}

// Store persists presence records. Implementations need not be durable.
type Store interface {
	Get(ctx context.Context, conversationID, operatorID uint) (*Record, error)
	Upsert(ctx context.Context, rec Record) error
	Remove(ctx context.Context, conversationID, operatorID uint) (bool, error)
	List(ctx context.Context, conversationID uint) ([]Record, error)
	Conversations(ctx context.Context) ([]uint, error)
	// RemoveStale deletes records last seen before cutoff and returns them.
	RemoveStale(ctx context.Context, conversationID uint, cutoff time.Time) ([]Record, error)
}

// MemoryStore keeps presence in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[uint]map[uint]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[uint]map[uint]Record)}
}

func (s *MemoryStore) Get(_ context.Context, conversationID, operatorID uint) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.convs[conversationID][operatorID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Upsert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.convs[rec.ConversationID] == nil {
		s.convs[rec.ConversationID] = make(map[uint]Record)
	}
	s.convs[rec.ConversationID][rec.OperatorID] = rec
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, conversationID, operatorID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.convs[conversationID]
	if _, ok := recs[operatorID]; !ok {
		return false, nil
	}
	delete(recs, operatorID)
	if len(recs) == 0 {
		delete(s.convs, conversationID)
	}
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, conversationID uint) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.convs[conversationID]))
	for _, rec := range s.convs[conversationID] {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) Conversations(_ context.Context) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint, 0, len(s.convs))
	for id := range s.convs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) RemoveStale(_ context.Context, conversationID uint, cutoff time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []Record
	for opID, rec := range s.convs[conversationID] {
		if rec.LastSeen.Before(cutoff) {
			removed = append(removed, rec)
			delete(s.convs[conversationID], opID)
		}
	}
	if len(s.convs[conversationID]) == 0 {
		delete(s.convs, conversationID)
	}
	return removed, nil
}

// sortRecords orders primary operators first, then by operator id.
func sortRecords(recs []Record) {
	rank := func(r Role) int {
		switch r {
		case RolePrimary:
			return 0
		case RoleCollaborator:
			return 1
		default:
			return 2
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		ri, rj := rank(recs[i].Role), rank(recs[j].Role)
		if ri != rj {
			return ri < rj
		}
		return recs[i].OperatorID < recs[j].OperatorID
	})
}
