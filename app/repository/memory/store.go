// Package memory keeps every repository in process memory. It backs the
// APP_STORAGE=memory mode and the service tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/ChatFox/app/models"
	"github.com/ManuelReschke/ChatFox/app/repository"
	"gorm.io/gorm"
)

// Store holds the tables shared by the in-memory repositories.
type Store struct {
	mu sync.RWMutex

	seq map[string]uint

	users         map[uint]models.User
	operators     map[uint]models.Operator
	plans         map[uint]models.Plan
	subscriptions map[uint]models.Subscription
	instances     map[uint]models.Instance
	contacts      map[uint]models.Contact
	campaigns     map[uint]models.Campaign
	conversations map[uint]models.Conversation
	messages      map[uint]models.Message
	suppressions  map[uint]models.BotSuppression
	tenantStates  map[uint]models.TenantBotState

	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		seq:           map[string]uint{},
		users:         map[uint]models.User{},
		operators:     map[uint]models.Operator{},
		plans:         map[uint]models.Plan{},
		subscriptions: map[uint]models.Subscription{},
		instances:     map[uint]models.Instance{},
		contacts:      map[uint]models.Contact{},
		campaigns:     map[uint]models.Campaign{},
		conversations: map[uint]models.Conversation{},
		messages:      map[uint]models.Message{},
		suppressions:  map[uint]models.BotSuppression{},
		tenantStates:  map[uint]models.TenantBotState{},
		now:           time.Now,
	}
}

// NewRepositories returns a repository set backed by a fresh store
func NewRepositories() *repository.Repositories {
	return NewStore().Repositories()
}

// Repositories wires every repository interface to this store
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:         &userRepository{s},
		Operator:     &operatorRepository{s},
		Plan:         &planRepository{s},
		Subscription: &subscriptionRepository{s},
		Resource:     &resourceRepository{s},
		Usage:        &usageRepository{s},
		Conversation: &conversationRepository{s},
		Message:      &messageRepository{s},
		Bot:          &botRepository{s},
	}
}

// SetClock overrides the time source for autoCreateTime style fields
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// next must be called with mu held
func (s *Store) next(table string) uint {
	s.seq[table]++
	return s.seq[table]
}

func notFound() error {
	return gorm.ErrRecordNotFound
}

func duplicate() error {
	return gorm.ErrDuplicatedKey
}

func sortedKeys[T any](m map[uint]T) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
