package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/orchestrator/redis"
)

// Activation is the persisted activation state of one trigger.
type Activation struct {
	Active    bool      `json:"active"`
	ChangedAt time.Time `json:"changed_at"`
}

// ActivationStore persists operator start/stop decisions.
type ActivationStore interface {
	// Load returns nil when nothing was stored for name.
	Load(ctx context.Context, name string) (*Activation, error)
	Save(ctx context.Context, name string, a Activation) error
}

// MemoryActivationStore keeps activation state for the process lifetime.
type MemoryActivationStore struct {
	mu     sync.RWMutex
	states map[string]Activation
}

// NewMemoryActivationStore creates an empty in-memory store.
func NewMemoryActivationStore() *MemoryActivationStore {
	return &MemoryActivationStore{states: make(map[string]Activation)}
}

func (s *MemoryActivationStore) Load(_ context.Context, name string) (*Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.states[name]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *MemoryActivationStore) Save(_ context.Context, name string, a Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[name] = a
	return nil
}

// RedisActivationStore keeps activation state in Redis as JSON values under
// "<prefix>:<trigger name>".
type RedisActivationStore struct {
	store *redis.TypedStore[Activation]
}

// NewRedisActivationStore creates a store using keys "<prefix>:<name>".
func NewRedisActivationStore(client *redis.Client, prefix string) *RedisActivationStore {
	return &RedisActivationStore{store: redis.NewTypedStore[Activation](client, prefix)}
}

func (s *RedisActivationStore) Load(ctx context.Context, name string) (*Activation, error) {
	return s.store.Load(ctx, name)
}

func (s *RedisActivationStore) Save(ctx context.Context, name string, a Activation) error {
	return s.store.Save(ctx, name, &a, 0)
}
