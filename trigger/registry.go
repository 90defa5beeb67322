package trigger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/logger"
)

// Registry owns the loaded triggers and their activation state.
type Registry struct {
	mu       sync.RWMutex
	triggers map[string]*Trigger
	store    ActivationStore
	log      *logger.Logger
	now      func() time.Time
}

// NewRegistry creates a registry. A nil store keeps activation in memory.
func NewRegistry(store ActivationStore, log *logger.Logger) *Registry {
	if store == nil {
		store = NewMemoryActivationStore()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{
		triggers: make(map[string]*Trigger),
		store:    store,
		log:      log.WithComponent("triggers"),
		now:      time.Now,
	}
}

// Add registers a trigger. If the store holds a persisted activation for
// it, that state replaces the definition's initial state.
func (r *Registry) Add(ctx context.Context, t *Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.triggers[t.Name()]; exists {
		return apperrors.AlreadyExists("trigger " + t.Name())
	}

	persisted, err := r.store.Load(ctx, t.Name())
	if err != nil {
		return fmt.Errorf("load activation for %s: %w", t.Name(), err)
	}
	if persisted != nil {
		t.setActive(persisted.Active)
	}

	r.triggers[t.Name()] = t
	return nil
}

// Get retrieves a trigger by name.
func (r *Registry) Get(name string) (*Trigger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.triggers[name]
	return t, ok
}

// List returns all triggers sorted by name.
func (r *Registry) List() []*Trigger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Trigger, 0, len(r.triggers))
	for _, t := range r.triggers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Activate starts a trigger. It takes effect on the next scheduler tick.
func (r *Registry) Activate(ctx context.Context, name string) error {
	return r.setActive(ctx, name, true)
}

// Deactivate stops a trigger. Runs already started are not affected.
func (r *Registry) Deactivate(ctx context.Context, name string) error {
	return r.setActive(ctx, name, false)
}

func (r *Registry) setActive(ctx context.Context, name string, active bool) error {
	t, ok := r.Get(name)
	if !ok {
		return apperrors.NotFound("trigger", name)
	}

	if err := r.store.Save(ctx, name, Activation{Active: active, ChangedAt: r.now().UTC()}); err != nil {
		return apperrors.ServiceUnavailable("activation store").WithCause(err)
	}
	if t.setActive(active) {
		r.log.Info("Trigger activation changed", logger.Fields(logger.FieldTrigger, name, "active", active))
	}
	return nil
}
