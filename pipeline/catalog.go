package pipeline

import (
	"sort"
	"sync"

	apperrors "github.com/kbukum/orchestrator/errors"
)

// Catalog holds the validated pipelines loaded at startup. Definitions are
// immutable for the lifetime of the process.
type Catalog struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{pipelines: make(map[string]*Pipeline)}
}

// Add validates p and stores a normalized copy under its name.
func (c *Catalog) Add(p *Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.pipelines[p.Name]; exists {
		return apperrors.AlreadyExists("pipeline " + p.Name)
	}
	c.pipelines[p.Name] = p.Normalized()
	return nil
}

// Get retrieves a pipeline by name.
func (c *Catalog) Get(name string) (*Pipeline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pipelines[name]
	return p, ok
}

// Lookup is Get returning a not-found AppError.
func (c *Catalog) Lookup(name string) (*Pipeline, error) {
	if p, ok := c.Get(name); ok {
		return p, nil
	}
	return nil, apperrors.NotFound("pipeline", name)
}

// List returns all pipelines sorted by name.
func (c *Catalog) List() []*Pipeline {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Pipeline, 0, len(c.pipelines))
	for _, p := range c.pipelines {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
