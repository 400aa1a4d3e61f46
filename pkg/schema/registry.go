package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds registered models by name.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register validates a model declaration, builds its accessor table, and
// makes it visible to lookups. Registering the same name twice is an error.
func (r *Registry) Register(m *Model) error {
	if err := m.validate(); err != nil {
		return fmt.Errorf("register model: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.models[m.Name]; dup {
		return fmt.Errorf("register model: %s already registered", m.Name)
	}
	r.models[m.Name] = m
	return nil
}

// Get returns the named model or an error if it is not registered.
func (r *Registry) Get(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("model `%s` does not exist", name)
	}
	return m, nil
}

// All returns every registered model, sorted by name.
func (r *Registry) All() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models
}
