package notifier

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/quant/internal/report"
)

// Registry manages notifier instances
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewRegistry creates a new notifier registry
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
	}
}

// Register adds a notifier to the registry
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier %s already registered", name)
	}

	r.notifiers[name] = n
	return nil
}

// Get retrieves a notifier by name
func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifiers[name]
	if !exists {
		return nil, fmt.Errorf("notifier %s not found", name)
	}
	return n, nil
}

// GetAll returns all registered notifiers, ordered by name
func (r *Registry) GetAll() []Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Notifier, 0, len(r.notifiers))
	for _, n := range r.notifiers {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// NotifyAll sends a run summary to all registered notifiers. A failing
// notifier does not stop the others.
func (r *Registry) NotifyAll(ctx context.Context, s report.Summary) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	errors := make(map[string]error)
	for name, n := range r.notifiers {
		if err := n.Send(ctx, s); err != nil {
			errors[name] = err
		}
	}
	return errors
}

// Build creates and initializes the notifiers named by cfgs.
func Build(cfgs []Config, factories map[string]func() Notifier) (*Registry, error) {
	reg := NewRegistry()
	for _, cfg := range cfgs {
		f, ok := factories[cfg.Type]
		if !ok {
			return nil, fmt.Errorf("unknown notifier type: %s", cfg.Type)
		}
		n := f()
		if err := n.Init(cfg); err != nil {
			return nil, err
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
