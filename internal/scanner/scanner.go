// Package scanner defines the scraping strategy contract and the
// name-keyed registry used to select a strategy at run time.
package scanner

import (
	"context"
	"sync"

	"upscan/internal/model"
	"upscan/internal/settings"
)

// Scanner runs one complete scan and returns the normalized profile.
type Scanner interface {
	Run(ctx context.Context) (*model.Profile, error)
}

// Creator builds a Scanner from per-scanner settings. One Creator is
// registered per supported site.
type Creator interface {
	Create(s settings.ScannerSettings) (Scanner, error)
}

// Registry maps scanner names to their creators. Registration happens at
// process start; resolution of an unknown name is a typed *NotFoundError,
// never a raw map miss.
type Registry struct {
	mu       sync.RWMutex
	creators map[string]Creator
}

func NewRegistry() *Registry {
	return &Registry{creators: map[string]Creator{}}
}

// Register adds a named creator. Registering the same name twice
// overwrites the previous entry.
func (r *Registry) Register(name string, c Creator) {
	if name == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creators[name] = c
}

// Resolve returns the creator registered under name.
func (r *Registry) Resolve(name string) (Creator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.creators[name]
	if !ok {
		return nil, &NotFoundError{What: "scanner " + name}
	}
	return c, nil
}

// Names returns the registered scanner names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.creators))
	for k := range r.creators {
		out = append(out, k)
	}
	return out
}
