package server

import (
	"sort"
	"sync"
)

// Registry is the set of usernames currently connected.
type Registry struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// TryRegister adds name if nobody holds it yet and reports whether it did.
func (r *Registry) TryRegister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[name]; taken {
		return false
	}
	r.names[name] = struct{}{}
	return true
}

// Unregister frees name. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.names, name)
}

func (r *Registry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.names[name]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// Names returns a sorted snapshot of the registered usernames.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}
