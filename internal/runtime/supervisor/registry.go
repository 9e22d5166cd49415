package supervisor

import (
	"sort"
	"sync"
)

// Registry tracks the supervisors of long-running components by name.
// Components recreate their supervisor on every Start, so the registry
// stores accessors rather than pointers.
type Registry struct {
	mu sync.RWMutex
	m  map[string]func() *Supervisor
}

func NewRegistry() *Registry {
	return &Registry{m: map[string]func() *Supervisor{}}
}

// Register sets (or replaces) the accessor for name. A nil get deletes it.
func (r *Registry) Register(name string, get func() *Supervisor) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if get == nil {
		delete(r.m, name)
		return
	}
	r.m[name] = get
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Counters snapshots every running supervisor. Stopped components are omitted.
func (r *Registry) Counters() map[string]Counters {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Counters, len(r.m))
	for name, get := range r.m {
		if s := get(); s != nil {
			out[name] = s.Counters()
		}
	}
	return out
}
