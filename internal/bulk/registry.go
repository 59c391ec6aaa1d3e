package bulk

import (
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Registry remembers which admin built which archive. It lives in memory
// only; archives outliving a restart can no longer be downloaded and are
// removed by the next cleanup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

type registryEntry struct {
	owner     primitive.ObjectID
	createdAt time.Time
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

func (r *Registry) Record(name string, owner primitive.ObjectID, at time.Time) {
	r.mu.Lock()
	r.entries[name] = registryEntry{owner: owner, createdAt: at}
	r.mu.Unlock()
}

// Owns reports whether name was built by owner
func (r *Registry) Owns(name string, owner primitive.ObjectID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return ok && e.owner == owner
}

func (r *Registry) Forget(name string) {
	r.mu.Lock()
	delete(r.entries, name)
	r.mu.Unlock()
}

// Prune drops entries created before cutoff and returns how many it removed
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for name, e := range r.entries {
		if e.createdAt.Before(cutoff) {
			delete(r.entries, name)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
