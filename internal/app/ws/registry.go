package ws

import (
	"sync"

	"ridehub/internal/app/ds"
)

// Registry tracks live connections partitioned by client class, plus a
// rider-identity index. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	classes map[ds.ClientClass]map[*ds.Client]bool
	riders  map[string]*ds.Client
}

func NewRegistry() *Registry {
	return &Registry{
		classes: map[ds.ClientClass]map[*ds.Client]bool{
			ds.ClassRider:    {},
			ds.ClassOperator: {},
			ds.ClassAgent:    {},
		},
		riders: make(map[string]*ds.Client),
	}
}

// Register adds c to its class set. Idempotent.
func (r *Registry) Register(c *ds.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[c.Class][c] = true
}

// BindRider points the rider-identity index at c and returns the
// connection it displaced, if any. The displaced connection is still in
// its class set; the caller decides whether to close it.
func (r *Registry) BindRider(riderID string, c *ds.Client) (displaced *ds.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.riders[riderID]; ok && prev != c {
		displaced = prev
	}
	r.riders[riderID] = c
	return displaced
}

// Unregister removes c from its class set and, if the identity index
// still points at c, from the index too. Returns false when c was not
// registered, so teardown runs at most once per connection.
func (r *Registry) Unregister(c *ds.Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.classes[c.Class]
	if !set[c] {
		return false
	}
	delete(set, c)
	if c.RiderID != "" && r.riders[c.RiderID] == c {
		delete(r.riders, c.RiderID)
	}
	return true
}

// LookupRider returns the live connection for a rider identity.
func (r *Registry) LookupRider(riderID string) (*ds.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.riders[riderID]
	return c, ok
}

// Clients returns a snapshot of one class set, or of every class when
// none is given. Snapshots keep broadcast iteration off the lock.
func (r *Registry) Clients(classes ...ds.ClientClass) []*ds.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(classes) == 0 {
		classes = []ds.ClientClass{ds.ClassRider, ds.ClassOperator, ds.ClassAgent}
	}
	var out []*ds.Client
	for _, class := range classes {
		for c := range r.classes[class] {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of live connections in one class.
func (r *Registry) Count(class ds.ClientClass) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes[class])
}
