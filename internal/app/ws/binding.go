package ws

import "sync"

// BindingTable associates a vehicle name with the riders currently
// receiving its telemetry. A rider is bound to at most one vehicle;
// binding a rider again moves the binding.
type BindingTable struct {
	mu       sync.RWMutex
	vehicles map[string]map[string]bool
	riders   map[string]string
}

func NewBindingTable() *BindingTable {
	return &BindingTable{
		vehicles: make(map[string]map[string]bool),
		riders:   make(map[string]string),
	}
}

// Bind adds rider to vehicle's rider set, releasing any previous
// binding the rider held.
func (b *BindingTable) Bind(vehicle, rider string) {
	if vehicle == "" || rider == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.riders[rider]; ok && prev != vehicle {
		b.removeLocked(prev, rider)
	}
	set, ok := b.vehicles[vehicle]
	if !ok {
		set = make(map[string]bool)
		b.vehicles[vehicle] = set
	}
	set[rider] = true
	b.riders[rider] = vehicle
}

// Unbind removes rider from vehicle's rider set. Unknown pairs are a
// no-op. The vehicle entry is deleted once its set drains so one-shot
// trips do not accumulate.
func (b *BindingTable) Unbind(vehicle, rider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(vehicle, rider)
	if b.riders[rider] == vehicle {
		delete(b.riders, rider)
	}
}

// UnbindRider drops whatever binding the rider holds; called when the
// rider's connection closes.
func (b *BindingTable) UnbindRider(rider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	vehicle, ok := b.riders[rider]
	if !ok {
		return
	}
	b.removeLocked(vehicle, rider)
	delete(b.riders, rider)
}

func (b *BindingTable) removeLocked(vehicle, rider string) {
	set, ok := b.vehicles[vehicle]
	if !ok {
		return
	}
	delete(set, rider)
	if len(set) == 0 {
		delete(b.vehicles, vehicle)
	}
}

// RidersFor returns the riders bound to vehicle; empty for an unknown
// vehicle, never an error.
func (b *BindingTable) RidersFor(vehicle string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	set := b.vehicles[vehicle]
	out := make([]string, 0, len(set))
	for rider := range set {
		out = append(out, rider)
	}
	return out
}

// VehicleFor returns the vehicle the rider is bound to, if any.
func (b *BindingTable) VehicleFor(rider string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.riders[rider]
	return v, ok
}
