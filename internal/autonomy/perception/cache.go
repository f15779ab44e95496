// Package perception turns sensor streams into located target poses for the active leg.
package perception

import (
	"sync"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/pkg/geo"
)

// Binding identifies one activation of a leg. Epoch grows with every activation, so two activations of
// legs with the same name (for example in consecutive missions) never share a binding.
type Binding struct {
	Leg   core.Leg
	Epoch uint64
}

type entry struct {
	pose  geo.LatLng
	epoch uint64
}

// Cache maps leg names to the latest absolute pose of the leg's located target.
//
// Sensor handlers read the active binding, convert their observation and call Record with that binding.
// Record is rejected once the binding is no longer the active one, and Lookup only returns entries
// written under the active binding, so an observation for a finished leg is never seen by the next.
type Cache struct {
	mu      sync.RWMutex
	epoch   uint64
	active  *core.Leg
	entries map[string]entry
}

// NewCache returns an empty cache with no active leg.
func NewCache() *Cache {
	return &Cache{entries: map[string]entry{}}
}

// Activate makes leg the active leg and forgets any earlier pose recorded under its name.
func (c *Cache) Activate(leg core.Leg) Binding {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.active = &leg
	delete(c.entries, leg.Name)
	return Binding{Leg: leg, Epoch: c.epoch}
}

// Deactivate clears the active leg if b is still the active binding.
func (c *Cache) Deactivate(b Binding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.epoch != b.Epoch {
		return
	}
	c.epoch++
	c.active = nil
}

// ActiveLeg returns the active binding, if a leg is active.
func (c *Cache) ActiveLeg() (Binding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.active == nil {
		return Binding{}, false
	}
	return Binding{Leg: *c.active, Epoch: c.epoch}, true
}

// Record stores pose for the leg of b. It returns false, and stores nothing, when b is stale.
func (c *Cache) Record(b Binding, pose geo.LatLng) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.epoch != b.Epoch || c.active.Name != b.Leg.Name {
		return false
	}
	c.entries[b.Leg.Name] = entry{pose: pose, epoch: b.Epoch}
	return true
}

// Lookup returns the latest pose recorded for legName while it is the active leg.
func (c *Cache) Lookup(legName string) (geo.LatLng, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.active == nil || c.active.Name != legName {
		return geo.LatLng{}, false
	}
	e, ok := c.entries[legName]
	if !ok || e.epoch != c.epoch {
		return geo.LatLng{}, false
	}
	return e.pose, true
}
