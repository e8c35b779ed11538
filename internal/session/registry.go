package session

import (
	"sync"
)

// RenderRegistry tracks renderer-owned instances (waveform views, preview
// players) keyed by stable segment id. It replaces ad hoc global registries:
// the rendering adapter binds instances here and the session rebinds them
// when a pending id is reconciled to a server-assigned one, so lookups never
// dangle across the id swap.
type RenderRegistry struct {
	mu        sync.RWMutex
	instances map[string]any
}

// NewRenderRegistry returns an empty registry
func NewRenderRegistry() *RenderRegistry {
	return &RenderRegistry{instances: map[string]any{}}
}

// Bind associates a renderer instance with a segment id, replacing any
// previous binding
func (r *RenderRegistry) Bind(segmentID string, instance any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[segmentID] = instance
}

// Lookup returns the instance bound to a segment id
func (r *RenderRegistry) Lookup(segmentID string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[segmentID]
	return inst, ok
}

// Rebind moves a binding from a temporary id to its reconciled server id.
// Returns false when nothing was bound under the old id.
func (r *RenderRegistry) Rebind(oldID, newID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[oldID]
	if !ok {
		return false
	}
	delete(r.instances, oldID)
	r.instances[newID] = inst
	return true
}

// Release drops the binding for a deleted segment
func (r *RenderRegistry) Release(segmentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, segmentID)
}

// Len returns the number of live bindings
func (r *RenderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}
