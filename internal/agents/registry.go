package agents

import "github.com/talgya/crisis-grid/internal/world"

// Registry holds live agents in registration order with an id index.
// Iteration order is the registration order and never changes except by removal.
type Registry struct {
	order []*Agent
	index map[AgentID]*Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[AgentID]*Agent)}
}

// Add registers an agent. Adding a duplicate id is ignored and returns false.
func (r *Registry) Add(a *Agent) bool {
	if _, exists := r.index[a.ID]; exists {
		return false
	}
	r.order = append(r.order, a)
	r.index[a.ID] = a
	return true
}

// Get returns the agent with the given id, or nil.
func (r *Registry) Get(id AgentID) *Agent {
	return r.index[id]
}

// Len returns the number of live agents.
func (r *Registry) Len() int {
	return len(r.order)
}

// All returns the live agents in registration order. The slice is shared;
// callers must not mutate it.
func (r *Registry) All() []*Agent {
	return r.order
}

// OfKind returns live agents of one kind in registration order.
func (r *Registry) OfKind(k Kind) []*Agent {
	var out []*Agent
	for _, a := range r.order {
		if a.Kind == k {
			out = append(out, a)
		}
	}
	return out
}

// SurvivorAt returns the first active survivor on p in registration order, or nil.
func (r *Registry) SurvivorAt(p world.Position) *Agent {
	for _, a := range r.order {
		if a.Active() && a.Position == p {
			return a
		}
	}
	return nil
}

// RemoveAll drops every listed id in one pass, preserving the order of the
// rest. Ids not present are ignored. Returns how many agents were removed.
func (r *Registry) RemoveAll(ids []AgentID) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[AgentID]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.index[id]; ok {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return 0
	}
	kept := r.order[:0]
	for _, a := range r.order {
		if drop[a.ID] {
			delete(r.index, a.ID)
			continue
		}
		kept = append(kept, a)
	}
	// Clear the tail so removed agents are not retained by the backing array.
	for i := len(kept); i < len(r.order); i++ {
		r.order[i] = nil
	}
	r.order = kept
	return len(drop)
}

// Remove drops a single agent. Removing an absent id is a no-op.
func (r *Registry) Remove(id AgentID) bool {
	return r.RemoveAll([]AgentID{id}) == 1
}
