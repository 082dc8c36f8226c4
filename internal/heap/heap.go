// Package heap implements the identity map: exactly one Node per tracked
// entity, stored in an arena indexed by NodeID.
//
// Entities are keyed by identity, so they must be pointers (or other
// comparable handles). Traversals over cyclic graphs terminate through the
// per-node visited sets, never through pointer identity.
package heap

import (
	"github.com/roach88/uow/internal/ir"
)

// Heap tracks entity state.
// It is not safe for concurrent use; callers serialize queue cycles.
type Heap struct {
	nodes    []*Node
	entities []any
	index    map[any]NodeID
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{index: make(map[any]NodeID)}
}

// Get returns the node tracked for entity.
func (h *Heap) Get(entity any) (*Node, bool) {
	id, ok := h.index[entity]
	if !ok {
		return nil, false
	}
	return h.nodes[id], true
}

// Has reports whether entity is tracked.
func (h *Heap) Has(entity any) bool {
	_, ok := h.index[entity]
	return ok
}

// Attach tracks entity with node. Re-attaching replaces the previous node.
func (h *Heap) Attach(entity any, node *Node) {
	if id, ok := h.index[entity]; ok {
		node.id = id
		h.nodes[id] = node
		return
	}
	node.id = NodeID(len(h.nodes))
	h.nodes = append(h.nodes, node)
	h.entities = append(h.entities, entity)
	h.index[entity] = node.id
}

// Detach stops tracking entity. The arena slot is left empty.
func (h *Heap) Detach(entity any) {
	id, ok := h.index[entity]
	if !ok {
		return
	}
	h.nodes[id].id = -1
	h.nodes[id] = nil
	h.entities[id] = nil
	delete(h.index, entity)
}

// Node returns the node in an arena slot.
func (h *Heap) Node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(h.nodes) || h.nodes[id] == nil {
		return nil, false
	}
	return h.nodes[id], true
}

// Entity returns the entity in an arena slot.
func (h *Heap) Entity(id NodeID) (any, bool) {
	if id < 0 || int(id) >= len(h.entities) || h.entities[id] == nil {
		return nil, false
	}
	return h.entities[id], true
}

// Find returns the tracked entity of role whose snapshot holds value in
// column. Null values never match.
func (h *Heap) Find(role, column string, value ir.Value) (any, bool) {
	if ir.IsNull(value) {
		return nil, false
	}
	for id, node := range h.nodes {
		if node == nil || node.role != role {
			continue
		}
		if ir.Equal(node.Get(column), value) {
			return h.entities[id], true
		}
	}
	return nil, false
}

// Select returns every tracked entity of role whose snapshot matches all
// scope columns, in attach order. Null scope values never match.
func (h *Heap) Select(role string, scope ir.Row) []any {
	var out []any
	for id, node := range h.nodes {
		if node == nil || node.role != role || !matches(node, scope) {
			continue
		}
		out = append(out, h.entities[id])
	}
	return out
}

func matches(node *Node, scope ir.Row) bool {
	for col, v := range scope {
		if ir.IsNull(v) || !ir.Equal(node.Get(col), v) {
			return false
		}
	}
	return true
}

// BeginCycle clears every visited set. Called at the start of each
// top-level queue call.
func (h *Heap) BeginCycle() {
	for _, node := range h.nodes {
		if node != nil {
			node.ResetVisited()
		}
	}
}

// Len returns the number of tracked entities.
func (h *Heap) Len() int { return len(h.index) }

// Clean detaches everything.
func (h *Heap) Clean() {
	for _, node := range h.nodes {
		if node != nil {
			node.id = -1
		}
	}
	h.nodes = nil
	h.entities = nil
	h.index = make(map[any]NodeID)
}
