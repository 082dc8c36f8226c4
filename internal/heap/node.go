package heap

import (
	"slices"

	"github.com/roach88/uow/internal/command"
	"github.com/roach88/uow/internal/ir"
)

// NodeID indexes a Node inside its Heap arena.
type NodeID int

// ChangeListener is called after the node snapshot changed.
type ChangeListener func(n *Node)

// Node is the per-entity state tracked by the Heap: lifecycle, last known
// column snapshot, active command, relation slots and the visited set of
// the current queue cycle.
//
// The snapshot is owned by the node. Data returns a copy and every change
// bumps Version, so listeners never observe a half-applied row.
type Node struct {
	id        NodeID
	role      string
	lifecycle Lifecycle
	data      ir.Row
	version   int

	active    command.Command
	relations map[string]any
	visited   map[string]bool
	listeners []*listener
}

type listener struct {
	fn      ChangeListener
	removed bool
}

// NewNode creates a detached node for an entity of the given role.
func NewNode(role string, lifecycle Lifecycle, data ir.Row) *Node {
	return &Node{
		id:        -1,
		role:      role,
		lifecycle: lifecycle,
		data:      data.Clone(),
		relations: make(map[string]any),
		visited:   make(map[string]bool),
	}
}

// ID returns the arena slot, or -1 when the node is not attached.
func (n *Node) ID() NodeID { return n.id }

// Role returns the entity role the node was created for.
func (n *Node) Role() string { return n.role }

// Lifecycle returns the current lifecycle state.
func (n *Node) Lifecycle() Lifecycle { return n.lifecycle }

// SetLifecycle moves the node to a new lifecycle state.
func (n *Node) SetLifecycle(l Lifecycle) { n.lifecycle = l }

// Data returns a copy of the snapshot.
func (n *Node) Data() ir.Row { return n.data.Clone() }

// Get returns one snapshot column, or Null when unknown.
func (n *Node) Get(column string) ir.Value { return n.data.Get(column) }

// Version increments on every snapshot change.
func (n *Node) Version() int { return n.version }

// SetData merges row into the snapshot. Listeners fire when a value changed.
func (n *Node) SetData(row ir.Row) {
	if n.data.Merge(row) {
		n.changed()
	}
}

// ReplaceData swaps the whole snapshot. Listeners fire when it differs.
func (n *Node) ReplaceData(row ir.Row) {
	if n.data.Equal(row) {
		return
	}
	n.data = row.Clone()
	n.changed()
}

func (n *Node) changed() {
	n.version++
	// Listeners registered while firing wait for the next change.
	listeners := n.listeners
	for _, l := range listeners {
		if !l.removed {
			l.fn(n)
		}
	}
}

// OnChange registers a snapshot change listener and returns a function
// that unregisters it.
func (n *Node) OnChange(fn ChangeListener) (cancel func()) {
	l := &listener{fn: fn}
	n.listeners = append(n.listeners, l)
	return func() {
		if l.removed {
			return
		}
		l.removed = true
		n.listeners = slices.DeleteFunc(slices.Clone(n.listeners), func(x *listener) bool { return x == l })
	}
}

// Listeners returns the number of registered change listeners.
func (n *Node) Listeners() int { return len(n.listeners) }

// ActiveCommand returns the in-flight command for this entity, or nil.
func (n *Node) ActiveCommand() command.Command { return n.active }

// SetActiveCommand replaces the in-flight command; nil clears it.
func (n *Node) SetActiveCommand(cmd command.Command) { n.active = cmd }

// HasRelation reports whether a relation slot was recorded.
func (n *Node) HasRelation(name string) bool {
	_, ok := n.relations[name]
	return ok
}

// Relation returns the last resolved value of a relation slot.
func (n *Node) Relation(name string) any { return n.relations[name] }

// SetRelation records the current value of a relation slot.
func (n *Node) SetRelation(name string, value any) { n.relations[name] = value }

// Visited reports whether a relation was already queued in this cycle.
func (n *Node) Visited(name string) bool { return n.visited[name] }

// MarkVisited records that a relation was queued in this cycle.
func (n *Node) MarkVisited(name string) { n.visited[name] = true }

// ResetVisited clears the visited set.
func (n *Node) ResetVisited() { clear(n.visited) }
