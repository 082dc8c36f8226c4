// Package relation orders writes across related entities.
//
// A Map holds the declared relations of one role split into dependencies
// (the owner row needs their key, written first) and dependents (written
// after the owner). QueueRelations wraps the owner's command into a
// Sequence in that order; the per-node visited set keeps traversal of
// cyclic graphs finite within one queue cycle.
package relation

import (
	"reflect"

	"github.com/roach88/uow/internal/command"
	"github.com/roach88/uow/internal/heap"
	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/mapper"
	"github.com/roach88/uow/internal/schema"
)

// Source resolves placeholders against tracked or stored entities.
type Source interface {
	// FindOne returns the entity of role matching scope, or nil.
	FindOne(role string, scope ir.Row) (mapper.Entity, error)
	// FindAll returns every entity of role matching scope.
	FindAll(role string, scope ir.Row) ([]mapper.Entity, error)
}

// ORM is what relations need from the unit of work.
type ORM interface {
	Source

	// QueueStore queues entity with its own relations (nested call).
	QueueStore(entity mapper.Entity) (command.Carrier, error)
	// QueueFollowUp queues a further write for an entity already queued in
	// the current cycle, merged with its pending command into a Branch.
	QueueFollowUp(entity mapper.Entity) (command.Carrier, error)
	// QueueDelete queues entity removal.
	QueueDelete(entity mapper.Entity) (command.Command, error)
	// Make returns the tracked entity for a loaded row of role.
	Make(role string, row ir.Row) (mapper.Entity, error)
	// Node returns the state tracked for entity.
	Node(entity mapper.Entity) (*heap.Node, bool)
}

// Relation is one declared relation of a role.
type Relation interface {
	Name() string
	IsCascade() bool
	// IsDependency reports whether the owner row needs the related key.
	IsDependency() bool

	// Init turns raw loaded data into the relation value and the original
	// kept on the node for diffing.
	Init(raw any) (value, original any, err error)
	// InitReference builds a not-yet-loaded placeholder for owner.
	InitReference(owner *heap.Node) (value, original any)
	// Extract normalises the value found in the owner's data.
	Extract(value any) any
	// Queue returns the command writing related, or nil when nothing
	// needs to be written.
	Queue(owner command.Carrier, entity mapper.Entity, node *heap.Node, related, original any) (command.Command, error)
}

// Factory builds the relation for a schema declaration.
type Factory func(def schema.RelationDef, orm ORM) (Relation, error)

// New is the default Factory.
func New(def schema.RelationDef, orm ORM) (Relation, error) {
	switch def.Type {
	case schema.BelongsTo:
		return NewBelongsTo(def, orm), nil
	case schema.HasMany:
		return NewHasMany(def, orm), nil
	}
	return nil, &mapper.ConfigError{
		Code:    mapper.ErrCodeUnknownRelation,
		Role:    def.Target,
		Message: "relation " + def.Name + " has unsupported type " + string(def.Type),
	}
}

// isNil reports whether v is nil or a typed nil pointer/slice.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// entities converts a slice of entities of any element type.
func entities(v any) ([]mapper.Entity, bool) {
	if list, ok := v.([]mapper.Entity); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]mapper.Entity, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		if isNil(item) {
			continue
		}
		e, ok := item.(mapper.Entity)
		if !ok {
			return nil, false
		}
		out = append(out, e)
	}
	return out, true
}

// onKey invokes fn with column's value of node once it is known. The
// returned func cancels a listener that has not fired yet.
func onKey(node *heap.Node, column string, fn func(ir.Value)) (cancel func()) {
	if v := node.Get(column); !ir.IsNull(v) {
		fn(v)
		return func() {}
	}
	var stop func()
	stop = node.OnChange(func(n *heap.Node) {
		v := n.Get(column)
		if ir.IsNull(v) {
			return
		}
		stop()
		fn(v)
	})
	return stop
}

// cancelOnRollback drops cancel's listener when cmd is rolled back.
func cancelOnRollback(cmd command.Command, cancel func()) {
	if cmd == nil {
		return
	}
	cmd.OnRollback(func(command.Command) { cancel() })
}

// runsWithin reports whether a pending leaf of owner is part of cmd.
func runsWithin(owner, cmd command.Command) bool {
	if owner == nil || cmd == nil {
		return false
	}
	inner := make(map[command.Leaf]bool)
	for _, leaf := range command.Leaves(cmd) {
		inner[leaf] = true
	}
	for _, leaf := range command.Leaves(owner) {
		if inner[leaf] && leaf.Status() == command.StatusPending {
			return true
		}
	}
	return false
}
