// Package orm is the unit-of-work facade: one Mapper and one relation Map
// per role over a shared Heap. QueueStore and QueueDelete return a single
// command graph for an external executor (see package runner).
package orm

import (
	"fmt"
	"log/slog"

	"github.com/roach88/uow/internal/command"
	"github.com/roach88/uow/internal/heap"
	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/mapper"
	"github.com/roach88/uow/internal/relation"
	"github.com/roach88/uow/internal/schema"
)

// ORM queues entity writes. It is not safe for concurrent use.
type ORM struct {
	registry  *schema.Registry
	heap      *heap.Heap
	adapter   mapper.Adapter
	factory   mapper.Factory
	relations relation.Factory
	logger    *slog.Logger

	mappers map[string]*mapper.Mapper
	maps    map[string]*relation.Map

	// depth > 0 while a top-level queue call is running.
	depth int
	// cycle holds the command queued per node in the current cycle.
	cycle map[*heap.Node]command.Carrier
}

var _ relation.ORM = (*ORM)(nil)

// Option configures an ORM.
type Option func(*ORM)

// WithHeap shares an existing identity map.
func WithHeap(h *heap.Heap) Option {
	return func(o *ORM) {
		if h != nil {
			o.heap = h
		}
	}
}

// WithLogger sets the logger used by the ORM and its mappers.
func WithLogger(l *slog.Logger) Option {
	return func(o *ORM) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRelationFactory replaces the builder for declared relations.
func WithRelationFactory(f relation.Factory) Option {
	return func(o *ORM) {
		if f != nil {
			o.relations = f
		}
	}
}

// WithAdapter sets how entity data is read and written.
// Defaults to mapper.RecordAdapter.
func WithAdapter(a mapper.Adapter) Option {
	return func(o *ORM) {
		if a != nil {
			o.adapter = a
		}
	}
}

// WithEntityFactory sets how empty entities are built on load.
// Defaults to mapper.RecordFactory.
func WithEntityFactory(f mapper.Factory) Option {
	return func(o *ORM) {
		if f != nil {
			o.factory = f
		}
	}
}

// New builds mappers and relation maps for every role of registry.
func New(registry *schema.Registry, opts ...Option) (*ORM, error) {
	o := &ORM{
		registry:  registry,
		heap:      heap.NewHeap(),
		adapter:   mapper.RecordAdapter{},
		factory:   mapper.RecordFactory,
		relations: relation.New,
		logger:    slog.Default(),
		mappers:   make(map[string]*mapper.Mapper),
		maps:      make(map[string]*relation.Map),
	}
	for _, opt := range opts {
		opt(o)
	}

	for _, role := range registry.Roles() {
		def, err := registry.Lookup(role)
		if err != nil {
			return nil, fmt.Errorf("orm: %w", err)
		}
		m, err := mapper.New(def, o.heap, o.adapter, o.factory, mapper.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("orm: %w", err)
		}

		rels := make([]relation.Relation, 0, len(def.Relations))
		for _, rd := range def.Relations {
			rel, err := o.relations(rd, o)
			if err != nil {
				return nil, fmt.Errorf("orm: %s.%s: %w", role, rd.Name, err)
			}
			rels = append(rels, rel)
		}

		o.mappers[role] = m
		o.maps[role] = relation.NewMap(rels, o.logger)
	}
	return o, nil
}

// Heap returns the identity map.
func (o *ORM) Heap() *heap.Heap { return o.heap }

// Registry returns the schema registry.
func (o *ORM) Registry() *schema.Registry { return o.registry }

// Mapper returns the mapper for role or one of its variants.
func (o *ORM) Mapper(role string) (*mapper.Mapper, error) {
	if m, ok := o.mappers[o.registry.Parent(role)]; ok {
		return m, nil
	}
	return nil, &mapper.ConfigError{
		Code:    mapper.ErrCodeUnknownRole,
		Role:    role,
		Message: "no mapper for role",
	}
}

// Node returns the state tracked for entity.
func (o *ORM) Node(entity mapper.Entity) (*heap.Node, bool) {
	return o.heap.Get(entity)
}

// QueueStore returns the command persisting entity together with its
// cascading relations. Within one top-level call every entity is queued
// at most once; relations reaching it again get the same command.
func (o *ORM) QueueStore(entity mapper.Entity) (command.Carrier, error) {
	o.enter()
	defer o.leave()

	m, err := o.Mapper(entity.EntityRole())
	if err != nil {
		return nil, err
	}

	if node, ok := o.heap.Get(entity); ok {
		if cmd, seen := o.cycle[node]; seen {
			o.logger.Debug("queue store: already queued in cycle", "role", m.Role(), "node", node.ID())
			return cmd, nil
		}
	}

	cmd, node, err := m.QueueStore(entity)
	if err != nil {
		return nil, err
	}
	o.cycle[node] = cmd

	o.logger.Debug("queue store", "role", m.Role(), "node", node.ID(), "kind", cmd.Kind(), "depth", o.depth)
	return o.maps[m.Role()].QueueRelations(cmd, entity, node, m.Extract(entity))
}

// QueueFollowUp queues a second write for an entity already queued in the
// current cycle. The mapper merges it with the pending command into a
// Branch; values forwarded after the first write has run land in the
// second. Relations are not traversed again.
func (o *ORM) QueueFollowUp(entity mapper.Entity) (command.Carrier, error) {
	o.enter()
	defer o.leave()

	m, err := o.Mapper(entity.EntityRole())
	if err != nil {
		return nil, err
	}
	cmd, node, err := m.QueueStore(entity)
	if err != nil {
		return nil, err
	}
	o.cycle[node] = cmd

	o.logger.Debug("queue follow-up", "role", m.Role(), "node", node.ID(), "kind", cmd.Kind())
	return cmd, nil
}

// QueueDelete returns the command removing entity. Relations are not
// cascaded; untracked entities yield a Nil command.
func (o *ORM) QueueDelete(entity mapper.Entity) (command.Command, error) {
	o.enter()
	defer o.leave()

	m, err := o.Mapper(entity.EntityRole())
	if err != nil {
		return nil, err
	}
	o.logger.Debug("queue delete", "role", m.Role())
	return m.QueueDelete(entity)
}

// Make returns the tracked entity for a loaded row of role, or prepares,
// hydrates and attaches a new one in the Loaded state with its relations
// initialised.
func (o *ORM) Make(role string, row ir.Row) (mapper.Entity, error) {
	m, err := o.Mapper(role)
	if err != nil {
		return nil, err
	}
	def := m.Definition()

	if e, ok := o.Get(def.Role, row.Get(def.PrimaryKey)); ok {
		return e, nil
	}

	entity, err := m.Prepare(row)
	if err != nil {
		return nil, err
	}

	node := heap.NewNode(def.Role, heap.Loaded, row)
	o.heap.Attach(entity, node)

	data, err := o.maps[def.Role].Init(node, mapper.RowData(row))
	if err != nil {
		o.heap.Detach(entity)
		return nil, err
	}
	if err := m.Hydrate(entity, data); err != nil {
		o.heap.Detach(entity)
		return nil, err
	}
	return entity, nil
}

// Get returns the tracked entity of role with primary key value key.
func (o *ORM) Get(role string, key ir.Value) (mapper.Entity, bool) {
	m, err := o.Mapper(role)
	if err != nil {
		return nil, false
	}
	e, ok := o.heap.Find(m.Role(), m.Definition().PrimaryKey, key)
	if !ok {
		return nil, false
	}
	return e.(mapper.Entity), true
}

// FindOne returns the first tracked entity of role matching scope.
func (o *ORM) FindOne(role string, scope ir.Row) (mapper.Entity, error) {
	list, err := o.FindAll(role, scope)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// FindAll returns every tracked entity of role matching scope.
func (o *ORM) FindAll(role string, scope ir.Row) ([]mapper.Entity, error) {
	m, err := o.Mapper(role)
	if err != nil {
		return nil, err
	}
	found := o.heap.Select(m.Role(), scope)
	out := make([]mapper.Entity, 0, len(found))
	for _, e := range found {
		out = append(out, e.(mapper.Entity))
	}
	return out, nil
}

func (o *ORM) enter() {
	if o.depth == 0 {
		o.heap.BeginCycle()
		o.cycle = make(map[*heap.Node]command.Carrier)
	}
	o.depth++
}

func (o *ORM) leave() { o.depth-- }
