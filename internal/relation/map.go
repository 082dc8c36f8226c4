package relation

import (
	"log/slog"
	"reflect"

	"github.com/roach88/uow/internal/command"
	"github.com/roach88/uow/internal/heap"
	"github.com/roach88/uow/internal/mapper"
)

// Map is the relation graph of one role.
type Map struct {
	relations    []Relation
	dependencies []Relation
	logger       *slog.Logger
}

// NewMap splits relations, in declaration order, into dependencies and
// dependents.
func NewMap(relations []Relation, logger *slog.Logger) *Map {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Map{relations: relations, logger: logger}
	for _, r := range relations {
		if r.IsDependency() {
			m.dependencies = append(m.dependencies, r)
		}
	}
	return m
}

// Relations returns every declared relation in declaration order.
func (m *Map) Relations() []Relation { return m.relations }

// Init initialises relation values of freshly loaded data and records the
// originals on node. Absent relations get a placeholder unless node
// already holds one; values that are already entities, placeholders or
// nil are recorded as-is (cyclic initialisation).
func (m *Map) Init(node *heap.Node, data map[string]any) (map[string]any, error) {
	for _, r := range m.relations {
		name := r.Name()
		item, ok := data[name]
		if !ok {
			if node.HasRelation(name) {
				continue
			}
			value, orig := r.InitReference(node)
			data[name] = value
			node.SetRelation(name, orig)
			continue
		}

		if initialised(item) {
			node.SetRelation(name, item)
			continue
		}

		value, orig, err := r.Init(item)
		if err != nil {
			return nil, err
		}
		data[name] = value
		node.SetRelation(name, orig)
	}
	return data, nil
}

// QueueRelations wraps owner into a sequence: cascading dependencies,
// then owner, then cascading dependents. A sequence holding only owner
// collapses to owner itself.
func (m *Map) QueueRelations(owner command.Carrier, entity mapper.Entity, node *heap.Node, data map[string]any) (command.Carrier, error) {
	seq := command.NewSequence()

	for _, r := range m.dependencies {
		if err := m.queue(seq, owner, entity, node, r, data); err != nil {
			return nil, err
		}
	}

	seq.AddPrimary(owner)

	for _, r := range m.relations {
		if err := m.queue(seq, owner, entity, node, r, data); err != nil {
			return nil, err
		}
	}

	if seq.Len() == 1 {
		return owner, nil
	}
	return seq, nil
}

func (m *Map) queue(seq *command.Sequence, owner command.Carrier, entity mapper.Entity, node *heap.Node, r Relation, data map[string]any) error {
	name := r.Name()
	if !r.IsCascade() || node.Visited(name) {
		return nil
	}
	node.MarkVisited(name)

	cmd, err := m.queueRelation(owner, entity, node, r, r.Extract(data[name]), node.Relation(name))
	if err != nil {
		return err
	}
	seq.Add(cmd)
	return nil
}

// queueRelation skips an unchanged placeholder or nil, otherwise queues
// the relation and records related as the value to diff against next time.
func (m *Map) queueRelation(owner command.Carrier, entity mapper.Entity, node *heap.Node, r Relation, related, original any) (command.Command, error) {
	if unchanged(related, original) {
		m.logger.Debug("relation unchanged", "role", node.Role(), "relation", r.Name())
		return nil, nil
	}

	cmd, err := r.Queue(owner, entity, node, related, original)
	if err != nil {
		return nil, err
	}
	node.SetRelation(r.Name(), related)
	return cmd, nil
}

func unchanged(related, original any) bool {
	if related == nil {
		return original == nil
	}
	p, ok := related.(Placeholder)
	if !ok {
		return false
	}
	o, ok := original.(Placeholder)
	return ok && p == o
}

func initialised(item any) bool {
	if isNil(item) {
		return true
	}
	switch item.(type) {
	case mapper.Entity, Placeholder:
		return true
	}
	t := reflect.TypeOf(item)
	if t.Kind() != reflect.Slice {
		return false
	}
	if t.Elem().Implements(entityType) {
		return true
	}
	list, ok := entities(item)
	return ok && len(list) > 0
}

var entityType = reflect.TypeOf((*mapper.Entity)(nil)).Elem()
