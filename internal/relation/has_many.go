package relation

import (
	"github.com/roach88/uow/internal/command"
	"github.com/roach88/uow/internal/heap"
	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/mapper"
	"github.com/roach88/uow/internal/schema"
)

// HasMany is a dependent relation: every child holds OuterKey referencing
// the owner's InnerKey and is written after the owner.
type HasMany struct {
	def schema.RelationDef
	orm ORM
}

var _ Relation = (*HasMany)(nil)

// NewHasMany creates the relation for def.
func NewHasMany(def schema.RelationDef, orm ORM) *HasMany {
	return &HasMany{def: def, orm: orm}
}

func (r *HasMany) Name() string       { return r.def.Name }
func (r *HasMany) IsCascade() bool    { return r.def.Cascade }
func (r *HasMany) IsDependency() bool { return false }

// Init makes every child from its loaded row.
func (r *HasMany) Init(raw any) (any, any, error) {
	var rows []ir.Row
	switch v := raw.(type) {
	case []ir.Row:
		rows = v
	case []map[string]any:
		for _, m := range v {
			row, err := toRow(m)
			if err != nil {
				return nil, nil, err
			}
			rows = append(rows, row)
		}
	case []any:
		for _, item := range v {
			row, err := toRow(item)
			if err != nil {
				return nil, nil, err
			}
			rows = append(rows, row)
		}
	default:
		return nil, nil, &mapper.ConfigError{Code: mapper.ErrCodeInvalidValue, Message: "related data is not a row list"}
	}

	children := make([]mapper.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := r.orm.Make(r.def.Target, row)
		if err != nil {
			return nil, nil, err
		}
		children = append(children, e)
	}
	return children, clone(children), nil
}

// InitReference points at every child keyed by the owner's inner key.
func (r *HasMany) InitReference(owner *heap.Node) (any, any) {
	key := owner.Get(r.def.InnerKey)
	if ir.IsNull(key) {
		return []mapper.Entity{}, []mapper.Entity{}
	}
	ref := NewCollectionReference(r.def.Target, ir.Row{r.def.OuterKey: key}, r.orm)
	return ref, ref
}

// Extract normalises any entity slice; placeholders pass through.
func (r *HasMany) Extract(value any) any {
	if isNil(value) {
		return nil
	}
	if p, ok := value.(Placeholder); ok {
		return p
	}
	if list, ok := entities(value); ok {
		return list
	}
	return nil
}

// Queue stores every child, forwarding the owner key into each child
// command, and deletes children removed since the original was taken.
// The result is a plain group spliced into the owner's sequence.
func (r *HasMany) Queue(owner command.Carrier, _ mapper.Entity, node *heap.Node, related, original any) (command.Command, error) {
	if p, ok := related.(Placeholder); ok && !p.Loaded() {
		return nil, nil
	}
	current, err := r.resolve(related)
	if err != nil {
		return nil, err
	}
	previous, err := r.resolve(original)
	if err != nil {
		return nil, err
	}

	group := command.NewGroup()
	for _, child := range current {
		cmd, err := r.orm.QueueStore(child)
		if err != nil {
			return nil, err
		}
		cancel := onKey(node, r.def.InnerKey, func(key ir.Value) {
			cmd.SetContext(r.def.OuterKey, key)
		})
		cancelOnRollback(owner, cancel)
		group.Add(cmd)
	}

	for _, child := range previous {
		if contains(current, child) {
			continue
		}
		cmd, err := r.orm.QueueDelete(child)
		if err != nil {
			return nil, err
		}
		group.Add(cmd)
	}

	if group.Len() == 0 {
		return nil, nil
	}
	return group, nil
}

// resolve returns the loaded children behind v. Unloaded placeholders
// yield nothing.
func (r *HasMany) resolve(v any) ([]mapper.Entity, error) {
	if p, ok := v.(Placeholder); ok {
		if !p.Loaded() {
			return nil, nil
		}
		res, err := p.Resolve()
		if err != nil {
			return nil, err
		}
		v = res
	}
	if isNil(v) {
		return nil, nil
	}
	list, _ := entities(v)
	return list, nil
}

func contains(list []mapper.Entity, e mapper.Entity) bool {
	for _, item := range list {
		if item == e {
			return true
		}
	}
	return false
}

func clone(list []mapper.Entity) []mapper.Entity {
	out := make([]mapper.Entity, len(list))
	copy(out, list)
	return out
}
