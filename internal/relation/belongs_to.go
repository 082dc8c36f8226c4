package relation

import (
	"github.com/roach88/uow/internal/command"
	"github.com/roach88/uow/internal/heap"
	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/mapper"
	"github.com/roach88/uow/internal/schema"
)

// BelongsTo is a dependency: the owner row holds InnerKey referencing the
// target's OuterKey, so the target is written first and its key forwarded
// into the owner's command.
type BelongsTo struct {
	def schema.RelationDef
	orm ORM
}

var _ Relation = (*BelongsTo)(nil)

// NewBelongsTo creates the relation for def.
func NewBelongsTo(def schema.RelationDef, orm ORM) *BelongsTo {
	return &BelongsTo{def: def, orm: orm}
}

func (r *BelongsTo) Name() string       { return r.def.Name }
func (r *BelongsTo) IsCascade() bool    { return r.def.Cascade }
func (r *BelongsTo) IsDependency() bool { return true }

// Init makes the related entity from a loaded row.
func (r *BelongsTo) Init(raw any) (any, any, error) {
	row, err := toRow(raw)
	if err != nil {
		return nil, nil, err
	}
	e, err := r.orm.Make(r.def.Target, row)
	if err != nil {
		return nil, nil, err
	}
	return e, e, nil
}

// InitReference points at the target keyed by the owner's inner key. An
// owner without that key has no related entity.
func (r *BelongsTo) InitReference(owner *heap.Node) (any, any) {
	key := owner.Get(r.def.InnerKey)
	if ir.IsNull(key) {
		return nil, nil
	}
	ref := NewReference(r.def.Target, ir.Row{r.def.OuterKey: key}, r.orm)
	return ref, ref
}

// Extract keeps entities and placeholders; anything else is nil.
func (r *BelongsTo) Extract(value any) any {
	if isNil(value) {
		return nil
	}
	switch v := value.(type) {
	case Placeholder:
		return v
	case mapper.Entity:
		return v
	}
	return nil
}

// Queue stores the related entity and forwards its key into owner.
//
// When the related graph already contains owner's own write (two entities
// referencing each other), owner runs before the key exists. A follow-up
// write of entity is then queued after the related command and receives
// the key instead.
func (r *BelongsTo) Queue(owner command.Carrier, entity mapper.Entity, node *heap.Node, related, _ any) (command.Command, error) {
	switch v := related.(type) {
	case nil:
		if !r.def.Nullable {
			return nil, &mapper.ConfigError{
				Code:    mapper.ErrCodeRequiredRelation,
				Role:    node.Role(),
				Message: "relation " + r.def.Name + " is not nullable",
			}
		}
		owner.SetContext(r.def.InnerKey, ir.Null{})
		return nil, nil

	case Placeholder:
		if key := v.Scope().Get(r.def.OuterKey); !ir.IsNull(key) {
			owner.SetContext(r.def.InnerKey, key)
		}
		return nil, nil

	case mapper.Entity:
		cmd, err := r.orm.QueueStore(v)
		if err != nil {
			return nil, err
		}
		relNode, ok := r.orm.Node(v)
		if !ok {
			return cmd, nil
		}

		target := owner
		if entity != nil && runsWithin(owner, cmd) {
			follow, err := r.orm.QueueFollowUp(entity)
			if err != nil {
				return nil, err
			}
			group := command.NewGroup()
			group.Add(cmd)
			group.Add(follow)
			cmd, target = group, follow
		}

		cancel := onKey(relNode, r.def.OuterKey, func(key ir.Value) {
			target.SetContext(r.def.InnerKey, key)
		})
		cancelOnRollback(owner, cancel)
		return cmd, nil
	}
	return nil, nil
}

func toRow(raw any) (ir.Row, error) {
	switch v := raw.(type) {
	case ir.Row:
		return v, nil
	case map[string]any:
		row, err := ir.RowFromMap(v)
		if err != nil {
			return nil, &mapper.ConfigError{Code: mapper.ErrCodeInvalidValue, Message: "related row", Err: err}
		}
		return row, nil
	}
	return nil, &mapper.ConfigError{Code: mapper.ErrCodeInvalidValue, Message: "related data is not a row"}
}
