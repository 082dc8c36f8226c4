// Package mapper turns entity mutations into write commands.
//
// A Mapper owns one entity role. QueueStore decides between the create and
// update paths from the entity's Node, builds the leaf (or merges it into a
// Branch with the write already pending) and wires the lifecycle hooks that
// keep the Node consistent whatever the executor decides:
//
//	create: on execute merge the generated key, on complete mark Loaded and
//	        hydrate, on rollback detach and reset to New
//	update: on execute merge returned context, on complete mark Loaded and
//	        hydrate, on rollback restore lifecycle and snapshot
//	delete: on complete detach, on rollback restore lifecycle
//
// Update and delete scopes follow the Node's primary key through a change
// listener, so a row can be queued before its key exists.
package mapper

import (
	"log/slog"

	"github.com/roach88/uow/internal/command"
	"github.com/roach88/uow/internal/heap"
	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/schema"
)

// Mapper builds commands for one entity role.
type Mapper struct {
	def     *schema.Definition
	heap    *heap.Heap
	adapter Adapter
	factory Factory
	logger  *slog.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a mapper for def. Fails fast when the definition cannot key
// its rows.
func New(def *schema.Definition, h *heap.Heap, adapter Adapter, factory Factory, opts ...Option) (*Mapper, error) {
	if def == nil {
		return nil, &ConfigError{Code: ErrCodeUnknownRole, Message: "nil definition"}
	}
	if def.PrimaryKey == "" {
		return nil, &ConfigError{
			Code:    ErrCodeMissingPrimaryKey,
			Role:    def.Role,
			Message: "definition has no primary key",
		}
	}
	m := &Mapper{
		def:     def,
		heap:    h,
		adapter: adapter,
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Role returns the mapped role.
func (m *Mapper) Role() string { return m.def.Role }

// Definition returns the schema definition.
func (m *Mapper) Definition() *schema.Definition { return m.def }

// Extract returns the raw entity data: columns and relation values.
func (m *Mapper) Extract(entity Entity) map[string]any {
	return m.adapter.Extract(entity)
}

// Columns returns the declared columns of entity as a row. A subtype
// entity also carries its discriminator alias.
func (m *Mapper) Columns(entity Entity) (ir.Row, error) {
	raw := m.adapter.Extract(entity)
	row := make(ir.Row, len(m.def.Columns))
	for _, col := range m.def.Columns {
		v, err := ir.FromGo(raw[col])
		if err != nil {
			return nil, &ConfigError{
				Code:    ErrCodeInvalidValue,
				Role:    m.def.Role,
				Message: "column " + col,
				Err:     err,
			}
		}
		row[col] = v
	}

	if role := entity.EntityRole(); role != m.def.Role {
		alias, ok := m.def.VariantAlias(role)
		if !ok {
			return nil, &ConfigError{
				Code:    ErrCodeUnknownVariant,
				Role:    m.def.Role,
				Message: "no discriminator alias for subtype " + role,
			}
		}
		row[schema.Discriminator] = ir.String(alias)
	}
	return row, nil
}

// EntityRole selects the concrete role for a stored row using the
// discriminator column. Unknown aliases fall back to the mapper role.
func (m *Mapper) EntityRole(data ir.Row) string {
	if alias, ok := data[schema.Discriminator].(ir.String); ok {
		if role, ok := m.def.VariantRole(string(alias)); ok {
			return role
		}
	}
	return m.def.Role
}

// Prepare creates an empty entity of the concrete role for data.
func (m *Mapper) Prepare(data ir.Row) (Entity, error) {
	role := m.EntityRole(data)
	entity, err := m.factory(role)
	if err != nil {
		return nil, &ConfigError{
			Code:    ErrCodeUnknownRole,
			Role:    role,
			Message: "factory failed",
			Err:     err,
		}
	}
	return entity, nil
}

// Hydrate writes data into entity.
func (m *Mapper) Hydrate(entity Entity, data map[string]any) error {
	return m.adapter.Hydrate(entity, data)
}

// QueueStore returns the command persisting entity and its Node.
//
// At most one live command represents an entity's pending writes: a first
// call on a new entity yields an Insert, on a loaded idle entity an Update,
// and further calls before execution merge into a Branch. Once a Branch is
// active it is returned unchanged.
func (m *Mapper) QueueStore(entity Entity) (command.Carrier, *heap.Node, error) {
	node, tracked := m.heap.Get(entity)

	if !tracked || node.Lifecycle() == heap.New {
		ins, created, err := m.queueCreate(entity, node)
		if err != nil {
			return nil, nil, err
		}
		created.SetActiveCommand(ins)
		ins.OnComplete(clearActive(created, ins))
		ins.OnRollback(clearActive(created, ins))
		return ins, created, nil
	}

	last := node.ActiveCommand()
	if last == nil {
		upd, err := m.queueUpdate(entity, node)
		if err != nil {
			return nil, nil, err
		}
		node.SetActiveCommand(upd)
		upd.OnComplete(clearActive(node, upd))
		upd.OnRollback(clearActive(node, upd))
		return upd, node, nil
	}

	if br, ok := last.(*command.Branch); ok {
		m.logger.Debug("queue store: branch already pending", "role", m.def.Role)
		return br, node, nil
	}

	upd, err := m.queueUpdate(entity, node)
	if err != nil {
		return nil, nil, err
	}
	br := command.NewBranch(last, upd)
	node.SetActiveCommand(br)
	br.OnComplete(clearActive(node, br))
	br.OnRollback(clearActive(node, br))
	m.logger.Debug("queue store: merged into branch", "role", m.def.Role, "first", last.Kind())
	return br, node, nil
}

// QueueDelete returns the command removing entity. An untracked entity
// yields a Nil command and no side effects.
func (m *Mapper) QueueDelete(entity Entity) (command.Command, error) {
	node, tracked := m.heap.Get(entity)
	if !tracked {
		m.logger.Debug("queue delete: entity not tracked", "role", m.def.Role)
		return command.NewNil(), nil
	}
	return m.queueDelete(entity, node)
}

func (m *Mapper) queueCreate(entity Entity, node *heap.Node) (*command.Insert, *heap.Node, error) {
	columns, err := m.Columns(entity)
	if err != nil {
		return nil, nil, err
	}

	if node == nil {
		node = heap.NewNode(m.def.Role, heap.New, columns)
		m.heap.Attach(entity, node)
	} else {
		node.SetData(columns)
	}
	node.SetLifecycle(heap.ScheduledInsert)

	pk := m.def.PrimaryKey
	data := columns
	if ir.IsNull(columns[pk]) {
		data = columns.Without(pk)
	}

	ins := command.NewInsert(m.def.Database, m.def.Table, data)

	ins.OnExecute(func(command.Command) {
		row := ins.Context()
		if id := ins.InsertID(); !ir.IsNull(id) {
			row[pk] = id
		}
		node.SetData(row)
	})

	ins.OnComplete(func(command.Command) {
		node.SetLifecycle(heap.Loaded)
		m.hydrate(entity, node)
	})

	ins.OnRollback(func(command.Command) {
		m.heap.Detach(entity)
		node.SetLifecycle(heap.New)
		node.ReplaceData(ir.Row{})
	})

	m.logger.Debug("queue insert", "role", m.def.Role, "table", m.def.Table, "columns", len(data))
	return ins, node, nil
}

func (m *Mapper) queueUpdate(entity Entity, node *heap.Node) (*command.Update, error) {
	fresh, err := m.Columns(entity)
	if err != nil {
		return nil, err
	}

	pk := m.def.PrimaryKey
	known := node.Data()
	changed := ir.Diff(fresh, known)
	delete(changed, pk)

	upd := command.NewUpdate(m.def.Database, m.def.Table, changed, ir.Row{pk: m.keyOf(known, fresh)})

	prior := node.Lifecycle()
	node.SetLifecycle(heap.ScheduledUpdate)
	node.SetData(changed)

	stop := node.OnChange(rescope(upd, pk))

	upd.OnExecute(func(command.Command) {
		node.SetData(upd.Context())
	})

	upd.OnComplete(func(command.Command) {
		stop()
		node.SetLifecycle(heap.Loaded)
		m.hydrate(entity, node)
	})

	upd.OnRollback(func(command.Command) {
		stop()
		node.SetLifecycle(prior)
		node.ReplaceData(known)
	})

	m.logger.Debug("queue update", "role", m.def.Role, "table", m.def.Table, "changed", len(changed))
	return upd, nil
}

func (m *Mapper) queueDelete(entity Entity, node *heap.Node) (*command.Delete, error) {
	pk := m.def.PrimaryKey

	var fresh ir.Row
	if !node.Data().Has(pk) {
		cols, err := m.Columns(entity)
		if err != nil {
			return nil, err
		}
		fresh = cols
	}

	del := command.NewDelete(m.def.Database, m.def.Table, ir.Row{pk: m.keyOf(node.Data(), fresh)})

	prior := node.Lifecycle()
	node.SetLifecycle(heap.ScheduledDelete)

	stop := node.OnChange(rescope(del, pk))

	del.OnComplete(func(command.Command) {
		stop()
		m.heap.Detach(entity)
	})

	del.OnRollback(func(command.Command) {
		stop()
		node.SetLifecycle(prior)
	})

	m.logger.Debug("queue delete", "role", m.def.Role, "table", m.def.Table)
	return del, nil
}

// keyOf returns the primary key from the snapshot, else from fresh data.
func (m *Mapper) keyOf(known, fresh ir.Row) ir.Value {
	if v := known.Get(m.def.PrimaryKey); !ir.IsNull(v) {
		return v
	}
	return fresh.Get(m.def.PrimaryKey)
}

func (m *Mapper) hydrate(entity Entity, node *heap.Node) {
	if err := m.adapter.Hydrate(entity, RowData(node.Data())); err != nil {
		m.logger.Error("hydrate failed", "role", m.def.Role, "error", err)
	}
}

// rescope re-binds the scope of cmd whenever the node learns a new key.
func rescope(cmd command.Scoped, pk string) heap.ChangeListener {
	return func(n *heap.Node) {
		v := n.Get(pk)
		if ir.IsNull(v) || ir.Equal(cmd.Scope()[pk], v) {
			return
		}
		cmd.SetScope(pk, v)
	}
}

// clearActive resets the node's active command if it is still cmd.
func clearActive(node *heap.Node, cmd command.Command) command.Hook {
	return func(command.Command) {
		if node.ActiveCommand() == cmd {
			node.SetActiveCommand(nil)
		}
	}
}
