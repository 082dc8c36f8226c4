package command

import "github.com/roach88/uow/internal/ir"

// payload is the column data of a leaf plus forwarded context.
type payload struct {
	database string
	table    string
	data     ir.Row
	context  ir.Row
}

func newPayload(database, table string, data ir.Row) payload {
	return payload{
		database: database,
		table:    table,
		data:     data.Clone(),
		context:  make(ir.Row),
	}
}

// Database returns the target database name.
func (p *payload) Database() string { return p.database }

// Table returns the target table name.
func (p *payload) Table() string { return p.table }

// Context returns a copy of the forwarded values.
func (p *payload) Context() ir.Row { return p.context.Clone() }

// Data returns the full write payload: column data overlaid with context.
func (p *payload) Data() ir.Row {
	out := p.data.Clone()
	out.Merge(p.context)
	return out
}

// scope is a primary-key predicate that may be re-bound before execution.
type scope struct {
	where ir.Row
}

// Scope returns a copy of the predicate.
func (s *scope) Scope() ir.Row { return s.where.Clone() }

// Insert writes a new row.
type Insert struct {
	lifecycle
	payload
	insertID ir.Value
}

var _ Leaf = (*Insert)(nil)

// NewInsert creates a pending insert of data into database.table.
func NewInsert(database, table string, data ir.Row) *Insert {
	return &Insert{
		lifecycle: newLifecycle(KindInsert),
		payload:   newPayload(database, table, data),
		insertID:  ir.Null{},
	}
}

// SetContext forwards a value into the insert payload.
// Ignored once the insert has left the pending state.
func (c *Insert) SetContext(column string, value ir.Value) {
	if c.status != StatusPending {
		return
	}
	c.context[column] = value
}

// InsertID returns the generated key, or Null before execution.
func (c *Insert) InsertID() ir.Value { return c.insertID }

// OnExecute registers a listener fired when the insert reports its key.
func (c *Insert) OnExecute(fn Hook) { c.onExecute(fn) }

// Execute records the generated key and fires execute listeners.
func (c *Insert) Execute(res Result) error {
	if res.InsertID != nil {
		c.insertID = res.InsertID
	}
	return c.markExecuted(c)
}

// Complete commits the insert.
func (c *Insert) Complete() error { return c.markCommitted(c, StatusExecuted) }

// Rollback aborts the insert.
func (c *Insert) Rollback() error { return c.markRolledBack(c) }

// Update writes changed columns of an existing row.
type Update struct {
	lifecycle
	payload
	scope
}

var _ Scoped = (*Update)(nil)

// NewUpdate creates a pending update of data restricted by where.
func NewUpdate(database, table string, data, where ir.Row) *Update {
	return &Update{
		lifecycle: newLifecycle(KindUpdate),
		payload:   newPayload(database, table, data),
		scope:     scope{where: where.Clone()},
	}
}

// SetContext forwards a value into the update payload.
func (c *Update) SetContext(column string, value ir.Value) {
	if c.status != StatusPending {
		return
	}
	c.context[column] = value
}

// SetScope re-binds a predicate column.
func (c *Update) SetScope(column string, value ir.Value) {
	if c.status != StatusPending {
		return
	}
	c.where[column] = value
}

// Empty reports whether there is nothing to write.
// Executors skip the physical write but still call Execute.
func (c *Update) Empty() bool {
	return len(c.data) == 0 && len(c.context) == 0
}

// OnExecute registers a listener fired when the update reports back.
func (c *Update) OnExecute(fn Hook) { c.onExecute(fn) }

// Execute fires execute listeners.
func (c *Update) Execute(Result) error { return c.markExecuted(c) }

// Complete commits the update.
func (c *Update) Complete() error { return c.markCommitted(c, StatusExecuted) }

// Rollback aborts the update.
func (c *Update) Rollback() error { return c.markRolledBack(c) }

// Delete removes a row.
type Delete struct {
	lifecycle
	payload
	scope
}

var _ Scoped = (*Delete)(nil)

// NewDelete creates a pending delete restricted by where.
func NewDelete(database, table string, where ir.Row) *Delete {
	return &Delete{
		lifecycle: newLifecycle(KindDelete),
		payload:   newPayload(database, table, nil),
		scope:     scope{where: where.Clone()},
	}
}

// SetContext is a no-op: a delete writes no columns.
func (c *Delete) SetContext(string, ir.Value) {}

// SetScope re-binds a predicate column.
func (c *Delete) SetScope(column string, value ir.Value) {
	if c.status != StatusPending {
		return
	}
	c.where[column] = value
}

// OnExecute registers a listener fired when the delete reports back.
func (c *Delete) OnExecute(fn Hook) { c.onExecute(fn) }

// Execute fires execute listeners.
func (c *Delete) Execute(Result) error { return c.markExecuted(c) }

// Complete commits the delete.
func (c *Delete) Complete() error { return c.markCommitted(c, StatusExecuted) }

// Rollback aborts the delete.
func (c *Delete) Rollback() error { return c.markRolledBack(c) }
