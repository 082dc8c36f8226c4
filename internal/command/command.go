package command

import "github.com/roach88/uow/internal/ir"

// Command is a node in the write graph.
type Command interface {
	Kind() Kind
	Status() Status

	// OnComplete registers a listener fired after the enclosing transaction commits.
	OnComplete(fn Hook)
	// OnRollback registers a listener fired if the enclosing transaction aborts.
	OnRollback(fn Hook)

	// Complete commits the command (and, for composites, every child).
	Complete() error
	// Rollback aborts the command (and, for composites, every child in reverse order).
	Rollback() error
}

// Carrier accepts values forwarded from other commands, typically a key
// that becomes known only when a related write executes.
type Carrier interface {
	Command

	// SetContext forwards a column value into the pending write payload.
	SetContext(column string, value ir.Value)
	// Context returns the forwarded values collected so far.
	Context() ir.Row
}

// Leaf is a single physical write.
type Leaf interface {
	Carrier

	Database() string
	Table() string
	// Data returns the column data overlaid with forwarded context.
	Data() ir.Row

	// OnExecute registers a listener fired when the write reports results.
	OnExecute(fn Hook)
	// Execute records the write result and fires execute listeners.
	Execute(res Result) error
}

// Scoped is a leaf restricted by a primary-key predicate.
type Scoped interface {
	Leaf

	Scope() ir.Row
	// SetScope re-binds a predicate column; valid until the leaf executes.
	SetScope(column string, value ir.Value)
}

// Composite is a command built from sub-commands.
type Composite interface {
	Command
	Commands() []Command
}

// Result is what an executor reports back after a physical write.
type Result struct {
	// InsertID is the store-generated primary key (inserts only).
	InsertID ir.Value
	// Affected is the number of rows touched.
	Affected int64
}
