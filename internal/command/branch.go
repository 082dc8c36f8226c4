package command

import (
	"errors"

	"github.com/roach88/uow/internal/ir"
)

// Branch composes two commands as an ordered pair: the effects of First are
// available before Second executes.
type Branch struct {
	lifecycle
	first  Command
	second Command
}

var (
	_ Composite = (*Branch)(nil)
	_ Carrier   = (*Branch)(nil)
)

// NewBranch creates a branch over first and second.
func NewBranch(first, second Command) *Branch {
	return &Branch{
		lifecycle: newLifecycle(KindBranch),
		first:     first,
		second:    second,
	}
}

// First returns the command that runs first.
func (b *Branch) First() Command { return b.first }

// Second returns the command that runs second.
func (b *Branch) Second() Command { return b.second }

// Commands returns both sub-commands in order.
func (b *Branch) Commands() []Command { return []Command{b.first, b.second} }

// SetContext forwards the value to every sub-command that is still pending,
// so a key arriving after First executed lands in Second.
func (b *Branch) SetContext(column string, value ir.Value) {
	for _, c := range b.Commands() {
		if carrier, ok := c.(Carrier); ok && c.Status() == StatusPending {
			carrier.SetContext(column, value)
		}
	}
}

// Context merges the context of both sub-commands; Second wins on conflict.
func (b *Branch) Context() ir.Row {
	out := make(ir.Row)
	for _, c := range b.Commands() {
		if carrier, ok := c.(Carrier); ok {
			out.Merge(carrier.Context())
		}
	}
	return out
}

// Complete commits First, then Second, then fires the branch listeners.
func (b *Branch) Complete() error {
	if err := errors.Join(b.first.Complete(), b.second.Complete()); err != nil {
		return err
	}
	return b.markCommitted(b, StatusPending)
}

// Rollback aborts Second, then First, then fires the branch listeners.
func (b *Branch) Rollback() error {
	if err := errors.Join(b.second.Rollback(), b.first.Rollback()); err != nil {
		return err
	}
	return b.markRolledBack(b)
}
