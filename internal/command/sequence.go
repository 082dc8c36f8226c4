package command

import (
	"errors"

	"github.com/roach88/uow/internal/ir"
)

// Sequence is an ordered list of commands with an optional primary slot
// marking where the owning entity's own command sits.
//
// A Sequence created with NewGroup is a plain group: adding it to another
// Sequence splices its elements in place instead of nesting it.
type Sequence struct {
	lifecycle
	commands []Command
	primary  int
	group    bool
}

var (
	_ Composite = (*Sequence)(nil)
	_ Carrier   = (*Sequence)(nil)
)

// NewSequence creates an empty sequence without a primary slot.
func NewSequence() *Sequence {
	return &Sequence{lifecycle: newLifecycle(KindSequence), primary: -1}
}

// NewGroup creates a plain group that is flattened when added to a Sequence.
func NewGroup() *Sequence {
	s := NewSequence()
	s.group = true
	return s
}

// Add appends a command. Nil commands are ignored; groups are spliced.
func (s *Sequence) Add(cmd Command) {
	if cmd == nil {
		return
	}
	if g, ok := cmd.(*Sequence); ok && g.group && g.primary < 0 {
		for _, c := range g.commands {
			s.Add(c)
		}
		return
	}
	s.commands = append(s.commands, cmd)
}

// AddPrimary appends the owner command and marks its position.
func (s *Sequence) AddPrimary(cmd Command) {
	s.primary = len(s.commands)
	s.commands = append(s.commands, cmd)
}

// Primary returns the owner command, or nil when none was added.
func (s *Sequence) Primary() Command {
	if s.primary < 0 {
		return nil
	}
	return s.commands[s.primary]
}

// PrimaryIndex returns the position of the owner command, or -1.
func (s *Sequence) PrimaryIndex() int { return s.primary }

// Len returns the number of elements.
func (s *Sequence) Len() int { return len(s.commands) }

// Commands returns a copy of the elements in order.
func (s *Sequence) Commands() []Command {
	out := make([]Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// SetContext forwards the value to the primary command.
func (s *Sequence) SetContext(column string, value ir.Value) {
	if carrier, ok := s.Primary().(Carrier); ok {
		carrier.SetContext(column, value)
	}
}

// Context returns the primary command context.
func (s *Sequence) Context() ir.Row {
	if carrier, ok := s.Primary().(Carrier); ok {
		return carrier.Context()
	}
	return make(ir.Row)
}

// Complete commits every element in order, then fires the sequence listeners.
func (s *Sequence) Complete() error {
	var errs []error
	for _, c := range s.commands {
		errs = append(errs, c.Complete())
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return s.markCommitted(s, StatusPending)
}

// Rollback aborts every element in reverse order, then fires the sequence listeners.
func (s *Sequence) Rollback() error {
	var errs []error
	for i := len(s.commands) - 1; i >= 0; i-- {
		errs = append(errs, s.commands[i].Rollback())
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return s.markRolledBack(s)
}
