package command

// Nil is a command with nothing to do.
type Nil struct {
	lifecycle
}

var _ Command = (*Nil)(nil)

// NewNil creates a no-op command.
func NewNil() *Nil {
	return &Nil{lifecycle: newLifecycle(KindNil)}
}

// Complete marks the command committed.
func (n *Nil) Complete() error { return n.markCommitted(n, StatusPending, StatusExecuted) }

// Rollback marks the command rolled back.
func (n *Nil) Rollback() error { return n.markRolledBack(n) }
