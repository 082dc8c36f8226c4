package command

// Hook is a lifecycle listener. It receives the command that transitioned.
type Hook func(Command)

// lifecycle holds the status and ordered listener lists shared by every
// command implementation.
type lifecycle struct {
	kind     Kind
	status   Status
	execute  []Hook
	complete []Hook
	rollback []Hook
}

func newLifecycle(kind Kind) lifecycle {
	return lifecycle{kind: kind, status: StatusPending}
}

// Kind returns the command variant.
func (l *lifecycle) Kind() Kind { return l.kind }

// Status returns the current lifecycle status.
func (l *lifecycle) Status() Status { return l.status }

// OnComplete registers a listener fired once the command commits.
func (l *lifecycle) OnComplete(fn Hook) { l.complete = append(l.complete, fn) }

// OnRollback registers a listener fired if the command is rolled back.
func (l *lifecycle) OnRollback(fn Hook) { l.rollback = append(l.rollback, fn) }

func (l *lifecycle) onExecute(fn Hook) { l.execute = append(l.execute, fn) }

func (l *lifecycle) move(to Status, allowed ...Status) error {
	for _, from := range allowed {
		if l.status == from {
			l.status = to
			return nil
		}
	}
	return &TransitionError{Kind: l.kind, From: l.status, To: to}
}

// markExecuted moves Pending -> Executed and fires execute hooks.
func (l *lifecycle) markExecuted(self Command) error {
	if err := l.move(StatusExecuted, StatusPending); err != nil {
		return err
	}
	fire(l.execute, self)
	return nil
}

// markCommitted moves to Committed from one of the given states. Committing
// twice is a no-op so a command shared by two composites completes once.
func (l *lifecycle) markCommitted(self Command, from ...Status) error {
	if l.status == StatusCommitted {
		return nil
	}
	if err := l.move(StatusCommitted, from...); err != nil {
		return err
	}
	fire(l.complete, self)
	return nil
}

// markRolledBack moves Pending|Executed -> RolledBack. Repeated rollback is
// a no-op; rolling back a committed command is an error.
func (l *lifecycle) markRolledBack(self Command) error {
	if l.status == StatusRolledBack {
		return nil
	}
	if err := l.move(StatusRolledBack, StatusPending, StatusExecuted); err != nil {
		return err
	}
	fire(l.rollback, self)
	return nil
}

func fire(hooks []Hook, self Command) {
	for _, fn := range hooks {
		fn(self)
	}
}
