package heap

import "fmt"

// Lifecycle is an entity's position in the persistence state machine.
//
//	New -> ScheduledInsert -> Loaded -> ScheduledUpdate -> Loaded
//	New | Loaded -> ScheduledDelete -> (detached)
type Lifecycle int

const (
	// New: untracked or never written.
	New Lifecycle = iota
	// ScheduledInsert: an insert is queued.
	ScheduledInsert
	// ScheduledUpdate: an update is queued.
	ScheduledUpdate
	// ScheduledDelete: a delete is queued.
	ScheduledDelete
	// Loaded: persisted and idle.
	Loaded
)

// String returns the snake_case lifecycle name.
func (l Lifecycle) String() string {
	switch l {
	case New:
		return "new"
	case ScheduledInsert:
		return "scheduled_insert"
	case ScheduledUpdate:
		return "scheduled_update"
	case ScheduledDelete:
		return "scheduled_delete"
	case Loaded:
		return "loaded"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
}

// Scheduled reports whether a write is queued.
func (l Lifecycle) Scheduled() bool {
	return l == ScheduledInsert || l == ScheduledUpdate || l == ScheduledDelete
}
