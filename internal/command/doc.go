// Package command implements the write-command primitives of the unit of
// work: Insert, Update and Delete leaves, and the Branch, Sequence and Nil
// composites that order them.
//
// ARCHITECTURE:
//
// Commands are pure in-memory values. Nothing here talks to storage. An
// external executor walks the graph (see Leaves) and drives each command
// through its state machine:
//
//	Pending -> Executed -> Committed
//	Pending | Executed -> RolledBack
//
// Hooks registered with OnExecute, OnComplete and OnRollback fire in
// registration order on the matching transition. Composites have no
// Executed state; they go straight from Pending to Committed once every
// child has committed.
//
// Leaves carry a context (values forwarded from related commands, such as
// a foreign key that only becomes known when another insert executes) and
// Update/Delete carry a scope that may be re-bound until execution.
package command
