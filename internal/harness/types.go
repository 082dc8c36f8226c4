package harness

import "github.com/roach88/uow/internal/ir"

// StepTrace records what one step produced.
type StepTrace struct {
	Index int
	Op    string
	// Entity is the entity name of store, delete and set steps.
	Entity string
	// Root is the kind of the queued command (store and delete).
	Root string
	// Leaves are the queued writes as they stood when queued.
	Leaves []LeafTrace
	// Token and Writes describe an execute step.
	Token  string
	Writes []WriteTrace
}

// LeafTrace is a queued write.
type LeafTrace struct {
	Kind     string
	Database string
	Table    string
	Data     ir.Row
	Scope    ir.Row
}

// WriteTrace is a journaled write.
type WriteTrace struct {
	Op      string
	Table   string
	Payload ir.Row
	Scope   ir.Row
	Result  ir.Value
}

// Label is the "op table" form used by write_order assertions.
func (w WriteTrace) Label() string { return w.Op + " " + w.Table }

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool

	// Steps holds one trace per scenario step.
	Steps []StepTrace

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string

	// State holds the final rows of each table read by assertions.
	State map[string][]ir.Row
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Errors: []string{},
		State:  make(map[string][]ir.Row),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Writes returns every journaled write in order.
func (r *Result) Writes() []WriteTrace {
	var out []WriteTrace
	for _, s := range r.Steps {
		out = append(out, s.Writes...)
	}
	return out
}
