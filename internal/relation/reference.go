package relation

import (
	"github.com/roach88/uow/internal/ir"
)

// Placeholder is a related value that has not been loaded yet.
type Placeholder interface {
	Role() string
	Scope() ir.Row
	Loaded() bool
	// Resolve loads the value once: a mapper.Entity (or nil) for a single
	// reference, a []mapper.Entity for a collection.
	Resolve() (any, error)
}

// Reference is the Placeholder relations create on first load.
type Reference struct {
	role     string
	scope    ir.Row
	many     bool
	source   Source
	resolved any
}

var _ Placeholder = (*Reference)(nil)

// NewReference creates a placeholder for one entity of role.
func NewReference(role string, scope ir.Row, source Source) *Reference {
	return &Reference{role: role, scope: scope.Clone(), source: source}
}

// NewCollectionReference creates a placeholder for every entity of role
// matching scope.
func NewCollectionReference(role string, scope ir.Row, source Source) *Reference {
	r := NewReference(role, scope, source)
	r.many = true
	return r
}

// Role returns the target role.
func (r *Reference) Role() string { return r.role }

// Scope returns the predicate selecting the target.
func (r *Reference) Scope() ir.Row { return r.scope.Clone() }

// Many reports whether the reference resolves to a collection.
func (r *Reference) Many() bool { return r.many }

// Loaded reports whether Resolve already ran.
func (r *Reference) Loaded() bool { return r.source == nil }

// Resolve loads the target through the source on first call.
func (r *Reference) Resolve() (any, error) {
	if r.source == nil {
		return r.resolved, nil
	}
	if r.many {
		list, err := r.source.FindAll(r.role, r.scope)
		if err != nil {
			return nil, err
		}
		r.resolved = list
	} else {
		one, err := r.source.FindOne(r.role, r.scope)
		if err != nil {
			return nil, err
		}
		if one != nil {
			r.resolved = one
		}
	}
	r.source = nil
	return r.resolved, nil
}
