package schema

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownRole is wrapped when a role has no definition.
var ErrUnknownRole = errors.New("unknown role")

// Registry resolves roles to definitions. Variant roles resolve to their
// parent definition. A Registry is immutable after construction.
type Registry struct {
	defs    map[string]*Definition
	order   []string
	parents map[string]string // variant role -> parent role
}

// NewRegistry validates defs and indexes them, including variants.
// Definitions keep their given order.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		defs:    make(map[string]*Definition, len(defs)),
		parents: make(map[string]string),
	}

	var errs []error
	for i := range defs {
		def := defs[i]
		if def.Database == "" {
			def.Database = DefaultDatabase
		}
		if err := def.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.defs[def.Role]; dup {
			errs = append(errs, fmt.Errorf("duplicate role %q", def.Role))
			continue
		}
		r.defs[def.Role] = &def
		r.order = append(r.order, def.Role)
	}

	for _, role := range r.order {
		def := r.defs[role]
		for _, alias := range sortedAliases(def.Variants) {
			child := def.Variants[alias]
			if _, clash := r.defs[child]; clash {
				errs = append(errs, fmt.Errorf("%s: variant %q is also a top-level role", role, child))
				continue
			}
			if other, dup := r.parents[child]; dup {
				errs = append(errs, fmt.Errorf("variant %q declared by both %q and %q", child, other, role))
				continue
			}
			r.parents[child] = role
		}
	}

	for _, role := range r.order {
		for _, rel := range r.defs[role].Relations {
			if _, err := r.Lookup(rel.Target); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: target %q is not defined", role, rel.Name, rel.Target))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return r, nil
}

// Lookup returns the definition for role, following variants to their parent.
func (r *Registry) Lookup(role string) (*Definition, error) {
	if def, ok := r.defs[role]; ok {
		return def, nil
	}
	if parent, ok := r.parents[role]; ok {
		return r.defs[parent], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

// Roles returns top-level roles in declaration order.
func (r *Registry) Roles() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Parent returns the top-level role a variant belongs to, or role itself.
func (r *Registry) Parent(role string) string {
	if parent, ok := r.parents[role]; ok {
		return parent
	}
	return role
}

// VariantAlias returns the discriminator alias def declares for a subtype role.
func (d *Definition) VariantAlias(role string) (string, bool) {
	for _, alias := range sortedAliases(d.Variants) {
		if d.Variants[alias] == role {
			return alias, true
		}
	}
	return "", false
}

// VariantRole returns the subtype role for a discriminator alias.
func (d *Definition) VariantRole(alias string) (string, bool) {
	role, ok := d.Variants[alias]
	return role, ok
}

func sortedAliases(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
