// Package schema holds entity metadata: table, primary key, columns,
// polymorphic variants and declared relations. Definitions are compiled
// from CUE (see Compile) or built programmatically, and resolved once into
// a Registry that mappers consult.
package schema

import (
	"errors"
	"fmt"
	"slices"
)

// Discriminator is the system column that stores an entity's variant alias.
const Discriminator = "_type"

// DefaultDatabase is used when a definition names no database.
const DefaultDatabase = "default"

// RelationType names a relation implementation.
type RelationType string

const (
	// BelongsTo: the owner holds a key referencing the target. The target
	// is a dependency and is written before the owner.
	BelongsTo RelationType = "belongs_to"
	// HasMany: targets hold a key referencing the owner. Targets are
	// dependents and are written after the owner.
	HasMany RelationType = "has_many"
)

// RelationDef declares one relation of an entity.
type RelationDef struct {
	Name     string
	Type     RelationType
	Target   string
	InnerKey string // column on the owner side
	OuterKey string // column on the target side
	Cascade  bool
	Nullable bool
}

// Definition is the metadata of one entity role.
type Definition struct {
	Role       string
	Database   string
	Table      string
	PrimaryKey string
	Columns    []string

	// Variants maps discriminator alias -> subtype role. Subtypes share the
	// parent's table and mapper.
	Variants map[string]string

	// Relations in declaration order.
	Relations []RelationDef
}

// HasColumn reports whether column is declared.
func (d *Definition) HasColumn(column string) bool {
	return slices.Contains(d.Columns, column)
}

// Relation returns a declared relation by name.
func (d *Definition) Relation(name string) (RelationDef, bool) {
	for _, r := range d.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationDef{}, false
}

// validate checks the definition in isolation.
func (d *Definition) validate() error {
	var errs []error
	if d.Role == "" {
		errs = append(errs, errors.New("role is required"))
	}
	if d.Table == "" {
		errs = append(errs, fmt.Errorf("%s: table is required", d.Role))
	}
	if d.PrimaryKey == "" {
		errs = append(errs, fmt.Errorf("%s: primary_key is required", d.Role))
	} else if !d.HasColumn(d.PrimaryKey) {
		errs = append(errs, fmt.Errorf("%s: primary key %q is not a declared column", d.Role, d.PrimaryKey))
	}
	seen := make(map[string]bool)
	for _, r := range d.Relations {
		if seen[r.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate relation %q", d.Role, r.Name))
		}
		seen[r.Name] = true
		if d.HasColumn(r.Name) {
			errs = append(errs, fmt.Errorf("%s: relation %q shadows a column", d.Role, r.Name))
		}
		switch r.Type {
		case BelongsTo, HasMany:
		default:
			errs = append(errs, fmt.Errorf("%s.%s: unknown relation type %q", d.Role, r.Name, r.Type))
		}
		if r.InnerKey == "" || r.OuterKey == "" {
			errs = append(errs, fmt.Errorf("%s.%s: inner_key and outer_key are required", d.Role, r.Name))
		}
	}
	return errors.Join(errs...)
}
