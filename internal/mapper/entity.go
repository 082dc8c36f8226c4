package mapper

import (
	"maps"

	"github.com/roach88/uow/internal/ir"
)

// RowData converts a row into the map shape Adapter.Hydrate expects.
func RowData(row ir.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Entity is implemented by every object the unit of work persists.
// Entities are tracked by identity, so implementations must be pointers.
type Entity interface {
	// EntityRole names the concrete role; a variant role when the entity
	// is a polymorphic subtype.
	EntityRole() string
}

// Adapter moves data between entities and rows. Extract returns column
// values (Go scalars or ir.Value) together with relation values (entities,
// slices of entities, placeholders or nil) keyed by column/relation name.
// Hydrate receives the same shape, with column values as ir.Value.
type Adapter interface {
	Extract(entity Entity) map[string]any
	Hydrate(entity Entity, data map[string]any) error
}

// Factory creates an empty entity of a role. Registered once per registry.
type Factory func(role string) (Entity, error)

// Record is a schemaless entity: a role plus named fields. It is what the
// CLI and scenario harness persist.
type Record struct {
	role   string
	Fields map[string]any
}

var _ Entity = (*Record)(nil)

// NewRecord creates a record of role with a copy of fields.
func NewRecord(role string, fields map[string]any) *Record {
	f := make(map[string]any, len(fields))
	maps.Copy(f, fields)
	return &Record{role: role, Fields: f}
}

// EntityRole returns the record role.
func (r *Record) EntityRole() string { return r.role }

// Get returns a field value.
func (r *Record) Get(name string) any { return r.Fields[name] }

// Set assigns a field value.
func (r *Record) Set(name string, value any) { r.Fields[name] = value }

// RecordAdapter is the Adapter for *Record entities.
type RecordAdapter struct{}

var _ Adapter = RecordAdapter{}

// Extract returns a copy of the record fields.
func (RecordAdapter) Extract(entity Entity) map[string]any {
	rec, ok := entity.(*Record)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(rec.Fields))
	maps.Copy(out, rec.Fields)
	return out
}

// Hydrate writes columns and relation values back into the record.
func (RecordAdapter) Hydrate(entity Entity, data map[string]any) error {
	rec, ok := entity.(*Record)
	if !ok {
		return &ConfigError{
			Code:    ErrCodeInvalidValue,
			Role:    entity.EntityRole(),
			Message: "RecordAdapter can only hydrate *Record entities",
		}
	}
	for k, v := range data {
		rec.Fields[k] = v
	}
	return nil
}

// RecordFactory builds empty records.
func RecordFactory(role string) (Entity, error) {
	return NewRecord(role, nil), nil
}
