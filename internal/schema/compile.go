package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports a schema problem with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileFile reads a CUE file and compiles it into a Registry.
func CompileFile(path string) (*Registry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(src, path)
}

// Compile parses CUE source declaring entities and builds a Registry.
//
// Expected shape:
//
//	entities: {
//		user: {
//			table:       "users"
//			primary_key: "id"
//			columns: ["id", "name", "_type"]
//			variants: admin: "admin_user"
//			relations: posts: {
//				type: "has_many", target: "post"
//				inner_key: "id", outer_key: "user_id"
//				cascade: true
//			}
//		}
//	}
//
// Entities and relations keep their declaration order.
func Compile(src []byte, filename string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entities"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{
			Field:   "entities",
			Message: "entities is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []Definition
	for iter.Next() {
		def, err := compileEntity(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	return NewRegistry(defs...)
}

func compileEntity(role string, v cue.Value) (Definition, error) {
	def := Definition{Role: role}

	var err error
	if def.Table, err = requiredString(v, "table", role); err != nil {
		return def, err
	}
	if def.PrimaryKey, err = requiredString(v, "primary_key", role); err != nil {
		return def, err
	}
	if def.Database, err = optionalString(v, "database"); err != nil {
		return def, err
	}

	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if !columnsVal.Exists() {
		return def, &CompileError{
			Field:   role + ".columns",
			Message: "columns is required",
			Pos:     v.Pos(),
		}
	}
	list, err := columnsVal.List()
	if err != nil {
		return def, formatCUEError(err)
	}
	for list.Next() {
		col, err := list.Value().String()
		if err != nil {
			return def, formatCUEError(err)
		}
		def.Columns = append(def.Columns, col)
	}

	if variantsVal := v.LookupPath(cue.ParsePath("variants")); variantsVal.Exists() {
		def.Variants = make(map[string]string)
		vi, err := variantsVal.Fields()
		if err != nil {
			return def, formatCUEError(err)
		}
		for vi.Next() {
			target, err := vi.Value().String()
			if err != nil {
				return def, formatCUEError(err)
			}
			def.Variants[vi.Label()] = target
		}
	}

	if relationsVal := v.LookupPath(cue.ParsePath("relations")); relationsVal.Exists() {
		ri, err := relationsVal.Fields()
		if err != nil {
			return def, formatCUEError(err)
		}
		for ri.Next() {
			rel, err := compileRelation(role, ri.Label(), ri.Value())
			if err != nil {
				return def, err
			}
			def.Relations = append(def.Relations, rel)
		}
	}

	return def, nil
}

func compileRelation(role, name string, v cue.Value) (RelationDef, error) {
	field := role + ".relations." + name
	rel := RelationDef{Name: name}

	typ, err := requiredString(v, "type", field)
	if err != nil {
		return rel, err
	}
	rel.Type = RelationType(typ)
	switch rel.Type {
	case BelongsTo, HasMany:
	default:
		return rel, &CompileError{
			Field:   field + ".type",
			Message: fmt.Sprintf("unknown relation type %q", typ),
			Pos:     v.Pos(),
		}
	}

	if rel.Target, err = requiredString(v, "target", field); err != nil {
		return rel, err
	}
	if rel.InnerKey, err = requiredString(v, "inner_key", field); err != nil {
		return rel, err
	}
	if rel.OuterKey, err = requiredString(v, "outer_key", field); err != nil {
		return rel, err
	}
	if rel.Cascade, err = optionalBool(v, "cascade", true); err != nil {
		return rel, err
	}
	if rel.Nullable, err = optionalBool(v, "nullable", true); err != nil {
		return rel, err
	}
	return rel, nil
}

func requiredString(v cue.Value, path, owner string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", &CompileError{
			Field:   owner + "." + path,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, path string, def bool) (bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return def, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
