package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blogDefinitions() []Definition {
	return []Definition{
		{
			Role:       "user",
			Table:      "users",
			PrimaryKey: "id",
			Columns:    []string{"id", "name"},
			Variants:   map[string]string{"admin": "admin_user"},
			Relations: []RelationDef{
				{Name: "posts", Type: HasMany, Target: "post", InnerKey: "id", OuterKey: "user_id", Cascade: true},
			},
		},
		{
			Role:       "post",
			Table:      "posts",
			PrimaryKey: "id",
			Columns:    []string{"id", "title", "user_id"},
			Relations: []RelationDef{
				{Name: "author", Type: BelongsTo, Target: "user", InnerKey: "user_id", OuterKey: "id"},
			},
		},
	}
}

// =============================================================================
// Registry Tests
// =============================================================================

func TestNewRegistry_Lookup(t *testing.T) {
	reg, err := NewRegistry(blogDefinitions()...)
	require.NoError(t, err)

	def, err := reg.Lookup("user")
	require.NoError(t, err)
	assert.Equal(t, "users", def.Table)
	assert.Equal(t, DefaultDatabase, def.Database)
	assert.Equal(t, []string{"user", "post"}, reg.Roles())
}

func TestRegistry_VariantResolvesToParent(t *testing.T) {
	reg, err := NewRegistry(blogDefinitions()...)
	require.NoError(t, err)

	def, err := reg.Lookup("admin_user")
	require.NoError(t, err)
	assert.Equal(t, "user", def.Role)
	assert.Equal(t, "user", reg.Parent("admin_user"))
	assert.Equal(t, "post", reg.Parent("post"))

	alias, ok := def.VariantAlias("admin_user")
	require.True(t, ok)
	assert.Equal(t, "admin", alias)

	role, ok := def.VariantRole("admin")
	require.True(t, ok)
	assert.Equal(t, "admin_user", role)

	_, ok = def.VariantRole("guest")
	assert.False(t, ok)
}

func TestRegistry_UnknownRole(t *testing.T) {
	reg, err := NewRegistry(blogDefinitions()...)
	require.NoError(t, err)

	_, err = reg.Lookup("comment")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownRole))
}

func TestNewRegistry_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		defs    []Definition
		wantErr string
	}{
		{
			name:    "missing table",
			defs:    []Definition{{Role: "user", PrimaryKey: "id", Columns: []string{"id"}}},
			wantErr: "table is required",
		},
		{
			name:    "primary key not a column",
			defs:    []Definition{{Role: "user", Table: "users", PrimaryKey: "id", Columns: []string{"name"}}},
			wantErr: `primary key "id" is not a declared column`,
		},
		{
			name: "duplicate role",
			defs: []Definition{
				{Role: "user", Table: "users", PrimaryKey: "id", Columns: []string{"id"}},
				{Role: "user", Table: "people", PrimaryKey: "id", Columns: []string{"id"}},
			},
			wantErr: `duplicate role "user"`,
		},
		{
			name: "unknown relation target",
			defs: []Definition{{
				Role: "user", Table: "users", PrimaryKey: "id", Columns: []string{"id"},
				Relations: []RelationDef{{Name: "posts", Type: HasMany, Target: "post", InnerKey: "id", OuterKey: "user_id"}},
			}},
			wantErr: `target "post" is not defined`,
		},
		{
			name: "unknown relation type",
			defs: []Definition{{
				Role: "user", Table: "users", PrimaryKey: "id", Columns: []string{"id"},
				Relations: []RelationDef{{Name: "self", Type: "many_to_many", Target: "user", InnerKey: "id", OuterKey: "id"}},
			}},
			wantErr: `unknown relation type "many_to_many"`,
		},
		{
			name: "relation shadows column",
			defs: []Definition{{
				Role: "user", Table: "users", PrimaryKey: "id", Columns: []string{"id", "boss"},
				Relations: []RelationDef{{Name: "boss", Type: BelongsTo, Target: "user", InnerKey: "boss_id", OuterKey: "id"}},
			}},
			wantErr: `relation "boss" shadows a column`,
		},
		{
			name: "variant clashes with role",
			defs: []Definition{
				{Role: "user", Table: "users", PrimaryKey: "id", Columns: []string{"id"}, Variants: map[string]string{"p": "post"}},
				{Role: "post", Table: "posts", PrimaryKey: "id", Columns: []string{"id"}},
			},
			wantErr: `variant "post" is also a top-level role`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defs...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefinition_Relation(t *testing.T) {
	defs := blogDefinitions()
	rel, ok := defs[1].Relation("author")
	require.True(t, ok)
	assert.Equal(t, BelongsTo, rel.Type)

	_, ok = defs[1].Relation("missing")
	assert.False(t, ok)
}

// =============================================================================
// CUE Compile Tests
// =============================================================================

func TestCompileFile_Blog(t *testing.T) {
	reg, err := CompileFile("testdata/blog.cue")
	require.NoError(t, err)

	assert.Equal(t, []string{"user", "post"}, reg.Roles())

	user, err := reg.Lookup("user")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "email", "_type"}, user.Columns)
	assert.Equal(t, map[string]string{"admin": "admin_user"}, user.Variants)
	require.Len(t, user.Relations, 1)
	assert.Equal(t, RelationDef{
		Name: "posts", Type: HasMany, Target: "post",
		InnerKey: "id", OuterKey: "user_id", Cascade: true, Nullable: true,
	}, user.Relations[0])

	post, err := reg.Lookup("post")
	require.NoError(t, err)
	assert.Equal(t, "content", post.Database)
	assert.False(t, post.Relations[0].Cascade)
	assert.False(t, post.Relations[0].Nullable)
}

func TestCompile_RelationOrderPreserved(t *testing.T) {
	src := `
entities: node: {
	table: "nodes"
	primary_key: "id"
	columns: ["id", "parent_id", "owner_id"]
	relations: {
		zeta: {type: "belongs_to", target: "node", inner_key: "parent_id", outer_key: "id"}
		alpha: {type: "has_many", target: "node", inner_key: "id", outer_key: "parent_id"}
		mid: {type: "belongs_to", target: "node", inner_key: "owner_id", outer_key: "id"}
	}
}`
	reg, err := Compile([]byte(src), "order.cue")
	require.NoError(t, err)

	def, err := reg.Lookup("node")
	require.NoError(t, err)
	var names []string
	for _, r := range def.Relations {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
}

func TestCompile_MissingEntities(t *testing.T) {
	_, err := Compile([]byte(`foo: 1`), "empty.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "entities", ce.Field)
}

func TestCompile_MissingTable(t *testing.T) {
	_, err := Compile([]byte(`entities: user: {primary_key: "id", columns: ["id"]}`), "bad.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user.table")
}

func TestCompile_BadRelationType(t *testing.T) {
	src := `entities: user: {
	table: "users", primary_key: "id", columns: ["id"]
	relations: friends: {type: "many_to_many", target: "user", inner_key: "id", outer_key: "id"}
}`
	_, err := Compile([]byte(src), "bad.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown relation type "many_to_many"`)
}

func TestCompile_SyntaxErrorHasPosition(t *testing.T) {
	_, err := Compile([]byte("entities: {"), "broken.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "broken.cue")
}
