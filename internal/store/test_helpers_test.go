package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/uow/internal/schema"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// blogRegistry declares users with posts.
func blogRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(
		schema.Definition{
			Role: "user", Table: "users", PrimaryKey: "id", Columns: []string{"id", "name"},
			Relations: []schema.RelationDef{{
				Name: "posts", Type: schema.HasMany, Target: "post",
				InnerKey: "id", OuterKey: "user_id", Cascade: true, Nullable: true,
			}},
		},
		schema.Definition{
			Role: "post", Table: "posts", PrimaryKey: "id", Columns: []string{"id", "title", "user_id"},
		},
	)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	return reg
}

// createBlogStore creates a store with the blog tables.
func createBlogStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	if err := s.EnsureTables(context.Background(), blogRegistry(t)); err != nil {
		t.Fatalf("EnsureTables() failed: %v", err)
	}
	return s
}

func mustLookup(t *testing.T, role string) *schema.Definition {
	t.Helper()
	def, err := blogRegistry(t).Lookup(role)
	if err != nil {
		t.Fatalf("Lookup(%q) failed: %v", role, err)
	}
	return def
}
