package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/schema"
)

func TestPredicate(t *testing.T) {
	where, args := predicate(ir.Row{"b": ir.Int(2), "a": ir.String("x")}, 3)
	assert.Equal(t, `"a" = $3 AND "b" = $4`, where)
	assert.Equal(t, []any{"x", "2"}, args)

	where, args = predicate(ir.Row{}, 1)
	assert.Equal(t, "FALSE", where)
	assert.Nil(t, args)
}

func TestArgs_NullStaysNil(t *testing.T) {
	row := ir.Row{"a": ir.Null{}, "b": ir.Bool(true)}
	assert.Equal(t, []any{nil, "true"}, args(row, []string{"a", "b"}))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", placeholders(1, 3))
	assert.Equal(t, "$4", placeholders(4, 1))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, quoteIdent("users"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}

// TestStore_RoundTrip needs a database; set UOW_PG_DSN to run it.
func TestStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("UOW_PG_DSN")
	if dsn == "" {
		t.Skip("UOW_PG_DSN not set")
	}
	ctx := context.Background()

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	reg, err := schema.NewRegistry(schema.Definition{
		Role: "uow_test_user", Table: "uow_test_users", PrimaryKey: "id", Columns: []string{"id", "name"},
	})
	require.NoError(t, err)
	require.NoError(t, s.DropTables(ctx, reg))
	require.NoError(t, s.EnsureTables(ctx, reg))
	t.Cleanup(func() { _ = s.DropTables(context.Background(), reg) })

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	id, err := tx.Insert(ctx, "default", "uow_test_users", ir.Row{"name": ir.String("ada")})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), id)

	n, err := tx.Update(ctx, "default", "uow_test_users", ir.Row{"name": ir.String("bob")}, ir.Row{"id": id})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, tx.Commit())

	rows, err := s.Rows(ctx, "uow_test_users")
	require.NoError(t, err)
	assert.Equal(t, []ir.Row{{"id": ir.Int(1), "name": ir.String("bob")}}, rows)

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	n, err = tx.Delete(ctx, "default", "uow_test_users", ir.Row{"id": id})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, tx.Rollback())

	rows, err = s.Rows(ctx, "uow_test_users")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
