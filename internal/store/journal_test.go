package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uow/internal/ir"
	"github.com/roach88/uow/internal/runner"
)

// writeRun commits a user insert, a post insert, a user update and a post
// delete under token.
func writeRun(t *testing.T, s *Store, token string) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	tx.(runner.Tokened).SetToken(token)

	uid, err := tx.Insert(ctx, "default", "users", ir.Row{"name": ir.String("ada")})
	require.NoError(t, err)
	pid, err := tx.Insert(ctx, "default", "posts", ir.Row{"title": ir.String("hello"), "user_id": uid})
	require.NoError(t, err)
	_, err = tx.Update(ctx, "default", "users", ir.Row{"name": ir.String("ada l")}, ir.Row{"id": uid})
	require.NoError(t, err)
	_, err = tx.Delete(ctx, "default", "posts", ir.Row{"id": pid})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func TestReadJournal_OrderedBySeq(t *testing.T) {
	s := createBlogStore(t)
	writeRun(t, s, "run-1")

	entries, err := s.ReadJournal(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	ops := make([]string, len(entries))
	for i, e := range entries {
		ops[i] = e.Op
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, "run-1", e.Token)
		assert.Equal(t, "default", e.Database)
	}
	assert.Equal(t, []string{"insert", "insert", "update", "delete"}, ops)

	assert.Equal(t, ir.Row{"title": ir.String("hello"), "user_id": ir.Int(1)}, entries[1].Payload)
	assert.Equal(t, ir.Int(1), entries[1].Result)
	assert.Equal(t, ir.Row{"id": ir.Int(1)}, entries[2].Scope)
	assert.Equal(t, ir.Int(1), entries[2].Result)
	assert.Equal(t, ir.Row{}, entries[3].Payload)
}

func TestReadJournal_EmptyReturnsEmptySlice(t *testing.T) {
	s := createBlogStore(t)

	entries, err := s.ReadJournal(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestReadJournal_FiltersByToken(t *testing.T) {
	s := createBlogStore(t)
	writeRun(t, s, "run-1")
	insertUser(t, s, "run-2", "bob")

	entries, err := s.ReadJournal(context.Background(), "run-2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5), entries[0].Seq)

	all, err := s.ReadJournal(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	tokens, err := s.Tokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2"}, tokens)
}

func TestReplay_ReproducesTables(t *testing.T) {
	src := createBlogStore(t)
	writeRun(t, src, "run-1")

	dst := createBlogStore(t)
	ctx := context.Background()

	tx, err := dst.Begin(ctx)
	require.NoError(t, err)
	tx.(runner.Tokened).SetToken("replay")
	n, err := src.Replay(ctx, "run-1", tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, 4, n)

	for _, table := range []string{"users", "posts"} {
		want, err := src.Rows(ctx, table)
		require.NoError(t, err)
		got, err := dst.Rows(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, got, table)
	}

	replayed, err := dst.ReadJournal(ctx, "replay")
	require.NoError(t, err)
	assert.Len(t, replayed, 4)
}

func TestReplay_RequiresToken(t *testing.T) {
	s := createBlogStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = s.Replay(context.Background(), "", tx)
	assert.Error(t, err)
}

func TestReplay_StopsOnFailure(t *testing.T) {
	src := createBlogStore(t)
	writeRun(t, src, "run-1")

	// dst lacks the posts table.
	dst := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, dst.EnsureTable(ctx, mustLookup(t, "user")))

	tx, err := dst.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	n, err := src.Replay(ctx, "run-1", tx)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "replay seq 2")
}

func TestReadJournal_RecordsFingerprint(t *testing.T) {
	s := createBlogStore(t)
	insertUser(t, s, "run-1", "ada")

	entries, err := s.ReadJournal(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	want, err := ir.Fingerprint(ir.Row{"name": ir.String("ada")})
	require.NoError(t, err)
	assert.Equal(t, want, entries[0].Fingerprint)
}

func TestReplay_RejectsTamperedPayload(t *testing.T) {
	src := createBlogStore(t)
	writeRun(t, src, "run-1")
	ctx := context.Background()

	_, err := src.db.ExecContext(ctx, `UPDATE write_journal SET payload = '{"title":"forged","user_id":1}' WHERE seq = 2`)
	require.NoError(t, err)

	dst := createBlogStore(t)
	tx, err := dst.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	n, err := src.Replay(ctx, "run-1", tx)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "replay seq 2: payload fingerprint mismatch")
}
