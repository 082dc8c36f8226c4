package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uow/internal/store"
)

const seedScenario = `name: seed
schema: blog.cue
entities:
  ada:   { role: user, fields: { name: Ada }, relations: { posts: [hello, bye] } }
  hello: { role: post, fields: { title: Hello } }
  bye:   { role: post, fields: { title: Bye } }
steps:
  - store: ada
  - execute: true
`

// seedDatabase runs the seed scenario twice into a fresh database.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := writeScenario(t, "seed", seedScenario)
	dbPath := filepath.Join(t.TempDir(), "src.db")
	_, err := runInto(t, dbPath, path, "r-1")
	require.NoError(t, err)
	_, err = runInto(t, dbPath, path, "r-2")
	require.NoError(t, err)
	return dbPath
}

func TestJournalText(t *testing.T) {
	dbPath := seedDatabase(t)

	stdout, _, err := execute(NewJournalCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--token", "r-2")
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "r-2 insert default.users")
	assert.NotContains(t, out, "r-1")
}

func TestJournalJSON(t *testing.T) {
	dbPath := seedDatabase(t)

	stdout, _, err := execute(NewJournalCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   []JournalWrite `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	require.Len(t, resp.Data, 6)
	assert.Equal(t, "r-1", resp.Data[0].Token)
	assert.Equal(t, "r-2", resp.Data[5].Token)
	for i := 1; i < len(resp.Data); i++ {
		assert.Greater(t, resp.Data[i].Seq, resp.Data[i-1].Seq)
	}
	assert.Equal(t, "1", resp.Data[1].Payload.Get("user_id").String())
	assert.Len(t, resp.Data[1].Fingerprint, 64)
}

func TestJournalEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	stdout, _, err := execute(NewJournalCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "No writes journaled.")
}

func TestJournalRequiresDatabase(t *testing.T) {
	_, _, err := execute(NewJournalCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db or UOW_DB is required")
}

func TestReplayAllRuns(t *testing.T) {
	src := seedDatabase(t)
	dst := filepath.Join(t.TempDir(), "dst.db")

	stdout, _, err := execute(NewReplayCommand(&RootOptions{Format: "text"}),
		"--db", src, "--into", dst, "--schema", blogSchema)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "✓ Replayed 2 run(s), 6 write(s)")

	st, err := store.Open(dst)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	posts, err := st.Rows(ctx, "posts")
	require.NoError(t, err)
	require.Len(t, posts, 4)
	assert.Equal(t, "2", posts[3].Get("user_id").String())

	tokens, err := st.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1", "r-2"}, tokens)
}

func TestReplaySingleRunJSON(t *testing.T) {
	src := seedDatabase(t)
	dst := filepath.Join(t.TempDir(), "dst.db")

	stdout, _, err := execute(NewReplayCommand(&RootOptions{Format: "json"}),
		"--db", src, "--into", dst, "--schema", blogSchema, "--token", "r-1")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, []string{"r-1"}, resp.Data.Runs)
	assert.Equal(t, 3, resp.Data.Writes)
}

func TestReplayConflictRollsBack(t *testing.T) {
	src := seedDatabase(t)

	// Replaying into the source collides with the existing keys.
	_, _, err := execute(NewReplayCommand(&RootOptions{Format: "text"}),
		"--db", src, "--into", src, "--schema", blogSchema, "--token", "r-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeRun)

	st, err := store.Open(src)
	require.NoError(t, err)
	defer st.Close()
	users, err := st.Rows(context.Background(), "users")
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
