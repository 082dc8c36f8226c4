package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var (
	scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
	blogSchema   = filepath.Join("..", "harness", "testdata", "schema", "blog.cue")
)

func scenarioPath(name string) string {
	return filepath.Join(scenariosDir, name+".yaml")
}

// execute runs cmd with args, capturing stdout and stderr separately.
func execute(cmd *cobra.Command, args ...string) (stdout, stderr *bytes.Buffer, err error) {
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return stdout, stderr, err
}

// writeScenario writes the blog schema and a scenario next to it.
func writeScenario(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	src, err := os.ReadFile(blogSchema)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.cue"), src, 0o644))

	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const failingScenario = `name: wrong_count
schema: blog.cue
entities:
  ada: { role: user, fields: { name: Ada } }
steps:
  - store: ada
  - execute: true
assertions:
  - type: row_count
    table: users
    count: 5
`
