package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanText(t *testing.T) {
	stdout, _, err := execute(NewPlanCommand(&RootOptions{Format: "text"}), scenarioPath("create_user_with_posts"))
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "Scenario: create_user_with_posts")
	assert.Contains(t, out, "[0] store ada")
	assert.Contains(t, out, "[1] execute run=blog-1")
	assert.Contains(t, out, `insert users {"name":"Ada"} -> 1`)
	assert.Contains(t, out, "✓ All assertions passed")
}

func TestPlanJSONIsSnapshot(t *testing.T) {
	stdout, _, err := execute(NewPlanCommand(&RootOptions{Format: "json"}), scenarioPath("create_user_with_posts"))
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "create_user_with_posts", resp.Data["name"])
	assert.Contains(t, resp.Data, "steps")
}

func TestPlanFailedAssertion(t *testing.T) {
	path := writeScenario(t, "wrong_count", failingScenario)

	stdout, _, err := execute(NewPlanCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout.String(), "✗ assertion 0")
}

func TestPlanMissingScenario(t *testing.T) {
	_, _, err := execute(NewPlanCommand(&RootOptions{Format: "text"}), "/nonexistent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPlanInvalidScenario(t *testing.T) {
	path := writeScenario(t, "broken", "name: broken\nschema: blog.cue\nsteps:\n  - store: nobody\n")

	_, _, err := execute(NewPlanCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeScenario)
}
