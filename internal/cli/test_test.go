package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "testdata/scenarios"

// copyScenarios copies the scenario fixtures into a temp dir.
func copyScenarios(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.CopyFS(dir, os.DirFS(scenariosDir)))
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(testRootOptions("text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(testRootOptions("text")), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRootOptions("text")), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommandAllPass(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRootOptions("text")), scenariosDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ card_not_found")
	assert.Contains(t, out, "✓ migrated_swap")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRootOptions("text")), scenariosDir, "--filter", "migrated-*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)

	out, err = execute(t, NewTestCommand(testRootOptions("text")), scenariosDir, "--filter", "migrated_*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "card_not_found")
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := execute(t, NewTestCommand(testRootOptions("text")), scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := copyScenarios(t)
	golden := filepath.Join(dir, "golden", "migrated_swap.golden")
	require.NoError(t, os.WriteFile(golden, []byte("scenario: migrated_swap\n"), 0644))

	out, err := execute(t, NewTestCommand(testRootOptions("text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ migrated_swap")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandUpdate(t *testing.T) {
	dir := copyScenarios(t)
	want, err := os.ReadFile(filepath.Join(dir, "golden", "migrated_swap.golden"))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "golden")))

	out, err := execute(t, NewTestCommand(testRootOptions("text")), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ migrated_swap (golden updated)")

	got, err := os.ReadFile(filepath.Join(dir, "golden", "migrated_swap.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
	assert.FileExists(t, filepath.Join(dir, "golden", "card_not_found.golden"))

	_, err = execute(t, NewTestCommand(testRootOptions("text")), dir)
	require.NoError(t, err)
}

func TestTestCommandAssertionFailure(t *testing.T) {
	dir := t.TempDir()
	scenario := `
name: wrong_count
description: Expects more snapshots than the changelog yields
now: 1700000200000
main:
  - id: bolt
assertions:
  - type: snapshot_count
    count: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_count.yaml"), []byte(scenario), 0644))

	out, err := execute(t, NewTestCommand(testRootOptions("text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "Expected: 3 snapshots")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: broken\n"), 0644))

	out, err := execute(t, NewTestCommand(testRootOptions("text")), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRootOptions("json")), scenariosDir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "card_not_found", resp.Data.Scenarios[0].Name)
}

func TestTestCommandJSONFailure(t *testing.T) {
	dir := copyScenarios(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "card_not_found.golden"), []byte("stale\n"), 0644))

	out, err := execute(t, NewTestCommand(testRootOptions("json")), dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTestFailed, resp.Error.Code)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
}
