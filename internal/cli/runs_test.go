package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsEmpty(t *testing.T) {
	db, _ := tempPaths(t)

	stdout, err := execute(t, NewRunsCommand(testRootOptions("text")), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded.")
}

func TestRunsListAndShow(t *testing.T) {
	db, out := tempPaths(t)
	_, err := execute(t, NewBuildCommand(testRootOptions("text")),
		"--local", exportDir, "--db", db, "--skip-migrations", "--out", out, exportID)
	require.NoError(t, err)

	stdout, err := execute(t, NewRunsCommand(testRootOptions("text")), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "run-1")
	assert.Contains(t, stdout, "4 commits")

	stdout, err = execute(t, NewRunsCommand(testRootOptions("json")), "--db", db, "run-1")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "succeeded", resp.Data.Status)
	assert.Equal(t, exportID, resp.Data.CubeID)
	require.Len(t, resp.Data.CommitLog, 4)
	assert.Equal(t, []string{"mainboard", "maybeboard"}, resp.Data.CommitLog[0].Boards)
	assert.Equal(t, []string{"maybeboard"}, resp.Data.CommitLog[1].Boards)
	assert.Equal(t, resp.Data.CommitLog[3].Hash, resp.Data.Head)
}

func TestRunsFilterByCube(t *testing.T) {
	db, out := tempPaths(t)
	_, err := execute(t, NewBuildCommand(testRootOptions("text")),
		"--local", exportDir, "--db", db, "--skip-migrations", "--out", out, exportID)
	require.NoError(t, err)

	stdout, err := execute(t, NewRunsCommand(testRootOptions("json")), "--db", db, "--cube", "other")
	require.NoError(t, err)

	var resp struct {
		Data []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Empty(t, resp.Data)
}

func TestRunsUnknownRun(t *testing.T) {
	db, _ := tempPaths(t)

	_, err := execute(t, NewRunsCommand(testRootOptions("text")), "--db", db, "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown run")
}
