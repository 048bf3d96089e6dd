package harness

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/engine"
)

// TestScenarios replays every scenario under testdata/scenarios and compares
// its trace with testdata/golden/<name>.golden.
//
// To regenerate golden files:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
		})
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/basic_add_remove.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	AssertGolden(t, "basic_add_remove", result)
}

func TestRenderTrace(t *testing.T) {
	r := NewResult()
	r.resolver = cube.NewResolver(nil)
	r.AddSnapshotTrace(cube.Snapshot{
		Timestamp: time.UnixMilli(1_700_000_000_000),
		Main:      cube.Board{{ID: "bolt", Name: "Lightning Bolt"}},
		Maybe:     cube.Board{},
	})
	r.AddSnapshotTrace(cube.Snapshot{
		Timestamp: time.UnixMilli(1_700_000_119_999),
		Maybe:     cube.Board{{ID: "vault", Name: "Lim-Dul's Vault"}},
	})

	want := `scenario: render
[0] 2023-11-14T22:13:20.000Z
  main: bolt:Lightning Bolt
  maybe: (empty)
[1] 2023-11-14T22:15:19.999Z
  main: -
  maybe: vault:Lim-Dul's Vault
`
	assert.Equal(t, want, string(RenderTrace("render", r)))

	r.Commits = 2
	assert.Equal(t, want+"commits: 2\n", string(RenderTrace("render", r)))
}

func TestRenderTrace_ReplayError(t *testing.T) {
	re := engine.NewIndexError("remove", cube.Card{ID: "ring", Name: "Sol Ring"}, 7, 2)
	re.Board = cube.Maybeboard

	r := NewResult()
	r.ReplayErr = re

	assert.Equal(t,
		"scenario: broken\nerror: INDEX_OUT_OF_RANGE board=maybeboard op=remove id=ring name=Sol Ring\n",
		string(RenderTrace("broken", r)))
}
