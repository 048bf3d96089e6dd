package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

const traceTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// RenderTrace renders a scenario result as the text stored in golden files.
//
// Every snapshot is one block, oldest first. A board that did not change at
// that instant renders as "-", an empty board as "(empty)". A failed replay
// renders as a single error line.
func RenderTrace(scenarioName string, result *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", scenarioName)

	if re := result.ReplayErr; re != nil {
		fmt.Fprintf(&buf, "error: %s board=%s op=%s id=%s name=%s\n", re.Code, re.Board, re.Op, re.CardID, re.CardName)
		return []byte(buf.String())
	}

	buf.WriteString(renderEvents(result.Trace))
	if result.Commits >= 0 {
		fmt.Fprintf(&buf, "commits: %d\n", result.Commits)
	}
	return []byte(buf.String())
}

func renderEvents(trace []TraceEvent) string {
	var buf strings.Builder
	for _, ev := range trace {
		fmt.Fprintf(&buf, "[%d] %s\n", ev.Seq, ev.Timestamp.Format(traceTimeFormat))
		fmt.Fprintf(&buf, "  main: %s\n", renderBoard(ev.Main))
		fmt.Fprintf(&buf, "  maybe: %s\n", renderBoard(ev.Maybe))
	}
	return buf.String()
}

func renderBoard(entries []string) string {
	switch {
	case entries == nil:
		return "-"
	case len(entries) == 0:
		return "(empty)"
	default:
		return strings.Join(entries, ", ")
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, RenderTrace(scenarioName, result))
}
