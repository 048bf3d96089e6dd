package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dredger/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string // glob over scenario file names, extension stripped
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the JSON payload of the test command.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run replay scenarios",
		Long: `Run replay scenarios against the sequencer.

Each scenario file describes current boards, a changelog and assertions
on the reconstructed snapshots. When golden/<name>.golden exists next to
the scenario, the rendered trace must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  dredger test ./scenarios
  dredger test ./scenarios --filter "swap-*"
  dredger test ./scenarios --update
  dredger test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")

	return cmd
}

// scenarioRunner runs scenario files for one test invocation and reports
// each outcome as it goes in text mode.
type scenarioRunner struct {
	cmd     *cobra.Command
	opts    *TestOptions
	printer *Printer // nil in JSON mode
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	r := &scenarioRunner{cmd: cmd, opts: opts}
	if opts.Format != "json" {
		if len(files) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
			return nil
		}
		r.printer = NewPrinter(cmd.OutOrStdout())
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := r.run(file)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if r.printer == nil {
		if err := writeTestJSON(cmd, result); err != nil {
			return err
		}
	} else {
		r.printer.Info("")
		r.printer.Info("Test Summary: %d passed, %d failed, %d total", result.Passed, result.Failed, result.Total)
		if result.Failed == 0 {
			r.printer.Success("All scenarios passed")
		}
	}
	return testFailure(result)
}

// findScenarioFiles walks dir for .yaml and .yml files, skipping golden
// directories, in lexical order.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir():
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		case !isScenarioFile(path):
			return nil
		}
		if filter != "" {
			// Pattern validated above.
			if ok, _ := filepath.Match(filter, scenarioStem(path)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func isScenarioFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func scenarioStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// goldenPath is <dir>/golden/<stem>.golden for a scenario at <dir>/<stem>.yaml.
func goldenPath(scenarioFile string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenarioStem(scenarioFile)+".golden")
}

func (r *scenarioRunner) run(file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return r.fail(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := harness.RunContext(commandContext(r.cmd), scenario)
	if err != nil {
		return r.fail(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}
	trace := harness.RenderTrace(scenario.Name, result)
	golden := goldenPath(file)

	if r.opts.Update {
		if err := writeGolden(golden, trace); err != nil {
			return r.fail(scenario.Name, err.Error())
		}
		return r.pass(scenario.Name, " (golden updated)")
	}

	want, err := os.ReadFile(golden)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Assertions alone decide.
	case err != nil:
		return r.fail(scenario.Name, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(want, trace):
		return r.fail(scenario.Name, "trace does not match golden file (run with --update to regenerate)")
	}

	if !result.Pass {
		return r.fail(scenario.Name, result.Errors...)
	}
	return r.pass(scenario.Name, "")
}

func (r *scenarioRunner) pass(name, note string) ScenarioResult {
	if r.printer != nil {
		r.printer.Success("%s%s", name, note)
	}
	return ScenarioResult{Name: name, Pass: true}
}

func (r *scenarioRunner) fail(name string, errs ...string) ScenarioResult {
	if r.printer != nil {
		r.printer.Failure("%s", name)
		for _, e := range errs {
			r.printer.Info("  %s", e)
		}
	}
	return ScenarioResult{Name: name, Errors: errs}
}

func writeGolden(path string, trace []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, trace, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// testFailure is the command error for a run with failed scenarios, or nil.
func testFailure(result TestResult) error {
	if result.Failed == 0 {
		return nil
	}
	return &ExitError{
		Code:      ExitFailure,
		ErrorCode: CodeTestFailed,
		Message:   fmt.Sprintf("%d scenario(s) failed", result.Failed),
	}
}

// writeTestJSON writes the envelope; a failed run carries both the result
// and the error so scripts see which scenarios broke.
func writeTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if err := testFailure(result); err != nil {
		var exitErr *ExitError
		errors.As(err, &exitErr)
		response.Status = "error"
		response.Error = &CLIError{Code: exitErr.ErrorCode, Message: exitErr.Message}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(response)
}
