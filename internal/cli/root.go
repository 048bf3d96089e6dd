package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dredger/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Injected in tests; production defaults are used when nil.
	RunIDs  RunIDGenerator
	Clock   engine.Clock
	Environ map[string]string // nil reads the process environment
	LogOut  io.Writer         // nil logs to stderr
}

// versionInfo is reported by --version.
var versionInfo = "dev"

// SetVersionInfo records build metadata for --version.
func SetVersionInfo(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dredger CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dredger",
		Short: "dredger - rebuild a cube's history as a git repository",
		Long: `Reconstruct the full edit history of a CubeCobra cube from its current
state and changelog, and write it as a linear git history with one commit per
change.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		Version:       versionInfo,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to dredger.yaml")

	// Add subcommands
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewMigrationsCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are rendered in the selected output format on stderr.
func Execute(ctx context.Context, args []string) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Argument and flag errors come from cobra before any command runs.
		err = WrapExitError(ExitCommandError, "invalid usage", err)
	}
	if err != nil {
		f := &OutputFormatter{Format: opts.Format, Writer: os.Stderr, Verbose: opts.Verbose}
		if !isValidFormat(f.Format) {
			f.Format = "text"
		}
		_ = f.Report(err)
	}
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
