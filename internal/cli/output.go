package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/dredger/internal/config"
	"github.com/roach88/dredger/internal/engine"
	"github.com/roach88/dredger/internal/history"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // History could not be reconstructed (inconsistent changelog, non-deterministic replay)
	ExitCommandError = 2 // Command error (bad config, destination exists, upstream unreachable, etc.)
)

// Error codes reported in CLIError.Code.
const (
	CodeConfig       = "E_CONFIG"
	CodeDestination  = "E_DESTINATION"
	CodeUpstream     = "E_UPSTREAM"
	CodeStorage      = "E_STORAGE"
	CodeReplay       = "E_REPLAY"
	CodeDeterminism  = "E_NONDETERMINISTIC"
	CodeTestFailed   = "E_TEST_FAILED"
	CodeUnclassified = "E_UNKNOWN"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code      int    // Exit code (use ExitFailure or ExitCommandError)
	ErrorCode string // One of the Code* constants
	Message   string // Error message
	Err       error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
// The reported error code is inferred from err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, ErrorCode: classify(err), Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify picks a CLIError code for err.
func classify(err error) string {
	var replayErr *engine.ReplayError
	var cfgErr *config.ValidationError
	switch {
	case err == nil:
		return CodeUnclassified
	case errors.As(err, &replayErr):
		return CodeReplay
	case errors.As(err, &cfgErr):
		return CodeConfig
	case errors.Is(err, history.ErrRepositoryExists), errors.Is(err, history.ErrDestinationNotEmpty):
		return CodeDestination
	default:
		return CodeUnclassified
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // one of the Code* constants
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Report renders err through Error, extracting the code and any replay
// context it carries.
func (f *OutputFormatter) Report(err error) error {
	code := classify(err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.ErrorCode != "" {
		code = exitErr.ErrorCode
	}

	var details any
	var replayErr *engine.ReplayError
	var cfgErr *config.ValidationError
	switch {
	case errors.As(err, &replayErr):
		details = replayDetails(replayErr)
	case errors.As(err, &cfgErr):
		details = cfgErr.Problems
	}
	return f.Error(code, err.Error(), details)
}

func replayDetails(e *engine.ReplayError) map[string]any {
	d := map[string]any{
		"replay_code": string(e.Code),
		"board":       string(e.Board),
		"op":          e.Op,
		"card_id":     e.CardID,
		"card_name":   e.CardName,
	}
	if e.Index >= 0 {
		d["index"] = e.Index
	}
	if !e.EventTime.IsZero() {
		d["event_time"] = e.EventTime.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return d
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
