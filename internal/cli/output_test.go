package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dredger/internal/config"
	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/engine"
	"github.com/roach88/dredger/internal/history"
	"github.com/roach88/dredger/internal/testutil"
)

func TestOutputFormatter_JSONEnvelope(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(BuildResult{CubeID: "abc123", Commits: 3}))
	var ok CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ok))
	assert.Equal(t, "ok", ok.Status)
	assert.Nil(t, ok.Error)
	assert.NotNil(t, ok.Data)

	buf.Reset()
	require.NoError(t, f.Error(CodeReplay, "failed to reconstruct history", map[string]string{"board": "mainboard", "op": "swap"}))
	var failed CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &failed))
	assert.Equal(t, "error", failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, CodeReplay, failed.Error.Code)
	assert.Equal(t, "failed to reconstruct history", failed.Error.Message)
	assert.NotNil(t, failed.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	details := map[string]string{"card_id": "ghost"}

	tests := []struct {
		name    string
		verbose bool
		write   func(f *OutputFormatter) error
		want    []string
		notWant []string
	}{
		{
			name:  "success",
			write: func(f *OutputFormatter) error { return f.Success("History written") },
			want:  []string{"History written"},
		},
		{
			name:    "error hides details",
			write:   func(f *OutputFormatter) error { return f.Error(CodeUpstream, "failed to fetch cube", details) },
			want:    []string{"Error [E_UPSTREAM]: failed to fetch cube"},
			notWant: []string{"Details:"},
		},
		{
			name:    "verbose error shows details",
			verbose: true,
			write:   func(f *OutputFormatter) error { return f.Error(CodeUpstream, "failed to fetch cube", details) },
			want:    []string{"Error [E_UPSTREAM]", "Details:", "ghost"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			require.NoError(t, tt.write(&OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	quiet := &bytes.Buffer{}
	(&OutputFormatter{Format: "text", Writer: quiet}).VerboseLog("reading %s", "history.json")
	assert.Empty(t, quiet.String())

	loud := &bytes.Buffer{}
	(&OutputFormatter{Format: "text", Writer: loud, Verbose: true}).VerboseLog("reading %s", "history.json")
	assert.Contains(t, loud.String(), "reading history.json")

	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	(&OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}).VerboseLog("reading %s", "cube.json")
	assert.Empty(t, out.String())
	assert.Equal(t, "reading cube.json\n", diag.String())
}

func TestOutputFormatter_ReportReplayError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	cause := &engine.ReplayError{
		Code:      engine.ErrCodeCardNotFound,
		Message:   "card not on board",
		Board:     cube.Mainboard,
		Op:        "add",
		CardID:    "ghost",
		CardName:  "Phantom Card",
		Index:     -1,
		EventTime: testutil.At(1_700_000_100_000),
	}
	require.NoError(t, formatter.Report(WrapExitError(ExitFailure, "failed to reconstruct history", fmt.Errorf("event 0: %w", cause))))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeReplay, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "failed to reconstruct history")
	assert.Equal(t, "CARD_NOT_FOUND", resp.Error.Details["replay_code"])
	assert.Equal(t, "ghost", resp.Error.Details["card_id"])
	assert.Equal(t, "2023-11-14T22:15:00.000Z", resp.Error.Details["event_time"])
	assert.NotContains(t, resp.Error.Details, "index")
}

func TestOutputFormatter_ReportConfigError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	cause := &config.ValidationError{Path: "dredger.yaml", Problems: []string{"http.max_tries: invalid value 0"}}
	require.NoError(t, formatter.Report(WrapExitError(ExitCommandError, "failed to load configuration", cause)))

	assert.Contains(t, buf.String(), "Error [E_CONFIG]")
	assert.Contains(t, buf.String(), "http.max_tries")
}

func TestOutputFormatter_ReportPrefersExplicitCode(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := &ExitError{Code: ExitCommandError, ErrorCode: CodeStorage, Message: "failed to open database", Err: errors.New("disk full")}
	require.NoError(t, formatter.Report(err))
	assert.Equal(t, "Error [E_STORAGE]: failed to open database: disk full\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "replay"))))
}

func TestWrapExitErrorClassifies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"replay", &engine.ReplayError{Code: engine.ErrCodeIndexOutOfRange, Index: 4}, CodeReplay},
		{"config", &config.ValidationError{Path: "x"}, CodeConfig},
		{"repository exists", fmt.Errorf("out: %w", history.ErrRepositoryExists), CodeDestination},
		{"not empty", history.ErrDestinationNotEmpty, CodeDestination},
		{"other", errors.New("boom"), CodeUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WrapExitError(ExitFailure, "x", tt.err).ErrorCode)
		})
	}
}
