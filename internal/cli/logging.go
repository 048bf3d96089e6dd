package cli

import (
	"io"
	"log/slog"
	"os"
)

// newLogger builds the text logger used by every command: Info by default,
// Debug with --verbose, written to stderr so stdout stays parseable.
// It also becomes slog's default logger.
func newLogger(opts *RootOptions) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	if opts.LogOut != nil {
		w = opts.LogOut
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
