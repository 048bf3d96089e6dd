package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Printer writes human-readable status lines. Colors follow fatih/color's
// terminal detection and NO_COLOR.
type Printer struct {
	w      io.Writer
	green  *color.Color
	yellow *color.Color
	red    *color.Color
	cyan   *color.Color
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		w:      w,
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed, color.Bold),
		cyan:   color.New(color.FgCyan),
	}
}

// Success prints a green line with a check mark.
func (p *Printer) Success(format string, a ...any) {
	p.green.Fprintf(p.w, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Warning prints a yellow line.
func (p *Printer) Warning(format string, a ...any) {
	p.yellow.Fprintf(p.w, "! %s\n", fmt.Sprintf(format, a...))
}

// Failure prints a bold red line.
func (p *Printer) Failure(format string, a ...any) {
	p.red.Fprintf(p.w, "✗ %s\n", fmt.Sprintf(format, a...))
}

// Field prints an indented "label: value" line with a cyan label.
func (p *Printer) Field(label string, value any) {
	fmt.Fprintf(p.w, "  %s %v\n", p.cyan.Sprint(label+":"), value)
}

// Info prints a plain line.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.w, format+"\n", a...)
}
