// Package terminal provides styled status output for the CLI.
// No TUI framework, just styled prints.
package terminal

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Writer prints styled status lines. When quiet is set, informational
// output is suppressed and only errors are printed.
type Writer struct {
	out   io.Writer
	errW  io.Writer
	quiet bool

	errorStyle   lipgloss.Style
	warnStyle    lipgloss.Style
	successStyle lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
}

// New creates a Writer on stdout/stderr.
func New(quiet bool) *Writer {
	return NewWithOutput(os.Stdout, os.Stderr, quiet)
}

// NewWithOutput creates a Writer with custom destinations.
func NewWithOutput(out, errW io.Writer, quiet bool) *Writer {
	return &Writer{
		out:   out,
		errW:  errW,
		quiet: quiet,

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),

		boldStyle: lipgloss.NewStyle().Bold(true),
	}
}

// Success prints a green checkmarked line.
func (w *Writer) Success(format string, args ...any) {
	if w.quiet {
		return
	}
	fmt.Fprintln(w.out, w.successStyle.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// Warn prints a yellow warning line.
func (w *Writer) Warn(format string, args ...any) {
	if w.quiet {
		return
	}
	fmt.Fprintln(w.out, w.warnStyle.Render("!")+" "+fmt.Sprintf(format, args...))
}

// Error prints a red error line to stderr. Never suppressed.
func (w *Writer) Error(format string, args ...any) {
	fmt.Fprintln(w.errW, w.errorStyle.Render("Error:")+" "+fmt.Sprintf(format, args...))
}

// Info prints a plain line.
func (w *Writer) Info(format string, args ...any) {
	if w.quiet {
		return
	}
	fmt.Fprintln(w.out, fmt.Sprintf(format, args...))
}

// Detail prints a dimmed secondary line, indented under the previous
// status line.
func (w *Writer) Detail(format string, args ...any) {
	if w.quiet {
		return
	}
	fmt.Fprintln(w.out, "  "+w.dimStyle.Render(fmt.Sprintf(format, args...)))
}

// Header prints a bold section line.
func (w *Writer) Header(text string) {
	if w.quiet {
		return
	}
	fmt.Fprintln(w.out, w.boldStyle.Render(text))
}
