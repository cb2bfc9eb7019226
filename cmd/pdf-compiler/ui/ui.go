// Package ui provides terminal output helpers for the pdf-compiler CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	hintColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
)

// Init applies the global output settings.
func Init(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// SetOutput redirects all output. Used by tests.
func SetOutput(out, errOut io.Writer) {
	stdout = out
	stderr = errOut
}

// Spinner wraps a spinner instance for indeterminate progress display.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a new spinner with the given message.
func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = stderr
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	s.spinner.Start()
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	s.spinner.Stop()
}

// Success displays a success message.
func Success(format string, args ...interface{}) {
	successColor.Fprint(stdout, "✓ ")
	fmt.Fprintln(stdout, fmt.Sprintf(format, args...))
}

// Error displays an error message to stderr.
func Error(format string, args ...interface{}) {
	errorColor.Fprint(stderr, "✗ ")
	fmt.Fprintln(stderr, fmt.Sprintf(format, args...))
}

// Hint displays a follow-up suggestion to stderr.
func Hint(format string, args ...interface{}) {
	hintColor.Fprintf(stderr, "  %s\n", fmt.Sprintf(format, args...))
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(stdout, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Log prints a compilation log indented under a rule.
func Log(log string) {
	rule := strings.Repeat("─", 60)
	dimColor.Fprintln(stderr, rule)
	for _, line := range strings.Split(log, "\n") {
		fmt.Fprintf(stderr, "  %s\n", line)
	}
	dimColor.Fprintln(stderr, rule)
}

// Bytes formats a byte count for humans.
func Bytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := int64(n) / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
