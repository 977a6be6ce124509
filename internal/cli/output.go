// Package cli provides the command-line interface for the stock visualizer.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates an Output for a command, honoring --json and --no-color.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !noColor && isTerminal(),
	}
}

// NewWriterOutput creates an Output over an arbitrary writer.
func NewWriterOutput(w io.Writer, colorEnabled bool) *Output {
	return &Output{writer: w, colorEnabled: colorEnabled}
}

// isTerminal reports whether stdout is a terminal. fatih/color sets NoColor
// when it is not, or when NO_COLOR is set.
func isTerminal() bool {
	return !color.NoColor
}

// Writer returns the underlying writer.
func (o *Output) Writer() io.Writer { return o.writer }

// ColorEnabled reports whether ANSI colors are emitted.
func (o *Output) ColorEnabled() bool { return o.colorEnabled }

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.line(o.paint(color.FgGreen), format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.line(o.paint(color.FgRed), format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.line(o.paint(color.FgYellow), format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.line(o.paint(color.FgCyan), format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.line(o.paint(color.Bold), format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.line(o.paint(color.Faint), format, args...)
}

func (o *Output) line(c *color.Color, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, c.Sprintf(format, args...))
}

// paint returns a color that respects this Output's color setting rather
// than the package-wide default.
func (o *Output) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if o.colorEnabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// Green returns s colored green.
func (o *Output) Green(s string) string { return o.paint(color.FgGreen).Sprint(s) }

// Red returns s colored red.
func (o *Output) Red(s string) string { return o.paint(color.FgRed).Sprint(s) }

// Yellow returns s colored yellow.
func (o *Output) Yellow(s string) string { return o.paint(color.FgYellow).Sprint(s) }

// Cyan returns s colored cyan.
func (o *Output) Cyan(s string) string { return o.paint(color.FgCyan).Sprint(s) }

// Faint returns s dimmed.
func (o *Output) Faint(s string) string { return o.paint(color.Faint).Sprint(s) }

// Table renders aligned columns.
type Table struct {
	output  *Output
	headers []string
	rows    [][]string
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		output:  output,
		headers: headers,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Render prints the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = displayWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				if w := displayWidth(cell); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	bold := t.output.paint(color.Bold)
	var header strings.Builder
	for i, h := range t.headers {
		header.WriteString(bold.Sprint(PadRight(h, widths[i])))
		header.WriteString("  ")
	}
	t.output.Println(strings.TrimRight(header.String(), " "))

	var sep strings.Builder
	for i, w := range widths {
		sep.WriteString(strings.Repeat("─", w))
		if i < len(widths)-1 {
			sep.WriteString("  ")
		}
	}
	t.output.Println(sep.String())

	for _, row := range t.rows {
		var line strings.Builder
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			line.WriteString(cell)
			if pad := widths[i] - displayWidth(cell); pad > 0 {
				line.WriteString(strings.Repeat(" ", pad))
			}
			line.WriteString("  ")
		}
		t.output.Println(strings.TrimRight(line.String(), " "))
	}
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes ANSI color codes from a string.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func displayWidth(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}

// syncWriter serializes writes from the display goroutine and the session.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// SyncWriter wraps w so concurrent writers do not interleave mid-write.
func SyncWriter(w io.Writer) io.Writer {
	if _, ok := w.(*syncWriter); ok {
		return w
	}
	return &syncWriter{w: w}
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
