package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Color functions
var (
	SuccessColor = color.New(color.FgGreen, color.Bold)
	ErrorColor   = color.New(color.FgRed, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	KeyColor     = color.New(color.FgYellow)
)

// SetNoColor disables colour for every writer in the process
func SetNoColor(disabled bool) {
	color.NoColor = disabled
}

// Success prints a "✓ " prefixed line
func Success(w io.Writer, format string, args ...interface{}) {
	SuccessColor.Fprintf(w, "✓ "+format+"\n", args...)
}

// Info prints a dimmed informational line
func Info(w io.Writer, format string, args ...interface{}) {
	InfoColor.Fprintf(w, format+"\n", args...)
}

// Error prints "✗ Error: " followed by msg, or a plain "Error:" without colour
func Error(w io.Writer, msg string) {
	if color.NoColor {
		fmt.Fprintln(w, "Error:", msg)
		return
	}
	ErrorColor.Fprint(w, "✗ Error: ")
	fmt.Fprintln(w, msg)
}

// JSON writes v as indented JSON
func JSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
