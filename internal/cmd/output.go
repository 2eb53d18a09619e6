package cmd

import (
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// colorEnabled reports whether w is a terminal that should get colored
// output.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// typeColorize colors a crash type label.
func typeColorize(s string, enabled bool) string {
	if !enabled {
		return s
	}
	switch s {
	case "signal", "mach_exception":
		return color.RedString(s)
	case "user":
		return color.YellowString(s)
	default:
		return s
	}
}

// markColorize renders a boolean as a check mark.
func markColorize(b, enabled bool) string {
	if !b {
		return ""
	}
	if !enabled {
		return "yes"
	}
	return color.New(color.FgHiGreen).Sprint("✓")
}
