// Package tag provides standardized tag functions for structured logging.
//
// All tag keys use kebab-case naming convention for consistency.
// Use these functions instead of raw strings to ensure consistent
// and type-safe log output across the codebase.
package tag

import (
	"fmt"
	"log/slog"
)

// Error creates a tag for error objects.
func Error(err any) slog.Attr {
	return slog.Any("err", err)
}

// Signal creates a tag for signal names (e.g., SIGSEGV).
func Signal(sig string) slog.Attr {
	return slog.String("signal", sig)
}

// SignalCode creates a tag for the si_code delivered with a signal.
func SignalCode(code int) slog.Attr {
	return slog.Int("signal-code", code)
}

// Monitor creates a tag for crash monitor names.
func Monitor(name string) slog.Attr {
	return slog.String("monitor", name)
}

// EventID creates a tag for the per-enable event identifier.
func EventID(id string) slog.Attr {
	return slog.String("event-id", id)
}

// ReportID creates a tag for stored report identifiers.
func ReportID(id int64) slog.Attr {
	return slog.String("report-id", fmt.Sprintf("%016x", id))
}

// Address creates a tag for code or data addresses.
func Address(addr uintptr) slog.Attr {
	return slog.String("address", fmt.Sprintf("%#x", addr))
}

// Type creates a tag for crash type names.
func Type(t string) slog.Attr {
	return slog.String("type", t)
}

// Path and file tags

// File creates a tag for file paths.
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Dir creates a tag for directory paths.
func Dir(path string) slog.Attr {
	return slog.String("dir", path)
}

// Count creates a tag for counts.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Depth creates a tag for stack depths.
func Depth(n int) slog.Attr {
	return slog.Int("depth", n)
}

// Addr creates a tag for listen addresses.
func Addr(addr string) slog.Attr {
	return slog.String("addr", addr)
}

// Format creates a tag for output format names.
func Format(f string) slog.Attr {
	return slog.String("format", f)
}
