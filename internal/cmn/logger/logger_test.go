package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_SourceLocation(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(Logger)
	}{
		{name: "Info", logFunc: func(l Logger) { l.Info("test message") }},
		{name: "Debug", logFunc: func(l Logger) { l.Debug("debug message") }},
		{name: "Warnf", logFunc: func(l Logger) { l.Warnf("warning %s", "test") }},
		{name: "Errorf", logFunc: func(l Logger) { l.Errorf("error %v", "test") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger(WithDebug(), WithFormat("text"), WithConsole(&buf))
			tt.logFunc(l)

			out := buf.String()
			assert.Contains(t, out, "logger_test.go:")
			assert.NotContains(t, out, "cmn/logger/logger.go")
			assert.NotContains(t, out, "slog-multi")
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithConsole(&buf))

	l.Debug("hidden")
	l.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_JSONFileWriter(t *testing.T) {
	var console, file bytes.Buffer
	l := NewLogger(WithFormat("json"), WithConsole(&console), WithWriter(&file))

	l.With("signal", "SIGSEGV").Info("handler installed", "count", 3)

	for _, out := range []string{console.String(), file.String()} {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &rec))
		assert.Equal(t, "handler installed", rec["msg"])
		assert.Equal(t, "SIGSEGV", rec["signal"])
		assert.EqualValues(t, 3, rec["count"])
	}
}

func TestLogger_Quiet(t *testing.T) {
	var console, file bytes.Buffer
	l := NewLogger(WithQuiet(), WithConsole(&console), WithWriter(&file))

	l.Info("to file only")
	l.Write("free form")

	assert.Empty(t, console.String())
	assert.Contains(t, file.String(), "to file only")
	assert.Contains(t, file.String(), "free form\n")
}

func TestLogger_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormat("json"), WithConsole(&buf))

	l.WithGroup("monitor").Info("enabled", "name", "signal")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	group, ok := rec["monitor"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "signal", group["name"])
}

func TestFromContext(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))

	var buf bytes.Buffer
	l := NewLogger(WithConsole(&buf))
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))

	ctx = WithValues(ctx, "report-id", "42")
	Info(ctx, "report written")
	assert.Contains(t, buf.String(), "report-id=42")
	assert.Contains(t, buf.String(), "report written")
}
