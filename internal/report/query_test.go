package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	t.Parallel()

	data, err := Encode(Build(0x1234, signalContext(t), time.Now()))
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
		want []any
	}{
		{name: "Field", expr: ".signal.name", want: []any{"SIGSEGV"}},
		{name: "Iterate", expr: ".backtrace[].address", want: []any{"0x401000", "0x401100", "0x401200"}},
		{name: "Length", expr: ".backtrace | length", want: []any{3}},
		{name: "Missing", expr: ".user_exception", want: []any{nil}},
		{name: "Empty", expr: "empty", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Query(data, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("ParseError", func(t *testing.T) {
		t.Parallel()
		_, err := Query(data, ".signal.[")
		assert.ErrorContains(t, err, "invalid query")
	})

	t.Run("RuntimeError", func(t *testing.T) {
		t.Parallel()
		_, err := Query(data, `error("boom")`)
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("InvalidReport", func(t *testing.T) {
		t.Parallel()
		_, err := Query([]byte("not json"), ".id")
		assert.ErrorContains(t, err, "failed to decode report")
	})
}
