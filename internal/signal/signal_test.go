//go:build unix

package signal

import (
	"os"
	"slices"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFatalSignals(t *testing.T) {
	sigs := FatalSignals()
	require.Len(t, sigs, NumFatalSignals())
	assert.Equal(t, syscall.SIGABRT, sigs[0])
	assert.Contains(t, sigs, syscall.SIGSEGV)
	assert.Contains(t, sigs, syscall.SIGBUS)
	assert.NotContains(t, sigs, syscall.SIGTERM)

	// Callers get a copy, the catalog itself is immutable.
	sigs[0] = syscall.SIGHUP
	assert.Equal(t, syscall.SIGABRT, FatalSignals()[0])
}

func TestFatalSignalIndex(t *testing.T) {
	for i, sig := range FatalSignals() {
		assert.Equal(t, i, FatalSignalIndex(sig))
		assert.Equal(t, sig, FatalSignalAt(i))
		assert.True(t, IsFatal(sig))
	}
	assert.Equal(t, -1, FatalSignalIndex(syscall.SIGUSR1))
	assert.False(t, IsFatal(syscall.SIGINT))
}

func TestSignalNames(t *testing.T) {
	tests := []struct {
		sig  syscall.Signal
		name string
	}{
		{syscall.SIGSEGV, "SIGSEGV"},
		{syscall.SIGABRT, "SIGABRT"},
		{syscall.SIGTRAP, "SIGTRAP"},
		{syscall.Signal(0), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, GetSignalName(tt.sig))
			if tt.name != "" {
				assert.Equal(t, int(tt.sig), GetSignalNum(tt.name))
			}
		})
	}
	assert.Equal(t, 0, GetSignalNum("SIGNOPE"))
}

func TestIsTerminationSignal(t *testing.T) {
	assert.True(t, IsTerminationSignal(syscall.SIGSEGV))
	assert.False(t, IsTerminationSignal(syscall.SIGCHLD))
	assert.True(t, IsTerminationSignal(syscall.SIGTERM))
}

func TestStopSignals(t *testing.T) {
	sigs := StopSignals()
	for _, want := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1} {
		assert.Contains(t, sigs, os.Signal(want))
	}
	for _, unwanted := range []syscall.Signal{syscall.SIGSEGV, syscall.SIGABRT, syscall.SIGKILL, syscall.SIGPROF, syscall.SIGCHLD, syscall.SIGSTOP} {
		assert.NotContains(t, sigs, os.Signal(unwanted))
	}
	assert.True(t, slices.IsSortedFunc(sigs, func(a, b os.Signal) int {
		return int(a.(syscall.Signal)) - int(b.(syscall.Signal))
	}))
}

func TestCodeName(t *testing.T) {
	assert.Equal(t, "SEGV_MAPERR", CodeName(syscall.SIGSEGV, 1))
	assert.Equal(t, "BUS_ADRERR", CodeName(syscall.SIGBUS, 2))
	assert.Equal(t, "", CodeName(syscall.SIGSEGV, 99))
}
