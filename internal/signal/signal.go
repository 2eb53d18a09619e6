// Package signal describes the signals the crash monitor intercepts and
// provides name lookups for signal numbers and signal codes.
package signal

import (
	"os"
	"slices"
	"syscall"
)

var nameToSignal = map[string]syscall.Signal{}

func init() {
	for sig, info := range signalMap {
		nameToSignal[info.name] = sig
	}
}

// FatalSignals returns the ordered set of signals treated as fatal.
// Handler tables are indexed by position in this slice, so the order is fixed.
func FatalSignals() []syscall.Signal {
	return slices.Clone(fatalSignals[:])
}

// NumFatalSignals returns the number of fatal signals.
func NumFatalSignals() int {
	return len(fatalSignals)
}

// FatalSignalAt returns the fatal signal at position i without allocating.
func FatalSignalAt(i int) syscall.Signal {
	return fatalSignals[i]
}

// FatalSignalIndex returns the position of sig in the fatal signal set, or -1.
func FatalSignalIndex(sig syscall.Signal) int {
	for i, s := range fatalSignals {
		if s == sig {
			return i
		}
	}
	return -1
}

// IsFatal reports whether sig belongs to the fatal signal set.
func IsFatal(sig syscall.Signal) bool {
	return FatalSignalIndex(sig) >= 0
}

// GetSignalName returns the signal name for the given signal number
func GetSignalName(sig syscall.Signal) string {
	if info, ok := signalMap[sig]; ok {
		return info.name
	}
	return ""
}

// IsTerminationSignal checks if the given signal is a termination signal
func IsTerminationSignal(sig syscall.Signal) bool {
	if info, ok := signalMap[sig]; ok {
		return info.isTermination
	}
	return false
}

// StopSignals returns, in ascending order, the signals that would terminate
// the process by default and can be caught, excluding the fatal set. A
// long-running process subscribes to them to shut down cleanly.
func StopSignals() []os.Signal {
	var sigs []syscall.Signal
	for sig := range signalMap {
		if IsTerminationSignal(sig) && !IsFatal(sig) && !slices.Contains(reservedSignals, sig) {
			sigs = append(sigs, sig)
		}
	}
	slices.Sort(sigs)
	out := make([]os.Signal, len(sigs))
	for i, sig := range sigs {
		out[i] = sig
	}
	return out
}

// GetSignalNum returns the signal number for the given signal name, or 0
// when the name is unknown.
func GetSignalNum(name string) int {
	if sig, ok := nameToSignal[name]; ok {
		return int(sig)
	}
	return 0
}

// CodeName returns the symbolic name of a signal code (si_code) for sig,
// or an empty string when the code is not known for that signal.
func CodeName(sig syscall.Signal, code int) string {
	if names, ok := signalCodes[sig]; ok {
		if name, ok := names[code]; ok {
			return name
		}
	}
	if name, ok := genericCodes[code]; ok {
		return name
	}
	return ""
}

type signalInfo struct {
	name          string
	isTermination bool
	number        syscall.Signal
}
