package sighandler

import "syscall"

// AltStack is the memory region handlers run on when registered with
// FlagOnStack. A nil or empty stack disables it.
type AltStack struct {
	Stack []byte
}

// Size returns the stack size in bytes.
func (s *AltStack) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Stack)
}

// Platform is the OS surface the monitor registers handlers through.
type Platform interface {
	// Sigaction registers act for sig when act is non-nil and stores the
	// previous action in old when old is non-nil.
	Sigaction(sig syscall.Signal, act, old *Action) error
	// SetAltStack sets the alternate signal stack.
	SetAltStack(st *AltStack) error
	// MinAltStackSize is the smallest alternate stack the platform accepts.
	MinAltStackSize() int
	// Raise delivers sig to the process with its current disposition.
	Raise(sig syscall.Signal) error
	// Exit terminates the process immediately without running deferred
	// functions or exit hooks.
	Exit(code int)
}
