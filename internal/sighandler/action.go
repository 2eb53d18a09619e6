package sighandler

import (
	"reflect"
	"syscall"

	"github.com/dagucloud/crashguard/internal/machine"
)

// Disposition is what the OS does when a signal arrives.
type Disposition uint8

const (
	DispositionDefault Disposition = iota
	DispositionIgnore
	DispositionHandler
)

func (d Disposition) String() string {
	switch d {
	case DispositionDefault:
		return "default"
	case DispositionIgnore:
		return "ignore"
	case DispositionHandler:
		return "handler"
	default:
		return "unknown"
	}
}

// Flags mirror the sigaction flags a handler is registered with.
type Flags uint32

const (
	// FlagSigInfo passes signal info and the user context to the handler.
	FlagSigInfo Flags = 1 << iota
	// FlagOnStack runs the handler on the alternate signal stack.
	FlagOnStack
	// FlagRestart restarts interrupted system calls.
	FlagRestart
)

// Info is the siginfo delivered with a signal.
type Info struct {
	Signo syscall.Signal
	Code  int
	Addr  uintptr
	Pid   int
}

// HandlerFunc is a signal handler entry point.
type HandlerFunc func(sig syscall.Signal, info *Info, uc *machine.UserContext)

// Action describes the handler registered for one signal. The zero value is
// the default disposition.
type Action struct {
	Disposition Disposition
	Handler     HandlerFunc
	Flags       Flags
}

// Address returns the entry point of the handler, or zero when the action
// has no handler function.
func (a Action) Address() uintptr {
	if a.Disposition != DispositionHandler || a.Handler == nil {
		return 0
	}
	return funcAddress(a.Handler)
}

func funcAddress(fn HandlerFunc) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
