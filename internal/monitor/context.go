// Package monitor routes captured crash events from the monitors that detect
// them to the sink that records them.
package monitor

import (
	"syscall"

	"github.com/dagucloud/crashguard/internal/machine"
	"github.com/dagucloud/crashguard/internal/stackcursor"
)

// CrashType classifies what produced an event.
type CrashType uint32

const (
	TypeSignal CrashType = 1 << iota
	TypeMachException
	TypeUser
)

// crashTypes lists every type in bit order.
var crashTypes = []CrashType{TypeSignal, TypeMachException, TypeUser}

func (t CrashType) String() string {
	switch t {
	case TypeSignal:
		return "signal"
	case TypeMachException:
		return "mach_exception"
	case TypeUser:
		return "user"
	default:
		return "unknown"
	}
}

// SignalInfo is the raw signal data delivered with an event.
type SignalInfo struct {
	Signum      syscall.Signal
	Code        int
	UserContext *machine.UserContext
}

// UserException describes an error the application reported itself.
type UserException struct {
	Name       string
	Reason     string
	Language   string
	LineOfCode string
	StackTrace []string
}

// Context is the record a monitor fills for one crash event. Signal
// monitors keep a single preallocated instance and overwrite it on every
// capture.
type Context struct {
	Type    CrashType
	EventID string

	FaultAddress uintptr
	Signal       SignalInfo

	OffendingMachineContext *machine.Context
	StackCursor             *stackcursor.Cursor
	RegistersAreValid       bool

	RequiresAsyncSafety        bool
	CrashedDuringCrashHandling bool
	UserReported               bool

	User UserException
}

// Reset clears every field.
func (c *Context) Reset() {
	*c = Context{}
}
