// Package machine captures the register and stack state of a thread at the
// moment a fatal signal interrupted it.
//
// Nothing in this package allocates once a Context exists: the capture path
// runs inside signal handling where the heap may be in an inconsistent state.
package machine

import (
	"runtime"
	"unsafe"
)

// MaxStackDepth is the largest number of frames ever recorded for a thread.
const MaxStackDepth = 150

// WordSize is the size in bytes of a machine word.
const WordSize = unsafe.Sizeof(uintptr(0))

// Registers holds the subset of CPU state needed to describe and walk a stack.
type Registers struct {
	PC uintptr // instruction pointer
	SP uintptr // stack pointer
	FP uintptr // frame pointer
	LR uintptr // link register; zero on architectures without one
}

// Memory reads words out of the interrupted thread's address space.
// Implementations must not fault: unreadable addresses report false.
type Memory interface {
	ReadWord(addr uintptr) (uintptr, bool)
}

// UserContext is the register state delivered alongside a signal.
type UserContext struct {
	ThreadID  int
	Registers Registers
	Memory    Memory
}

// Context is a snapshot of one thread's machine state.
type Context struct {
	ThreadID        int
	IsCurrentThread bool
	IsSignalContext bool
	Registers       Registers
	Memory          Memory

	callers    [MaxStackDepth]uintptr
	numCallers int
}

// GetContextForSignal fills mc from the user context delivered with a signal.
// When uc is nil the platform had no register state to offer, so the calling
// goroutine's stack is recorded instead.
func GetContextForSignal(uc *UserContext, mc *Context) {
	*mc = Context{IsSignalContext: true}
	if uc == nil {
		captureCallers(mc)
		return
	}
	mc.ThreadID = uc.ThreadID
	mc.Registers = uc.Registers
	mc.Memory = uc.Memory
}

// GetContextForCurrentThread fills mc with the calling goroutine's stack.
func GetContextForCurrentThread(mc *Context) {
	*mc = Context{}
	captureCallers(mc)
}

func captureCallers(mc *Context) {
	mc.IsCurrentThread = true
	// Skip runtime.Callers, this function and the exported caller.
	mc.numCallers = runtime.Callers(3, mc.callers[:])
	if mc.numCallers > 0 {
		mc.Registers.PC = mc.callers[0]
	}
}

// HasRegisters reports whether the context carries a register snapshot that
// can be walked through frame pointers.
func (c *Context) HasRegisters() bool {
	return c.Memory != nil
}

// Callers returns the program counters recorded when no register snapshot
// was available. The slice aliases the context's storage.
func (c *Context) Callers() []uintptr {
	return c.callers[:c.numCallers]
}
