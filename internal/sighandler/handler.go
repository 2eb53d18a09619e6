package sighandler

import (
	"sync/atomic"
	"syscall"

	"github.com/dagucloud/crashguard/internal/machine"
	"github.com/dagucloud/crashguard/internal/monitor"
	"github.com/dagucloud/crashguard/internal/signal"
)

// active is the monitor the trampoline reports to. It is set by install and
// left in place afterwards so a late signal still finds the previous
// handlers.
var active atomic.Pointer[Monitor]

// handleSignal is the trampoline registered with the platform.
func handleSignal(sig syscall.Signal, info *Info, uc *machine.UserContext) {
	if m := active.Load(); m != nil {
		m.handle(sig, info, uc)
	}
}

// handle runs once per process. A signal that arrives while a previous one
// is being handled exits immediately with the signal number as status.
func (m *Monitor) handle(sig syscall.Signal, info *Info, uc *machine.UserContext) {
	if !m.entered.CompareAndSwap(false, true) {
		m.platform.Exit(int(sig))
		return
	}

	// Dispatch disables every monitor, which clears the table, so the
	// handler to chain to is read first.
	prev, ok := m.previousHandler(sig)

	if m.enabled.Load() {
		m.capture(sig, info, uc)
	}

	if ok {
		prev(sig, info, uc)
		return
	}
	_ = m.platform.Raise(sig)
}

func (m *Monitor) previousHandler(sig syscall.Signal) (HandlerFunc, bool) {
	if m.previous == nil {
		return nil, false
	}
	for i := 0; i < len(m.previous); i++ {
		if signal.FatalSignalAt(i) != sig {
			continue
		}
		act := m.previous[i]
		if act.Disposition == DispositionHandler && act.Handler != nil {
			return act.Handler, true
		}
		return nil, false
	}
	return nil, false
}

// capture fills the preallocated event record and hands it to the
// dispatcher with every other execution context paused.
func (m *Monitor) capture(sig syscall.Signal, info *Info, uc *machine.UserContext) {
	handle, count := m.suspender.Suspend()
	m.dispatcher.NotifyFatalExceptionCaptured(false)

	machine.GetContextForSignal(uc, &m.machine)
	m.cursor.InitWithMachineContext(m.maxDepth, &m.machine)

	ctx := &m.event
	ctx.Reset()
	ctx.Type = monitor.TypeSignal
	if id := m.eventID.Load(); id != nil {
		ctx.EventID = *id
	}
	ctx.OffendingMachineContext = &m.machine
	ctx.StackCursor = &m.cursor
	ctx.RegistersAreValid = uc != nil
	ctx.Signal.Signum = sig
	ctx.Signal.UserContext = uc
	if info != nil {
		ctx.FaultAddress = info.Addr
		ctx.Signal.Code = info.Code
		if info.Signo != 0 {
			ctx.Signal.Signum = info.Signo
		}
	}

	m.dispatcher.HandleException(ctx)
	m.suspender.Resume(handle, count)
}
