package sighandler

import (
	"fmt"
	"runtime"
	"slices"
	"syscall"

	"github.com/samber/lo"

	"github.com/dagucloud/crashguard/internal/signal"
)

// HandlerInfo describes the handler currently registered for one signal.
type HandlerInfo struct {
	Signal       syscall.Signal
	Name         string
	Disposition  Disposition
	Address      uintptr
	Function     string
	File         string
	Line         int
	IsOwnHandler bool
}

// AddressIsOwnHandler reports whether addr is the trampoline's entry point.
func AddressIsOwnHandler(addr uintptr) bool {
	return addr != 0 && addr == trampolineAddress
}

// AddressIsOwnHandler reports whether addr is the trampoline's entry point.
func (m *Monitor) AddressIsOwnHandler(addr uintptr) bool {
	return AddressIsOwnHandler(addr)
}

// PreviousHandlers returns a copy of the handlers that were registered
// before install, in fatal signal order. It is empty before the first
// install.
func (m *Monitor) PreviousHandlers() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.previous)
}

// CurrentHandler returns the action currently registered for sig.
func (m *Monitor) CurrentHandler(sig syscall.Signal) (Action, error) {
	if !signal.IsFatal(sig) {
		return Action{}, fmt.Errorf("%w: %s", ErrUnknownSignal, signal.GetSignalName(sig))
	}
	var act Action
	if err := m.platform.Sigaction(sig, nil, &act); err != nil {
		return Action{}, fmt.Errorf("sigaction %s: %w", signal.GetSignalName(sig), err)
	}
	return act, nil
}

// CurrentHandlers returns the actions currently registered for every fatal
// signal, in fatal signal order.
func (m *Monitor) CurrentHandlers() ([]Action, error) {
	sigs := signal.FatalSignals()
	out := make([]Action, len(sigs))
	for i, sig := range sigs {
		act, err := m.CurrentHandler(sig)
		if err != nil {
			return nil, err
		}
		out[i] = act
	}
	return out, nil
}

// HandlerChain describes the top of the handler chain for every fatal
// signal.
func (m *Monitor) HandlerChain() ([]HandlerInfo, error) {
	acts, err := m.CurrentHandlers()
	if err != nil {
		return nil, err
	}
	sigs := signal.FatalSignals()
	return lo.Map(acts, func(act Action, i int) HandlerInfo {
		return describe(sigs[i], act)
	}), nil
}

func describe(sig syscall.Signal, act Action) HandlerInfo {
	info := HandlerInfo{
		Signal:      sig,
		Name:        signal.GetSignalName(sig),
		Disposition: act.Disposition,
		Address:     act.Address(),
	}
	info.IsOwnHandler = AddressIsOwnHandler(info.Address)
	if info.Address == 0 {
		return info
	}
	if fn := runtime.FuncForPC(info.Address); fn != nil {
		info.Function = fn.Name()
		info.File, info.Line = fn.FileLine(info.Address)
	}
	return info
}
