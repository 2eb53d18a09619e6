package sighandler

import (
	"fmt"
	"sync"
	"syscall"

	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
	"github.com/dagucloud/crashguard/internal/signal"
)

// trampoline is the action registered for every fatal signal.
var trampoline = Action{
	Disposition: DispositionHandler,
	Handler:     handleSignal,
	Flags:       FlagSigInfo | FlagOnStack,
}

// trampolineAddress is the entry point used to recognize our own handler.
var trampolineAddress = funcAddress(handleSignal)

// tableMu serializes installs and uninstalls across monitors: the trampoline
// and active are shared by the whole process.
var tableMu sync.Mutex

// install registers the trampoline for every fatal signal. Either every
// signal ends up handled by the trampoline or the handlers registered before
// the call are restored.
func (m *Monitor) install() error {
	tableMu.Lock()
	defer tableMu.Unlock()

	prevActive := active.Load()
	if prevActive != nil && prevActive != m && prevActive.platform == m.platform && prevActive.installed.Load() {
		m.logger.Error("Signal handlers are owned by another monitor")
		return ErrMonitorActive
	}
	fresh := !m.installed.Load()

	m.logger.Debug("Installing signal handlers")

	if m.altBuf == nil {
		m.altBuf = make([]byte, m.platform.MinAltStackSize())
	}
	m.altStack = AltStack{Stack: m.altBuf}
	if err := m.platform.SetAltStack(&m.altStack); err != nil {
		m.logger.Error("Failed to set the signal stack", tag.Error(err))
		return fmt.Errorf("%w: sigaltstack: %w", ErrInstallFailed, err)
	}

	sigs := signal.FatalSignals()
	if m.previous == nil {
		m.previous = make([]Action, len(sigs))
	}

	active.Store(m)

	installed := make([]bool, len(sigs))
	for i, sig := range sigs {
		name := signal.GetSignalName(sig)

		var current Action
		if err := m.platform.Sigaction(sig, nil, &current); err != nil {
			m.logger.Error("Failed to read the current signal handler",
				tag.Signal(name), tag.Error(err))
		} else if current.Address() == trampolineAddress {
			m.logger.Info("Signal handler is already set, skipping", tag.Signal(name))
			continue
		}

		var old Action
		if err := m.platform.Sigaction(sig, &trampoline, &old); err != nil {
			m.logger.Error("Failed to install signal handler",
				tag.Signal(name), tag.Error(err))
			m.rollback(sigs, installed[:i])
			if fresh {
				m.abandon(prevActive)
			}
			return fmt.Errorf("%w: %s: %w", ErrInstallFailed, name, err)
		}
		m.previous[i] = old
		installed[i] = true
	}

	m.installed.Store(true)
	m.logger.Debug("Signal handlers installed", tag.Count(len(sigs)))
	return nil
}

// rollback restores, newest first, the handlers replaced by this install.
func (m *Monitor) rollback(sigs []syscall.Signal, installed []bool) {
	for i := len(installed) - 1; i >= 0; i-- {
		if !installed[i] {
			continue
		}
		if err := m.platform.Sigaction(sigs[i], &m.previous[i], nil); err != nil {
			m.logger.Error("Failed to restore signal handler",
				tag.Signal(signal.GetSignalName(sigs[i])), tag.Error(err))
		}
		m.previous[i] = Action{}
	}
}

// abandon undoes the rest of a first install that failed: the signal stack
// is released and the trampoline reports to the monitor it reported to
// before.
func (m *Monitor) abandon(prevActive *Monitor) {
	if err := m.platform.SetAltStack(nil); err != nil {
		m.logger.Warn("Failed to clear the signal stack", tag.Error(err))
	}
	m.altStack = AltStack{}
	active.CompareAndSwap(m, prevActive)
}

// uninstall restores the handlers recorded by install and forgets them.
func (m *Monitor) uninstall() {
	tableMu.Lock()
	defer tableMu.Unlock()

	if !m.installed.Load() {
		return
	}
	m.logger.Debug("Uninstalling signal handlers")

	for i, sig := range signal.FatalSignals() {
		if err := m.platform.Sigaction(sig, &m.previous[i], nil); err != nil {
			m.logger.Warn("Failed to restore signal handler",
				tag.Signal(signal.GetSignalName(sig)), tag.Error(err))
		}
	}

	if err := m.platform.SetAltStack(nil); err != nil {
		m.logger.Warn("Failed to clear the signal stack", tag.Error(err))
	}
	m.altStack = AltStack{}
	clear(m.previous)
	m.installed.Store(false)

	m.logger.Debug("Signal handlers uninstalled")
}
