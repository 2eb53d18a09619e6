package sighandler

import (
	"github.com/google/uuid"

	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
)

// SetEnabled implements monitor.Monitor.
//
// Enabling assigns a fresh event ID and installs the handlers; if the
// install fails the monitor stays disabled. Disabling uninstalls them.
// Requests for the current state do nothing.
func (m *Monitor) SetEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if enabled == m.enabled.Load() {
		return nil
	}

	if !enabled {
		m.uninstall()
		m.enabled.Store(false)
		m.logger.Info("Signal monitor disabled")
		return nil
	}

	id := uuid.NewString()
	m.eventID.Store(&id)
	if err := m.install(); err != nil {
		return err
	}
	m.enabled.Store(true)
	m.logger.Info("Signal monitor enabled", tag.EventID(id))
	return nil
}

// IsEnabled implements monitor.Monitor.
func (m *Monitor) IsEnabled() bool {
	return m.enabled.Load()
}

// EventID returns the identifier assigned by the most recent enable.
func (m *Monitor) EventID() string {
	if id := m.eventID.Load(); id != nil {
		return *id
	}
	return ""
}

// Reinstall installs the handlers again so the trampoline is back at the top
// of the chain after other code replaced it.
func (m *Monitor) Reinstall() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.install()
}
