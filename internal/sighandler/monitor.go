// Package sighandler intercepts fatal signals, records the state of the
// faulting thread and passes the signal on to whatever handled it before.
package sighandler

import (
	"errors"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/dagucloud/crashguard/internal/cmn/logger"
	"github.com/dagucloud/crashguard/internal/machine"
	"github.com/dagucloud/crashguard/internal/monitor"
	"github.com/dagucloud/crashguard/internal/stackcursor"
)

// Name is the name the signal monitor registers under.
const Name = "signal"

var (
	// ErrInstallFailed is returned when the OS rejects a handler registration.
	ErrInstallFailed = errors.New("failed to install signal handlers")
	// ErrUnknownSignal is returned for signals outside the fatal signal set.
	ErrUnknownSignal = errors.New("not a fatal signal")
	// ErrMonitorActive is returned when another monitor already has its
	// handlers installed on the same platform.
	ErrMonitorActive = errors.New("another signal monitor is installed")
)

var _ monitor.Monitor = (*Monitor)(nil)

// Monitor owns the fatal signal handlers of the process.
//
// Install, uninstall and enable transitions are serialized by mu. The
// handler path never takes mu: it only reads atomics and storage that is
// written while the handlers are not installed.
type Monitor struct {
	platform   Platform
	dispatcher *monitor.Dispatcher
	suspender  machine.Suspender
	logger     logger.Logger
	maxDepth   int

	mu        sync.Mutex
	installed atomic.Bool
	previous  []Action
	altStack  AltStack
	altBuf    []byte

	enabled atomic.Bool
	eventID atomic.Pointer[string]
	// entered is set the first time the handler runs and never cleared.
	entered atomic.Bool

	event   monitor.Context
	machine machine.Context
	cursor  stackcursor.Cursor
}

type Option func(*Monitor)

// WithDispatcher sets the dispatcher captured events are handed to.
func WithDispatcher(d *monitor.Dispatcher) Option {
	return func(m *Monitor) {
		m.dispatcher = d
	}
}

// WithSuspender sets how other execution contexts are paused during capture.
func WithSuspender(s machine.Suspender) Option {
	return func(m *Monitor) {
		m.suspender = s
	}
}

// WithMaxStackDepth bounds the number of frames recorded per crash.
func WithMaxStackDepth(depth int) Option {
	return func(m *Monitor) {
		m.maxDepth = depth
	}
}

// WithLogger sets the logger used by install and uninstall.
func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

// New creates a disabled monitor on platform and registers it with its
// dispatcher.
func New(platform Platform, opts ...Option) *Monitor {
	m := &Monitor{
		platform:  platform,
		suspender: machine.RuntimeSuspender{},
		logger:    logger.Default(),
		maxDepth:  machine.MaxStackDepth,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dispatcher == nil {
		m.dispatcher = monitor.NewDispatcher(monitor.WithLogger(m.logger))
	}
	m.dispatcher.Register(m)
	return m
}

// Name implements monitor.Monitor.
func (m *Monitor) Name() string {
	return Name
}

// Dispatcher returns the dispatcher events are handed to.
func (m *Monitor) Dispatcher() *monitor.Dispatcher {
	return m.dispatcher
}

// AddContextualInfoToEvent implements monitor.Monitor. Events that did not
// come from a signal are reported as an abort.
func (m *Monitor) AddContextualInfoToEvent(ctx *monitor.Context) {
	if ctx.Type&(monitor.TypeSignal|monitor.TypeMachException) == 0 {
		ctx.Signal.Signum = syscall.SIGABRT
	}
}
