package monitor

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dagucloud/crashguard/internal/cmn/logger"
	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
	"github.com/dagucloud/crashguard/internal/machine"
	"github.com/dagucloud/crashguard/internal/stackcursor"
)

// Sink receives every event the dispatcher handles. It is called
// synchronously, possibly from inside signal handling, and must return
// promptly.
type Sink interface {
	OnFatalCapture(ctx *Context)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx *Context)

// OnFatalCapture implements Sink.
func (f SinkFunc) OnFatalCapture(ctx *Context) {
	f(ctx)
}

// Monitor is a crash detector registered with a Dispatcher.
type Monitor interface {
	Name() string
	IsEnabled() bool
	SetEnabled(enabled bool) error
	// AddContextualInfoToEvent lets an enabled monitor annotate events that
	// other monitors captured.
	AddContextualInfoToEvent(ctx *Context)
}

type sinkHolder struct {
	sink Sink
}

// Dispatcher hands captured events to the registered sink and tracks
// whether a crash happened while another one was being handled.
//
// The event path reads only atomics and never blocks on a lock.
type Dispatcher struct {
	mu       sync.Mutex
	monitors atomic.Pointer[[]Monitor]
	sink     atomic.Pointer[sinkHolder]

	handlingFatal       atomic.Bool
	crashedDuringFatal  atomic.Bool
	requiresAsyncSafety atomic.Bool

	logger   logger.Logger
	maxDepth int

	eventsVec *prometheus.CounterVec
	events    map[CrashType]prometheus.Counter
	recrashes prometheus.Counter
}

type Option func(*Dispatcher)

// WithRegisterer registers the dispatcher's counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) {
		d.MustRegisterMetrics(reg)
	}
}

// WithLogger sets the logger used outside the event path.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithMaxStackDepth bounds the stack recorded for user-reported events.
func WithMaxStackDepth(depth int) Option {
	return func(d *Dispatcher) {
		d.maxDepth = depth
	}
}

// NewDispatcher creates a dispatcher with no monitors and no sink.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:   logger.Default(),
		maxDepth: machine.MaxStackDepth,
		eventsVec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashguard_events_total",
			Help: "Crash events handled, by type",
		}, []string{"type"}),
		recrashes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashguard_recrashes_total",
			Help: "Crashes captured while another crash was being handled",
		}),
	}
	d.events = make(map[CrashType]prometheus.Counter, len(crashTypes))
	for _, t := range crashTypes {
		d.events[t] = d.eventsVec.WithLabelValues(t.String())
	}
	d.monitors.Store(&[]Monitor{})
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MustRegisterMetrics registers the dispatcher's counters with reg and
// panics if they are already registered there.
func (d *Dispatcher) MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(d.eventsVec, d.recrashes)
}

// Register adds m to the set of monitors consulted for contextual info.
func (d *Dispatcher) Register(m Monitor) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := *d.monitors.Load()
	if slices.Contains(cur, m) {
		return
	}
	next := append(slices.Clone(cur), m)
	d.monitors.Store(&next)
}

// Monitors returns the registered monitors.
func (d *Dispatcher) Monitors() []Monitor {
	return slices.Clone(*d.monitors.Load())
}

// SetEventCallback sets the sink that receives events. A nil sink drops
// them.
func (d *Dispatcher) SetEventCallback(s Sink) {
	if s == nil {
		d.sink.Store(nil)
		return
	}
	d.sink.Store(&sinkHolder{sink: s})
}

// ActiveMonitors reports which monitor types are currently enabled, keyed by
// monitor name.
func (d *Dispatcher) ActiveMonitors() map[string]bool {
	out := make(map[string]bool)
	for _, m := range *d.monitors.Load() {
		out[m.Name()] = m.IsEnabled()
	}
	return out
}

// SetActive enables or disables every registered monitor.
func (d *Dispatcher) SetActive(enabled bool) error {
	var firstErr error
	for _, m := range *d.monitors.Load() {
		if err := m.SetEnabled(enabled); err != nil {
			d.logger.Error("Failed to change monitor state",
				tag.Monitor(m.Name()), tag.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NotifyFatalExceptionCaptured must be called by a monitor as soon as it
// has caught a fatal event and before it builds the event context. It
// returns true when the crash happened inside the handling of an earlier
// one; every monitor is then disabled so the next fault terminates the
// process through the default disposition.
func (d *Dispatcher) NotifyFatalExceptionCaptured(isAsyncSafeEnvironment bool) bool {
	if isAsyncSafeEnvironment {
		d.requiresAsyncSafety.Store(true)
	}
	if d.handlingFatal.Swap(true) {
		d.crashedDuringFatal.Store(true)
	}
	if d.crashedDuringFatal.Load() {
		d.recrashes.Inc()
		_ = d.SetActive(false)
		return true
	}
	return false
}

// HandleException annotates ctx with every enabled monitor's contextual
// info and passes it to the sink. After a fatal event all monitors are
// disabled so the original handlers run when the fault is re-raised.
func (d *Dispatcher) HandleException(ctx *Context) {
	ctx.RequiresAsyncSafety = d.requiresAsyncSafety.Load()
	if d.crashedDuringFatal.Load() {
		ctx.CrashedDuringCrashHandling = true
	}

	for _, m := range *d.monitors.Load() {
		if m.IsEnabled() {
			m.AddContextualInfoToEvent(ctx)
		}
	}

	if c, ok := d.events[ctx.Type]; ok {
		c.Inc()
	}
	if h := d.sink.Load(); h != nil {
		h.sink.OnFatalCapture(ctx)
	}

	if ctx.UserReported {
		d.handlingFatal.Store(false)
		return
	}
	if d.handlingFatal.Load() && !d.crashedDuringFatal.Load() {
		_ = d.SetActive(false)
	}
}

// ReportUserException records a non-fatal, application-reported error with
// the caller's stack and returns the event ID assigned to it.
func (d *Dispatcher) ReportUserException(ex UserException) string {
	var (
		mc     machine.Context
		cursor stackcursor.Cursor
	)
	machine.GetContextForCurrentThread(&mc)
	cursor.InitWithMachineContext(d.maxDepth, &mc)

	ctx := &Context{
		Type:                    TypeUser,
		EventID:                 uuid.NewString(),
		OffendingMachineContext: &mc,
		StackCursor:             &cursor,
		UserReported:            true,
		User:                    ex,
	}
	d.HandleException(ctx)

	d.logger.Info("User exception reported",
		tag.EventID(ctx.EventID), tag.Type(ex.Name))
	return ctx.EventID
}
