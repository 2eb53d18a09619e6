package machine

import "runtime"

// Handle identifies one suspension so it can be undone.
type Handle struct {
	procs int
}

// Suspender pauses every execution context other than the caller so a crash
// snapshot stays consistent while it is being recorded.
type Suspender interface {
	// Suspend pauses the environment and returns the number of contexts it
	// paused.
	Suspend() (Handle, int)
	// Resume undoes a previous Suspend.
	Resume(h Handle, count int)
}

// RuntimeSuspender narrows the Go scheduler to a single processor for the
// duration of the capture. Other goroutines stop running in parallel with the
// caller and are only scheduled again when the caller blocks or is preempted.
type RuntimeSuspender struct{}

var _ Suspender = RuntimeSuspender{}

// Suspend implements Suspender.
func (RuntimeSuspender) Suspend() (Handle, int) {
	prev := runtime.GOMAXPROCS(1)
	return Handle{procs: prev}, runtime.NumGoroutine() - 1
}

// Resume implements Suspender.
func (RuntimeSuspender) Resume(h Handle, _ int) {
	if h.procs > 0 {
		runtime.GOMAXPROCS(h.procs)
	}
}
