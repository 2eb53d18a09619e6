//go:build unix

package sighandler

import (
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dagucloud/crashguard/internal/signal"
)

// minAltStackSize matches MINSIGSTKSZ on the larger unix ABIs.
const minAltStackSize = 32 << 10

// raiseGrace is how long Raise waits for a re-raised signal to terminate the
// process before exiting explicitly.
const raiseGrace = 250 * time.Millisecond

// The Go runtime owns the process-level sigaction. systemPlatform keeps the
// handler chain in a process-wide registry and routes delivery through
// os/signal, so handlers see signals sent to the process (kill, raise,
// abort) on a dedicated goroutine. Faults raised by Go code itself are turned
// into panics by the runtime and never reach this registry.
type systemPlatform struct {
	mu       sync.Mutex
	regs     map[syscall.Signal]*registration
	altStack []byte
}

type registration struct {
	act  Action
	ch   chan os.Signal
	done chan struct{}
}

var (
	systemOnce sync.Once
	system     *systemPlatform
)

// SystemPlatform returns the process-wide platform backed by the OS.
func SystemPlatform() Platform {
	systemOnce.Do(func() {
		system = &systemPlatform{regs: make(map[syscall.Signal]*registration)}
	})
	return system
}

func (p *systemPlatform) Sigaction(sig syscall.Signal, act, old *Action) error {
	if sig == syscall.SIGKILL || sig == syscall.SIGSTOP || sig <= 0 {
		return unix.EINVAL
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if old != nil {
		*old = p.current(sig)
	}
	if act != nil {
		p.apply(sig, *act)
	}
	return nil
}

func (p *systemPlatform) current(sig syscall.Signal) Action {
	if reg, ok := p.regs[sig]; ok {
		return reg.act
	}
	if ossignal.Ignored(sig) {
		return Action{Disposition: DispositionIgnore}
	}
	return Action{}
}

func (p *systemPlatform) apply(sig syscall.Signal, act Action) {
	if reg, ok := p.regs[sig]; ok {
		if reg.ch != nil {
			ossignal.Stop(reg.ch)
			close(reg.done)
		}
		delete(p.regs, sig)
	}

	switch act.Disposition {
	case DispositionIgnore:
		ossignal.Ignore(sig)
		p.regs[sig] = &registration{act: act}

	case DispositionHandler:
		if act.Handler == nil {
			ossignal.Reset(sig)
			return
		}
		reg := &registration{
			act:  act,
			ch:   make(chan os.Signal, 1),
			done: make(chan struct{}),
		}
		ossignal.Notify(reg.ch, sig)
		p.regs[sig] = reg
		go p.route(sig, reg)

	default:
		ossignal.Reset(sig)
	}
}

func (p *systemPlatform) route(sig syscall.Signal, reg *registration) {
	for {
		select {
		case <-reg.ch:
			reg.act.Handler(sig, &Info{
				Signo: sig,
				Code:  signal.CodeUser,
				Pid:   unix.Getpid(),
			}, nil)
		case <-reg.done:
			return
		}
	}
}

func (p *systemPlatform) SetAltStack(st *AltStack) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.Size() == 0 {
		p.altStack = nil
		return nil
	}
	if st.Size() < minAltStackSize {
		return unix.ENOMEM
	}
	// The runtime already runs signal handling on a per-thread signal
	// stack; the region is kept so it stays reserved for the process.
	p.altStack = st.Stack
	return nil
}

func (p *systemPlatform) MinAltStackSize() int {
	return minAltStackSize
}

func (p *systemPlatform) Raise(sig syscall.Signal) error {
	p.mu.Lock()
	act := p.current(sig)
	p.mu.Unlock()

	switch act.Disposition {
	case DispositionIgnore:
		return nil
	case DispositionHandler:
		if act.Handler != nil {
			act.Handler(sig, &Info{Signo: sig, Code: signal.CodeUser, Pid: unix.Getpid()}, nil)
			return nil
		}
	}

	ossignal.Reset(sig)
	if err := unix.Kill(unix.Getpid(), sig); err != nil {
		return err
	}
	// Signals the runtime only acts on when they are synchronous faults are
	// dropped when sent with kill; terminate the way the default action would.
	time.Sleep(raiseGrace)
	p.Exit(128 + int(sig))
	return nil
}

func (p *systemPlatform) Exit(code int) {
	unix.Exit(code)
}
