package sighandler

import (
	"syscall"

	"github.com/dagucloud/crashguard/internal/machine"
)

// fakePlatform keeps the handler table in memory and records what the
// monitor asks the OS to do.
type fakePlatform struct {
	actions map[syscall.Signal]Action

	failOn       syscall.Signal
	failAltStack error
	altStack     *AltStack
	altStackSets int
	installs     int

	raised []syscall.Signal
	exits  []int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{actions: make(map[syscall.Signal]Action)}
}

func (p *fakePlatform) Sigaction(sig syscall.Signal, act, old *Action) error {
	if act != nil && act.Address() == trampolineAddress {
		if sig == p.failOn {
			return syscall.EINVAL
		}
		p.installs++
	}
	if old != nil {
		*old = p.actions[sig]
	}
	if act != nil {
		p.actions[sig] = *act
	}
	return nil
}

func (p *fakePlatform) SetAltStack(st *AltStack) error {
	if p.failAltStack != nil && st != nil {
		return p.failAltStack
	}
	p.altStackSets++
	p.altStack = st
	return nil
}

func (p *fakePlatform) MinAltStackSize() int {
	return 8 << 10
}

func (p *fakePlatform) Raise(sig syscall.Signal) error {
	p.raised = append(p.raised, sig)
	return nil
}

func (p *fakePlatform) Exit(code int) {
	p.exits = append(p.exits, code)
}

// deliver simulates the OS invoking whatever is registered for sig.
func (p *fakePlatform) deliver(sig syscall.Signal, info *Info, uc *machine.UserContext) bool {
	act := p.actions[sig]
	if act.Disposition != DispositionHandler || act.Handler == nil {
		return false
	}
	act.Handler(sig, info, uc)
	return true
}

type actionSummary struct {
	Disposition Disposition
	Address     uintptr
}

func summarize(acts []Action) []actionSummary {
	out := make([]actionSummary, len(acts))
	for i, a := range acts {
		out[i] = actionSummary{Disposition: a.Disposition, Address: a.Address()}
	}
	return out
}

// snapshot summarizes what the platform holds for sigs.
func (p *fakePlatform) snapshot(sigs []syscall.Signal) []actionSummary {
	acts := make([]Action, len(sigs))
	for i, sig := range sigs {
		acts[i] = p.actions[sig]
	}
	return summarize(acts)
}

type countingSuspender struct {
	suspends int
	resumes  int
}

func (s *countingSuspender) Suspend() (machine.Handle, int) {
	s.suspends++
	return machine.Handle{}, 3
}

func (s *countingSuspender) Resume(_ machine.Handle, count int) {
	if count == 3 {
		s.resumes++
	}
}
