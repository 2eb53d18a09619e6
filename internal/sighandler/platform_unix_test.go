//go:build unix

package sighandler

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/dagucloud/crashguard/internal/machine"
)

func TestSystemPlatform_RejectsUncatchable(t *testing.T) {
	p := SystemPlatform()
	act := Action{Disposition: DispositionHandler, Handler: otherHandler}

	assert.ErrorIs(t, p.Sigaction(syscall.SIGKILL, &act, nil), unix.EINVAL)
	assert.ErrorIs(t, p.Sigaction(syscall.SIGSTOP, &act, nil), unix.EINVAL)
}

func TestSystemPlatform_RoutesDelivery(t *testing.T) {
	p := SystemPlatform()

	var before Action
	require.NoError(t, p.Sigaction(syscall.SIGUSR1, nil, &before))
	t.Cleanup(func() { _ = p.Sigaction(syscall.SIGUSR1, &Action{Disposition: DispositionIgnore}, nil) })

	got := make(chan *Info, 1)
	act := Action{
		Disposition: DispositionHandler,
		Handler: func(_ syscall.Signal, info *Info, uc *machine.UserContext) {
			assert.Nil(t, uc)
			got <- info
		},
		Flags: FlagSigInfo,
	}

	var old Action
	require.NoError(t, p.Sigaction(syscall.SIGUSR1, &act, &old))
	assert.Equal(t, before.Disposition, old.Disposition)

	var current Action
	require.NoError(t, p.Sigaction(syscall.SIGUSR1, nil, &current))
	assert.Equal(t, act.Address(), current.Address())

	require.NoError(t, unix.Kill(unix.Getpid(), syscall.SIGUSR1))

	select {
	case info := <-got:
		assert.Equal(t, syscall.SIGUSR1, info.Signo)
		assert.Equal(t, unix.Getpid(), info.Pid)
	case <-time.After(5 * time.Second):
		t.Fatal("signal was not delivered to the handler")
	}
}

func TestSystemPlatform_RaiseIgnored(t *testing.T) {
	p := SystemPlatform()
	require.NoError(t, p.Sigaction(syscall.SIGUSR2, &Action{Disposition: DispositionIgnore}, nil))

	var current Action
	require.NoError(t, p.Sigaction(syscall.SIGUSR2, nil, &current))
	assert.Equal(t, DispositionIgnore, current.Disposition)

	assert.NoError(t, p.Raise(syscall.SIGUSR2))
}

func TestSystemPlatform_AltStack(t *testing.T) {
	p := SystemPlatform()

	assert.ErrorIs(t, p.SetAltStack(&AltStack{Stack: make([]byte, 1024)}), unix.ENOMEM)
	assert.NoError(t, p.SetAltStack(&AltStack{Stack: make([]byte, p.MinAltStackSize())}))
	assert.NoError(t, p.SetAltStack(nil))
}
