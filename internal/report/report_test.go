package report

import (
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagucloud/crashguard/internal/machine"
	"github.com/dagucloud/crashguard/internal/monitor"
	"github.com/dagucloud/crashguard/internal/stackcursor"
)

// signalContext builds the context a signal capture produces for a thread
// interrupted at 0x401000 with two caller frames.
func signalContext(t *testing.T) *monitor.Context {
	t.Helper()

	mem := machine.WordMemory{}
	mem.PushFrame(0x7000, 0x7100, 0x401100)
	mem.PushFrame(0x7100, 0, 0x401200)

	mc := &machine.Context{}
	machine.GetContextForSignal(&machine.UserContext{
		ThreadID:  7,
		Registers: machine.Registers{PC: 0x401000, SP: 0x6ff0, FP: 0x7000},
		Memory:    mem,
	}, mc)

	cursor := &stackcursor.Cursor{}
	cursor.InitWithMachineContext(machine.MaxStackDepth, mc)

	return &monitor.Context{
		Type:                    monitor.TypeSignal,
		EventID:                 "event-1",
		FaultAddress:            0xdead,
		Signal:                  monitor.SignalInfo{Signum: syscall.SIGSEGV, Code: 1},
		OffendingMachineContext: mc,
		StackCursor:             cursor,
		RegistersAreValid:       true,
	}
}

func TestBuild_Signal(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := Build(0x1234, signalContext(t), now)

	assert.Equal(t, "0000000000001234", r.ID)
	assert.Equal(t, "event-1", r.EventID)
	assert.Equal(t, now, r.Timestamp)
	assert.Equal(t, "signal", r.Type)
	assert.False(t, r.Recrash)

	require.NotNil(t, r.Signal)
	assert.Equal(t, int(syscall.SIGSEGV), r.Signal.Signum)
	assert.Equal(t, "SIGSEGV", r.Signal.Name)
	assert.Equal(t, "SEGV_MAPERR", r.Signal.CodeName)
	assert.Equal(t, "0xdead", r.FaultAddress)

	require.NotNil(t, r.Registers)
	assert.Equal(t, "0x401000", r.Registers.PC)
	assert.Equal(t, "0x6ff0", r.Registers.SP)
	assert.Equal(t, "0x7000", r.Registers.FP)
	assert.Empty(t, r.Registers.LR)

	addrs := lo.Map(r.Backtrace, func(f Frame, _ int) string { return f.Address })
	assert.Equal(t, []string{"0x401000", "0x401100", "0x401200"}, addrs)
	assert.Nil(t, r.User)

	require.NotNil(t, r.Process)
	assert.Equal(t, os.Getpid(), r.Process.PID)
	require.NotNil(t, r.System)
	assert.NotEmpty(t, r.System.GoVersion)

	assert.Equal(t, "SIGSEGV (SEGV_MAPERR) at 0xdead", r.Summary())
}

func TestBuild_RegistersNotValid(t *testing.T) {
	t.Parallel()

	ctx := signalContext(t)
	ctx.RegistersAreValid = false
	ctx.StackCursor = nil

	r := Build(1, ctx, time.Now())
	assert.Nil(t, r.Registers)
	assert.NotNil(t, r.Backtrace)
	assert.Empty(t, r.Backtrace)
	assert.Empty(t, r.TopFrame())
}

func TestBuild_CurrentGoroutine(t *testing.T) {
	t.Parallel()

	mc := &machine.Context{}
	machine.GetContextForCurrentThread(mc)
	cursor := &stackcursor.Cursor{}
	cursor.InitWithMachineContext(machine.MaxStackDepth, mc)

	r := Build(1, &monitor.Context{
		Type:                    monitor.TypeUser,
		OffendingMachineContext: mc,
		StackCursor:             cursor,
		User: monitor.UserException{
			Name:       "ValueError",
			Reason:     "bad input",
			Language:   "go",
			StackTrace: []string{"main.go:10"},
		},
	}, time.Now())

	require.NotEmpty(t, r.Backtrace)
	assert.Contains(t, r.Backtrace[0].Function, "TestBuild_CurrentGoroutine")
	assert.NotZero(t, r.Backtrace[0].Line)
	assert.Contains(t, r.TopFrame(), "TestBuild_CurrentGoroutine")

	require.NotNil(t, r.User)
	assert.Equal(t, "ValueError", r.User.Name)
	assert.Equal(t, []string{"main.go:10"}, r.User.StackTrace)
	assert.Equal(t, "ValueError: bad input", r.Summary())
	assert.Nil(t, r.Signal)
}

// captureHere is small enough to be inlined into its caller.
func captureHere(mc *machine.Context) {
	machine.GetContextForCurrentThread(mc)
}

func TestBuild_InlinedCallersAreExpanded(t *testing.T) {
	t.Parallel()

	mc := &machine.Context{}
	captureHere(mc)
	cursor := &stackcursor.Cursor{}
	cursor.InitWithMachineContext(machine.MaxStackDepth, mc)

	r := Build(1, &monitor.Context{Type: monitor.TypeUser, OffendingMachineContext: mc, StackCursor: cursor}, time.Now())

	functions := lo.Map(r.Backtrace, func(f Frame, _ int) string { return f.Function })
	require.GreaterOrEqual(t, len(functions), 2)
	assert.True(t, strings.HasSuffix(functions[0], ".captureHere"), functions[0])
	assert.True(t, strings.HasSuffix(functions[1], ".TestBuild_InlinedCallersAreExpanded"), functions[1])
}

func TestGoFrames_SkipsCaptureFrames(t *testing.T) {
	t.Parallel()

	assert.Nil(t, goFrames(nil))

	for _, fn := range []string{
		"github.com/dagucloud/crashguard/internal/sighandler.(*Monitor).capture",
		"github.com/dagucloud/crashguard/internal/machine.GetContextForSignal",
		"github.com/dagucloud/crashguard/internal/monitor.(*Dispatcher).ReportUserException",
	} {
		assert.True(t, isCaptureFrame(fn), fn)
	}
	for _, fn := range []string{
		"github.com/dagucloud/crashguard/internal/report.Build",
		"main.main",
		"github.com/other/machine.Run",
	} {
		assert.False(t, isCaptureFrame(fn), fn)
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	r := Build(42, signalContext(t), time.Now())
	r.UserInfo = map[string]any{"build": "abc"}

	data, err := Encode(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_id": "event-1"`)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.Signal, got.Signal)
	assert.Equal(t, r.Backtrace, got.Backtrace)
	assert.Equal(t, "abc", got.UserInfo["build"])

	_, err = Decode([]byte("{"))
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	t.Parallel()

	id, err := ParseID(FormatID(0x1a2b))
	require.NoError(t, err)
	assert.Equal(t, int64(0x1a2b), id)

	_, err = ParseID("not-hex")
	assert.Error(t, err)
}

func TestSummary_Fallbacks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "signal 99", (&Report{Signal: &Signal{Signum: 99}}).Summary())
	assert.Equal(t, "user", (&Report{Type: "user"}).Summary())
	assert.Equal(t, "Panic", (&Report{User: &UserException{Name: "Panic"}}).Summary())
}
