package stackcursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagucloud/crashguard/internal/machine"
)

// syntheticContext builds a context whose PC is pc and whose frame chain
// returns to each of returns in order, innermost first.
func syntheticContext(pc uintptr, returns ...uintptr) *machine.Context {
	mem := machine.WordMemory{}
	const base = uintptr(0x7ff000)
	const frameSize = uintptr(0x40)

	fp := uintptr(0)
	if len(returns) > 0 {
		fp = base
	}
	for i, ret := range returns {
		cur := base + uintptr(i)*frameSize
		next := uintptr(0)
		if i+1 < len(returns) {
			next = cur + frameSize
		}
		mem.PushFrame(cur, next, ret)
	}

	var mc machine.Context
	machine.GetContextForSignal(&machine.UserContext{
		Registers: machine.Registers{PC: pc, FP: fp, SP: base - 0x10},
		Memory:    mem,
	}, &mc)
	return &mc
}

func drain(c *Cursor) []uintptr {
	var out []uintptr
	for {
		addr, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, addr)
	}
}

func TestCursor_KnownFrameChain(t *testing.T) {
	tests := []struct {
		name    string
		returns []uintptr
	}{
		{name: "LeafOnly"},
		{name: "OneCaller", returns: []uintptr{0x2000}},
		{name: "FourCallers", returns: []uintptr{0x2000, 0x3000, 0x4000, 0x5000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := syntheticContext(0x1000, tt.returns...)

			var c Cursor
			c.InitWithMachineContext(machine.MaxStackDepth, ctx)

			want := append([]uintptr{0x1000}, tt.returns...)
			got := drain(&c)
			assert.Equal(t, want, got)
			assert.Equal(t, len(want), c.Depth())

			// Exhausted cursors stay exhausted.
			_, ok := c.Next()
			assert.False(t, ok)
		})
	}
}

func TestCursor_Restartable(t *testing.T) {
	ctx := syntheticContext(0x1000, 0x2000, 0x3000)

	var c Cursor
	c.InitWithMachineContext(10, ctx)
	first := drain(&c)

	c.Reset()
	second := drain(&c)
	assert.Equal(t, first, second)
	assert.Equal(t, first, c.Walk())
}

func TestCursor_MaxDepth(t *testing.T) {
	ctx := syntheticContext(0x1000, 0x2000, 0x3000, 0x4000, 0x5000)

	var c Cursor
	c.InitWithMachineContext(3, ctx)
	assert.Equal(t, []uintptr{0x1000, 0x2000, 0x3000}, c.Walk())

	c.InitWithMachineContext(0, ctx)
	assert.Len(t, c.Walk(), 5, "non-positive depth falls back to the maximum")
}

func TestCursor_LinkRegister(t *testing.T) {
	ctx := syntheticContext(0x1000, 0x3000)
	ctx.Registers.LR = 0x2000

	var c Cursor
	c.InitWithMachineContext(machine.MaxStackDepth, ctx)
	assert.Equal(t, []uintptr{0x1000, 0x2000, 0x3000}, c.Walk())
}

func TestCursor_StopsOnBrokenChain(t *testing.T) {
	t.Run("UnreadableFrame", func(t *testing.T) {
		ctx := syntheticContext(0x1000)
		ctx.Registers.FP = 0xbad0

		var c Cursor
		c.InitWithMachineContext(machine.MaxStackDepth, ctx)
		assert.Equal(t, []uintptr{0x1000}, c.Walk())
	})

	t.Run("Cycle", func(t *testing.T) {
		mem := machine.WordMemory{}
		mem.PushFrame(0x8000, 0x8000, 0x2000)
		var mc machine.Context
		machine.GetContextForSignal(&machine.UserContext{
			Registers: machine.Registers{PC: 0x1000, FP: 0x8000},
			Memory:    mem,
		}, &mc)

		var c Cursor
		c.InitWithMachineContext(machine.MaxStackDepth, &mc)
		assert.Equal(t, []uintptr{0x1000, 0x2000}, c.Walk())
	})

	t.Run("NoPC", func(t *testing.T) {
		ctx := syntheticContext(0, 0x2000)

		var c Cursor
		c.InitWithMachineContext(machine.MaxStackDepth, ctx)
		assert.Empty(t, c.Walk())
	})
}

func TestCursor_CurrentGoroutine(t *testing.T) {
	var mc machine.Context
	machine.GetContextForSignal(nil, &mc)

	var c Cursor
	c.InitWithMachineContext(machine.MaxStackDepth, &mc)
	addrs := c.Walk()
	require.NotEmpty(t, addrs)
	assert.Equal(t, mc.Callers(), addrs)
}

func TestCursor_Unbound(t *testing.T) {
	var c Cursor
	_, ok := c.Next()
	assert.False(t, ok)
	assert.Empty(t, c.Walk())
}
