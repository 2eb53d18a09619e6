// Package stackcursor walks the call stack described by a machine context.
package stackcursor

import (
	"github.com/dagucloud/crashguard/internal/machine"
)

type stage uint8

const (
	stageStart stage = iota
	stageLinkRegister
	stageFrames
	stageDone
)

// Cursor yields return addresses from the innermost frame outwards.
//
// A Cursor is meant to live in static storage: initializing and walking it
// never allocates. It does not own the machine context it is bound to.
type Cursor struct {
	ctx      *machine.Context
	maxDepth int

	depth int
	stage stage
	fp    uintptr

	addrs [machine.MaxStackDepth]uintptr
}

// InitWithMachineContext binds the cursor to ctx and rewinds it. maxDepth is
// clamped to [1, machine.MaxStackDepth].
func (c *Cursor) InitWithMachineContext(maxDepth int, ctx *machine.Context) {
	if maxDepth <= 0 || maxDepth > machine.MaxStackDepth {
		maxDepth = machine.MaxStackDepth
	}
	c.ctx = ctx
	c.maxDepth = maxDepth
	c.Reset()
}

// Reset rewinds the cursor so the same context can be walked again.
func (c *Cursor) Reset() {
	c.depth = 0
	c.stage = stageStart
	c.fp = 0
	if c.ctx != nil {
		c.fp = c.ctx.Registers.FP
	}
}

// Next returns the next address, or false once the walk is over.
func (c *Cursor) Next() (uintptr, bool) {
	if c.ctx == nil || c.depth >= c.maxDepth {
		c.stage = stageDone
		return 0, false
	}

	var addr uintptr
	if c.ctx.HasRegisters() {
		addr = c.nextFromRegisters()
	} else {
		addr = c.nextFromCallers()
	}
	if addr == 0 {
		c.stage = stageDone
		return 0, false
	}

	c.addrs[c.depth] = addr
	c.depth++
	return addr, true
}

func (c *Cursor) nextFromCallers() uintptr {
	if c.stage == stageDone {
		return 0
	}
	callers := c.ctx.Callers()
	if c.depth >= len(callers) {
		return 0
	}
	return callers[c.depth]
}

func (c *Cursor) nextFromRegisters() uintptr {
	for {
		switch c.stage {
		case stageStart:
			c.stage = stageLinkRegister
			if pc := c.ctx.Registers.PC; pc != 0 {
				return pc
			}
			c.stage = stageDone
			return 0

		case stageLinkRegister:
			c.stage = stageFrames
			if lr := c.ctx.Registers.LR; lr != 0 {
				return lr
			}

		case stageFrames:
			if c.fp == 0 {
				return 0
			}
			callerFP, ok := c.ctx.Memory.ReadWord(c.fp)
			if !ok {
				return 0
			}
			ret, ok := c.ctx.Memory.ReadWord(c.fp + machine.WordSize)
			if !ok || ret == 0 {
				return 0
			}
			// Frames live at increasing addresses; anything else is a
			// corrupt chain and ends the walk after this frame.
			if callerFP <= c.fp {
				callerFP = 0
			}
			c.fp = callerFP
			return ret

		default:
			return 0
		}
	}
}

// Depth returns how many addresses have been produced since the last Reset.
func (c *Cursor) Depth() int {
	return c.depth
}

// Addresses returns the addresses produced since the last Reset. The slice
// aliases the cursor's storage.
func (c *Cursor) Addresses() []uintptr {
	return c.addrs[:c.depth]
}

// Walk rewinds the cursor, drains it, and returns every address.
func (c *Cursor) Walk() []uintptr {
	c.Reset()
	for {
		if _, ok := c.Next(); !ok {
			break
		}
	}
	return c.Addresses()
}
