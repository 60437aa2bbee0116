package dma

import (
	"math/bits"

	"github.com/ardnew/softdma/pkg"
)

// HandleInterrupt is the dispatcher for port's interrupt line. It is
// attached to every routed port by New, and may also be called directly
// by a platform's vector table.
//
// Terminal-count and error status of unmasked channels is read and
// acknowledged, and each such channel's armed callback is taken from its
// slot and run in increasing channel order after the critical section is
// released. Channels with masked interrupts, i.e. those being polled, are
// left untouched.
func (e *Engine) HandleInterrupt(port int) {
	if port < 0 || port >= len(e.ports) {
		pkg.LogWarn(pkg.ComponentIRQ, "interrupt on unknown port", "port", port)
		return
	}
	p := e.ports[port]

	var run []completion
	e.cs.Lock()
	tc := p.regs.TerminalCount()
	errs := p.regs.Error()
	if tc != 0 {
		p.regs.ClearTerminalCount(tc)
	}
	if errs != 0 {
		p.regs.ClearError(errs)
	}
	for pending := tc | errs; pending != 0; pending &= pending - 1 {
		n := bits.TrailingZeros32(pending)
		if n >= len(p.slots) || p.slots[n] == nil {
			continue
		}
		c := completion{fn: p.slots[n], status: pkg.TransferStatusSuccess}
		p.slots[n] = nil
		if errs&(1<<n) != 0 {
			c.status = pkg.TransferStatusBusError
		}
		e.dispatched.Add(1)
		if e.deferred {
			e.queue = append(e.queue, c)
		} else {
			run = append(run, c)
		}
	}
	e.cs.Unlock()

	if tc|errs == 0 {
		pkg.LogDebug(pkg.ComponentIRQ, "spurious interrupt", "port", port)
	}
	for _, c := range run {
		c.fn(c.status)
	}
}

// RunCompletions runs callbacks queued by the dispatcher when the engine
// defers them, and returns how many ran. It must be called from foreground
// code.
func (e *Engine) RunCompletions() int {
	e.cs.Lock()
	queue := e.queue
	e.queue = nil
	e.cs.Unlock()

	for _, c := range queue {
		c.fn(c.status)
	}
	return len(queue)
}

// PendingCompletions returns the number of queued callbacks.
func (e *Engine) PendingCompletions() int {
	e.cs.Lock()
	defer e.cs.Unlock()
	return len(e.queue)
}
