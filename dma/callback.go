package dma

import (
	"fmt"
	"sync/atomic"

	"github.com/ardnew/softdma/pkg"
)

// OnComplete switches the transfer to interrupt-driven completion. cb
// receives the transfer's result exactly once, from the interrupt
// dispatcher, or from [Engine.RunCompletions] if the engine defers
// callbacks. The transfer must not be polled afterwards.
//
// The port's interrupt must be routed to the engine; otherwise OnComplete
// panics with pkg.ErrNoInterruptRoute. A nil cb panics with
// pkg.ErrNilCallback.
//
// Without deferral cb runs in interrupt context and must be short and
// non-blocking. It may start another transfer with the returned token.
func (t *Transfer[S, D]) OnComplete(cb func(Result[S, D])) {
	if cb == nil {
		fatal(fmt.Errorf("%w: %s", pkg.ErrNilCallback, t.id))
	}
	e := t.engine
	p := e.ports[t.id.Port]
	if !p.routed {
		fatal(fmt.Errorf("%w: %s", pkg.ErrNoInterruptRoute, t.id))
	}
	if !t.state.CompareAndSwap(stateLive, stateArmed) {
		fatal(fmt.Errorf("%w: %s", pkg.ErrTransferDone, t.id))
	}

	var fired atomic.Bool
	fn := func(status pkg.TransferStatus) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		cb(t.finish(status))
	}

	e.cs.Lock()
	p.slots[t.id.Channel] = fn
	e.cs.Unlock()

	// Unmasking may deliver the interrupt immediately if the transfer has
	// already finished, so the critical section must be released first.
	ch := p.regs.Channel(t.id.Channel)
	ch.SetErrorInterruptMask(false)
	ch.SetTerminalCountInterruptMask(false)

	pkg.LogDebug(pkg.ComponentChannel, "callback armed", "channel", t.id)
}
