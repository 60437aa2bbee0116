package dma

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/ardnew/softdma/hal"
	"github.com/ardnew/softdma/pkg"
)

// MaxTransferLength is the most elements a single descriptor can move.
const MaxTransferLength = 4064

// Transfer states.
const (
	stateLive  int32 = iota // Programmed, owned by the caller
	stateArmed              // Handed to a completion callback
	stateDone               // Torn down
)

// Transfer is a live DMA operation. It owns its endpoints and the consumed
// channel token until it is observed complete.
//
// While a transfer is live, the destination must not be read and the
// source must not be modified by any other code.
type Transfer[S Source, D Destination] struct {
	engine *Engine
	id     ChannelID
	src    S
	dst    D
	length int
	state  atomic.Int32

	srcMem, dstMem []byte
}

// Result is what a completed transfer hands back: both endpoints, a fresh
// token for the channel, and the completion status.
type Result[S Source, D Destination] struct {
	Src    S
	Dst    D
	Token  *Token
	Status pkg.TransferStatus
}

// Err returns nil on success and pkg.ErrBusError if the controller
// reported a bus error.
func (r Result[S, D]) Err() error {
	return r.Status.Error()
}

// Start consumes tok and starts moving data from src to dst.
//
// Both endpoints are configured (performing any cache maintenance), the
// transfer length is derived, and the channel is programmed and enabled
// with its interrupts masked. Configuration errors panic with a wrapped
// pkg sentinel and leave the channel disabled with the token unspent.
func Start[S Source, D Destination](tok *Token, src S, dst D) *Transfer[S, D] {
	tok.check()
	e, id := tok.engine, tok.id
	p := e.port(id)

	srcCfg := src.ConfigureSource(e.cache)
	dstCfg := dst.ConfigureDestination(e.cache)
	n := transferLength(srcCfg, dstCfg)
	srcLine, srcRouted := p.request(id, srcCfg)
	dstLine, dstRouted := p.request(id, dstCfg)

	e.cs.Lock()
	if p.busy[id.Channel] {
		e.cs.Unlock()
		fatal(fmt.Errorf("%w: %s", pkg.ErrChannelBusy, id))
	}
	if !tok.spent.CompareAndSwap(false, true) {
		e.cs.Unlock()
		fatal(fmt.Errorf("%w: %s", pkg.ErrTokenSpent, id))
	}
	p.busy[id.Channel] = true
	e.cs.Unlock()

	flow := hal.FlowControlFor(srcRouted, dstRouted)
	ch := p.regs.Channel(id.Channel)

	ch.SetEnabled(false)
	ch.SetSourceBurst(srcCfg.Burst)
	ch.SetDestinationBurst(dstCfg.Burst)
	ch.SetSourceWidth(srcCfg.Width)
	ch.SetDestinationWidth(dstCfg.Width)
	ch.SetSourceIncrement(!srcCfg.Increment.Constant)
	ch.SetDestinationIncrement(!dstCfg.Increment.Constant)
	ch.SetTransferSize(uint32(n))
	ch.SetSourcePeripheral(srcLine, srcRouted)
	ch.SetDestinationPeripheral(dstLine, dstRouted)
	ch.SetFlowControl(flow)
	ch.SetSourceAddress(srcCfg.Address)
	ch.SetDestinationAddress(dstCfg.Address)
	p.mapMemory(srcCfg)
	p.mapMemory(dstCfg)
	p.regs.ClearTerminalCount(id.bit())
	p.regs.ClearError(id.bit())
	ch.SetErrorInterruptMask(true)
	ch.SetTerminalCountInterruptMask(true)
	ch.SetEnabled(true)

	e.started.Add(1)
	if pkg.LogEnabled(slog.LevelDebug) {
		pkg.LogDebug(pkg.ComponentTransfer, "started",
			"channel", id,
			"length", n,
			"flow", flow,
			"src_width", srcCfg.Width,
			"dst_width", dstCfg.Width,
			"src_burst", srcCfg.Burst,
			"dst_burst", dstCfg.Burst)
	}

	return &Transfer[S, D]{
		engine: e,
		id:     id,
		src:    src,
		dst:    dst,
		length: n,
		srcMem: srcCfg.Memory,
		dstMem: dstCfg.Memory,
	}
}

// transferLength derives the transfer size in source elements, the unit
// the controller counts in. Lengths are reconciled in bytes so the
// controller never moves more than an incrementing side can hold.
func transferLength(src, dst EndpointConfig) int {
	sw, dw := src.Width.Bytes(), dst.Width.Bytes()
	var n, bytes int
	switch {
	case src.Increment.Constant && dst.Increment.Constant:
		fatal(pkg.ErrUndeterminedLength)
	case src.Increment.Constant:
		bytes = dst.Increment.Count * dw
		n = bytes / sw
	case dst.Increment.Constant:
		n = src.Increment.Count
		bytes = n * sw
	default:
		n = src.Increment.Count
		bytes = n * sw
		if bytes != dst.Increment.Count*dw {
			fatal(fmt.Errorf("%w: source %d x %d bytes, destination %d x %d bytes",
				pkg.ErrLengthMismatch, src.Increment.Count, sw, dst.Increment.Count, dw))
		}
	}
	if bytes <= 0 {
		fatal(fmt.Errorf("%w: length %d", pkg.ErrZeroLength, bytes))
	}
	if bytes%sw != 0 || bytes%dw != 0 {
		fatal(fmt.Errorf("%w: %d bytes is not a whole number of %d and %d byte elements",
			pkg.ErrLengthMismatch, bytes, sw, dw))
	}
	if n > MaxTransferLength {
		fatal(fmt.Errorf("%w: %d > %d", pkg.ErrTransferTooLong, n, MaxTransferLength))
	}
	return n
}

// request resolves an endpoint's peripheral to this port's request line.
// It reports false for plain memory.
func (p *port) request(id ChannelID, cfg EndpointConfig) (uint8, bool) {
	if cfg.Peripheral == NoPeripheral {
		return 0, false
	}
	line, _, _, ok := LookupPeripheral(p.group, cfg.Peripheral)
	if !ok {
		fatal(fmt.Errorf("%w: %s on %s (group %s)",
			pkg.ErrPeripheralNotRouted, cfg.Peripheral, id, p.group))
	}
	return line, true
}

// ID returns the channel carrying the transfer.
func (t *Transfer[S, D]) ID() ChannelID {
	return t.id
}

// Len returns the number of source elements being moved.
func (t *Transfer[S, D]) Len() int {
	return t.length
}

// Poll checks whether the controller has finished. If it has, the transfer
// is torn down and its result returned with true. Otherwise Poll returns
// false and changes nothing, so it may be called any number of times.
//
// A bus error on the channel also completes the transfer, with
// pkg.TransferStatusBusError.
func (t *Transfer[S, D]) Poll() (Result[S, D], bool) {
	if t.state.Load() != stateLive {
		fatal(fmt.Errorf("%w: %s", pkg.ErrTransferDone, t.id))
	}
	p := t.engine.ports[t.id.Port]
	bit := t.id.bit()
	if p.regs.RawError()&bit != 0 {
		p.regs.ClearError(bit)
		return t.finish(pkg.TransferStatusBusError), true
	}
	if p.regs.RawTerminalCount()&bit == 0 {
		return Result[S, D]{}, false
	}
	p.regs.ClearTerminalCount(bit)
	return t.finish(pkg.TransferStatusSuccess), true
}

// Wait polls until the transfer completes. Between polls it yields the
// processor with runtime.Gosched, which lets a hosted register file make
// progress on the same thread; on a bare core the yield returns at once
// and the loop is a plain busy spin.
func (t *Transfer[S, D]) Wait() Result[S, D] {
	for {
		if r, ok := t.Poll(); ok {
			return r
		}
		runtime.Gosched()
	}
}

// WaitContext polls until the transfer completes or ctx is done. On
// cancellation the transfer stays live and may be polled again. A
// completed transfer's error is its status error; the result is valid
// either way.
func (t *Transfer[S, D]) WaitContext(ctx context.Context) (Result[S, D], error) {
	for {
		if r, ok := t.Poll(); ok {
			return r, r.Err()
		}
		if err := ctx.Err(); err != nil {
			return Result[S, D]{}, err
		}
		runtime.Gosched()
	}
}

// finish tears down the channel and releases the endpoints and a fresh
// token.
func (t *Transfer[S, D]) finish(status pkg.TransferStatus) Result[S, D] {
	if !t.state.CompareAndSwap(stateLive, stateDone) &&
		!t.state.CompareAndSwap(stateArmed, stateDone) {
		fatal(fmt.Errorf("%w: %s", pkg.ErrTransferDone, t.id))
	}
	e := t.engine
	p := e.ports[t.id.Port]
	ch := p.regs.Channel(t.id.Channel)

	ch.SetEnabled(false)
	ch.SetTerminalCountInterruptMask(true)
	ch.SetErrorInterruptMask(true)
	p.unmapMemory(t.srcMem)
	p.unmapMemory(t.dstMem)

	t.dst.Complete(e.cache)
	t.src.Close()
	t.dst.Close()

	e.cs.Lock()
	p.busy[t.id.Channel] = false
	e.cs.Unlock()

	e.completed.Add(1)
	if status == pkg.TransferStatusBusError {
		e.busErrors.Add(1)
		pkg.LogWarn(pkg.ComponentTransfer, "bus error", "channel", t.id, "length", t.length)
	} else {
		pkg.LogDebug(pkg.ComponentTransfer, "complete", "channel", t.id, "length", t.length)
	}

	return Result[S, D]{
		Src:    t.src,
		Dst:    t.dst,
		Token:  newToken(e, t.id),
		Status: status,
	}
}
