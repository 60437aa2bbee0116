package sim

import (
	"github.com/ardnew/softdma/hal"
)

// Port is the simulated register block shared by a port's channels.
type Port struct {
	ctrl     *Controller
	index    int
	enabled  bool
	rawTC    uint32
	rawErr   uint32
	channels []*Channel
}

var (
	_ hal.PortRegisters = (*Port)(nil)
	_ hal.MemoryMapper  = (*Port)(nil)
)

// SetEnabled implements hal.PortRegisters.
func (p *Port) SetEnabled(enable bool) {
	p.ctrl.mu.Lock()
	defer p.ctrl.mu.Unlock()
	if enable && !p.enabled {
		p.enabled = true
		for _, ch := range p.channels {
			if ch.enabled {
				p.ctrl.schedule(ch)
			}
		}
		return
	}
	p.enabled = enable
}

// Enabled implements hal.PortRegisters.
func (p *Port) Enabled() bool {
	p.ctrl.mu.Lock()
	defer p.ctrl.mu.Unlock()
	return p.enabled
}

// NumChannels implements hal.PortRegisters.
func (p *Port) NumChannels() int {
	return len(p.channels)
}

// Channel implements hal.PortRegisters.
func (p *Port) Channel(n int) hal.ChannelRegisters {
	return p.channels[n]
}

// MapMemory implements hal.MemoryMapper. Mappings are controller-wide.
func (p *Port) MapMemory(mem []byte) {
	p.ctrl.MapMemory(mem)
}

// UnmapMemory implements hal.MemoryMapper.
func (p *Port) UnmapMemory(mem []byte) {
	p.ctrl.UnmapMemory(mem)
}

// RawTerminalCount implements hal.PortRegisters.
func (p *Port) RawTerminalCount() uint32 {
	p.ctrl.mu.Lock()
	defer p.ctrl.mu.Unlock()
	return p.rawTC
}

// TerminalCount implements hal.PortRegisters.
func (p *Port) TerminalCount() uint32 {
	p.ctrl.mu.Lock()
	defer p.ctrl.mu.Unlock()
	return p.rawTC &^ p.maskBits(func(ch *Channel) bool { return ch.tcMasked })
}

// ClearTerminalCount implements hal.PortRegisters.
func (p *Port) ClearTerminalCount(mask uint32) {
	p.ctrl.mu.Lock()
	defer p.ctrl.mu.Unlock()
	p.rawTC &^= mask
}

// RawError implements hal.PortRegisters.
func (p *Port) RawError() uint32 {
	p.ctrl.mu.Lock()
	defer p.ctrl.mu.Unlock()
	return p.rawErr
}

// Error implements hal.PortRegisters.
func (p *Port) Error() uint32 {
	p.ctrl.mu.Lock()
	defer p.ctrl.mu.Unlock()
	return p.rawErr &^ p.maskBits(func(ch *Channel) bool { return ch.errMasked })
}

// ClearError implements hal.PortRegisters.
func (p *Port) ClearError(mask uint32) {
	p.ctrl.mu.Lock()
	defer p.ctrl.mu.Unlock()
	p.rawErr &^= mask
}

// maskBits collects the channels for which masked reports true. Caller
// holds the controller lock.
func (p *Port) maskBits(masked func(*Channel) bool) uint32 {
	var bits uint32
	for _, ch := range p.channels {
		if masked(ch) {
			bits |= 1 << ch.index
		}
	}
	return bits
}

// Channel is the simulated register block of one channel.
type Channel struct {
	port  *Port
	index int

	enabled   bool
	srcIncr   bool
	dstIncr   bool
	srcBurst  hal.BurstSize
	dstBurst  hal.BurstSize
	srcWidth  hal.Width
	dstWidth  hal.Width
	size      uint32
	srcPeriph int // -1 when cleared
	dstPeriph int
	flow      hal.FlowControl
	tcMasked  bool
	errMasked bool
	src       uintptr
	dst       uintptr

	gen     uint64 // bumped on every enable
	fault   bool   // next completion raises a bus error
	waiting bool   // stalled on an empty source FIFO
	trace   []string
}

var _ hal.ChannelRegisters = (*Channel)(nil)

// write records a register write and runs fn under the controller lock.
func (ch *Channel) write(name string, fn func()) {
	ch.port.ctrl.mu.Lock()
	defer ch.port.ctrl.mu.Unlock()
	ch.trace = append(ch.trace, name)
	fn()
}

// SetEnabled implements hal.ChannelRegisters.
func (ch *Channel) SetEnabled(enable bool) {
	ch.write("enable", func() {
		if enable && !ch.enabled {
			ch.gen++
			ch.waiting = false
			ch.enabled = true
			if ch.port.enabled {
				ch.port.ctrl.schedule(ch)
			}
			return
		}
		ch.enabled = enable
	})
}

// Enabled implements hal.ChannelRegisters.
func (ch *Channel) Enabled() bool {
	ch.port.ctrl.mu.Lock()
	defer ch.port.ctrl.mu.Unlock()
	return ch.enabled
}

// SetSourceIncrement implements hal.ChannelRegisters.
func (ch *Channel) SetSourceIncrement(incr bool) {
	ch.write("src_incr", func() { ch.srcIncr = incr })
}

// SetDestinationIncrement implements hal.ChannelRegisters.
func (ch *Channel) SetDestinationIncrement(incr bool) {
	ch.write("dst_incr", func() { ch.dstIncr = incr })
}

// SetSourceBurst implements hal.ChannelRegisters.
func (ch *Channel) SetSourceBurst(b hal.BurstSize) {
	ch.write("src_burst", func() { ch.srcBurst = b })
}

// SetDestinationBurst implements hal.ChannelRegisters.
func (ch *Channel) SetDestinationBurst(b hal.BurstSize) {
	ch.write("dst_burst", func() { ch.dstBurst = b })
}

// SetSourceWidth implements hal.ChannelRegisters.
func (ch *Channel) SetSourceWidth(w hal.Width) {
	ch.write("src_width", func() { ch.srcWidth = w })
}

// SetDestinationWidth implements hal.ChannelRegisters.
func (ch *Channel) SetDestinationWidth(w hal.Width) {
	ch.write("dst_width", func() { ch.dstWidth = w })
}

// SetTransferSize implements hal.ChannelRegisters.
func (ch *Channel) SetTransferSize(n uint32) {
	ch.write("transfer_size", func() { ch.size = n })
}

// SetSourcePeripheral implements hal.ChannelRegisters.
func (ch *Channel) SetSourcePeripheral(id uint8, valid bool) {
	ch.write("src_periph", func() { ch.srcPeriph = periphField(id, valid) })
}

// SetDestinationPeripheral implements hal.ChannelRegisters.
func (ch *Channel) SetDestinationPeripheral(id uint8, valid bool) {
	ch.write("dst_periph", func() { ch.dstPeriph = periphField(id, valid) })
}

// SetFlowControl implements hal.ChannelRegisters.
func (ch *Channel) SetFlowControl(f hal.FlowControl) {
	ch.write("flow_control", func() { ch.flow = f })
}

// SetTerminalCountInterruptMask implements hal.ChannelRegisters.
//
// Unmasking while terminal count is already raised delivers the interrupt
// at once, as a level-triggered line would.
func (ch *Channel) SetTerminalCountInterruptMask(masked bool) {
	var raise bool
	ch.write("tc_mask", func() {
		ch.tcMasked = masked
		raise = !masked && ch.port.rawTC&(1<<ch.index) != 0
	})
	if raise {
		ch.port.ctrl.irq.Deliver(ch.port.index)
	}
}

// SetErrorInterruptMask implements hal.ChannelRegisters.
func (ch *Channel) SetErrorInterruptMask(masked bool) {
	var raise bool
	ch.write("err_mask", func() {
		ch.errMasked = masked
		raise = !masked && ch.port.rawErr&(1<<ch.index) != 0
	})
	if raise {
		ch.port.ctrl.irq.Deliver(ch.port.index)
	}
}

// SetSourceAddress implements hal.ChannelRegisters.
func (ch *Channel) SetSourceAddress(addr uintptr) {
	ch.write("src_addr", func() { ch.src = addr })
}

// SetDestinationAddress implements hal.ChannelRegisters.
func (ch *Channel) SetDestinationAddress(addr uintptr) {
	ch.write("dst_addr", func() { ch.dst = addr })
}

// Snapshot is a read-back of a channel's programmed configuration.
type Snapshot struct {
	Enabled               bool
	SourceIncrement       bool
	DestinationIncrement  bool
	SourceBurst           hal.BurstSize
	DestinationBurst      hal.BurstSize
	SourceWidth           hal.Width
	DestinationWidth      hal.Width
	TransferSize          uint32
	SourcePeripheral      int // -1 for memory
	DestinationPeripheral int
	FlowControl           hal.FlowControl
	TerminalCountMasked   bool
	ErrorMasked           bool
	SourceAddress         uintptr
	DestinationAddress    uintptr
}

// Snapshot returns the channel's current register contents.
func (ch *Channel) Snapshot() Snapshot {
	ch.port.ctrl.mu.Lock()
	defer ch.port.ctrl.mu.Unlock()
	return Snapshot{
		Enabled:               ch.enabled,
		SourceIncrement:       ch.srcIncr,
		DestinationIncrement:  ch.dstIncr,
		SourceBurst:           ch.srcBurst,
		DestinationBurst:      ch.dstBurst,
		SourceWidth:           ch.srcWidth,
		DestinationWidth:      ch.dstWidth,
		TransferSize:          ch.size,
		SourcePeripheral:      ch.srcPeriph,
		DestinationPeripheral: ch.dstPeriph,
		FlowControl:           ch.flow,
		TerminalCountMasked:   ch.tcMasked,
		ErrorMasked:           ch.errMasked,
		SourceAddress:         ch.src,
		DestinationAddress:    ch.dst,
	}
}

func periphField(id uint8, valid bool) int {
	if !valid {
		return -1
	}
	return int(id)
}
