package hal

import "sync"

// Width is the size of one data element moved by the controller.
type Width uint8

// Data width constants.
const (
	Width8  Width = iota // 8-bit elements
	Width16              // 16-bit elements
	Width32              // 32-bit elements
	Width64              // 64-bit elements
)

// Bytes returns the number of bytes in one element of width w.
func (w Width) Bytes() int {
	return 1 << w
}

// WidthOf returns the width holding n-byte elements.
// It returns false if n is not 1, 2, 4 or 8.
func WidthOf(n uintptr) (Width, bool) {
	switch n {
	case 1:
		return Width8, true
	case 2:
		return Width16, true
	case 4:
		return Width32, true
	case 8:
		return Width64, true
	}
	return Width8, false
}

// String returns a human-readable width name.
func (w Width) String() string {
	switch w {
	case Width8:
		return "8-bit"
	case Width16:
		return "16-bit"
	case Width32:
		return "32-bit"
	case Width64:
		return "64-bit"
	default:
		return "unknown"
	}
}

// BurstSize is the number of beats the controller moves per bus grant.
type BurstSize uint8

// Burst size tiers, in register encoding order.
const (
	Incr1  BurstSize = iota // Single beat
	Incr2                   // 2 beats
	Incr8                   // 8 beats
	Incr16                  // 16 beats
)

// Beats returns the number of beats in one burst.
func (b BurstSize) Beats() int {
	switch b {
	case Incr2:
		return 2
	case Incr8:
		return 8
	case Incr16:
		return 16
	default:
		return 1
	}
}

// String returns the burst tier name.
func (b BurstSize) String() string {
	switch b {
	case Incr1:
		return "Incr1"
	case Incr2:
		return "Incr2"
	case Incr8:
		return "Incr8"
	case Incr16:
		return "Incr16"
	default:
		return "unknown"
	}
}

// FlowControl selects which side of a transfer paces it.
type FlowControl uint8

// Flow control modes.
const (
	MemoryToMemory         FlowControl = iota // Controller paced
	MemoryToPeripheral                        // Destination requests data
	PeripheralToMemory                        // Source requests data
	PeripheralToPeripheral                    // Both sides handshake
)

// FlowControlFor derives the flow control mode from which sides are
// peripherals.
func FlowControlFor(srcPeripheral, dstPeripheral bool) FlowControl {
	switch {
	case srcPeripheral && dstPeripheral:
		return PeripheralToPeripheral
	case srcPeripheral:
		return PeripheralToMemory
	case dstPeripheral:
		return MemoryToPeripheral
	default:
		return MemoryToMemory
	}
}

// String returns a human-readable flow control name.
func (f FlowControl) String() string {
	switch f {
	case MemoryToMemory:
		return "mem->mem"
	case MemoryToPeripheral:
		return "mem->periph"
	case PeripheralToMemory:
		return "periph->mem"
	case PeripheralToPeripheral:
		return "periph->periph"
	default:
		return "unknown"
	}
}

// PortRegisters is the register block shared by every channel of a port.
//
// Status registers hold one bit per channel, bit n for channel n. Writes to
// the clear registers acknowledge every channel whose bit is set.
type PortRegisters interface {
	// SetEnabled sets the port's global enable.
	SetEnabled(enable bool)

	// Enabled returns the port's global enable.
	Enabled() bool

	// NumChannels returns the number of channels on the port.
	NumChannels() int

	// Channel returns the register block of channel n.
	Channel(n int) ChannelRegisters

	// RawTerminalCount returns the terminal-count status of all channels,
	// regardless of interrupt masks.
	RawTerminalCount() uint32

	// TerminalCount returns the terminal-count status of channels whose
	// terminal-count interrupt is unmasked.
	TerminalCount() uint32

	// ClearTerminalCount acknowledges terminal count on the channels in mask.
	ClearTerminalCount(mask uint32)

	// RawError returns the error status of all channels.
	RawError() uint32

	// Error returns the error status of channels whose error interrupt is
	// unmasked.
	Error() uint32

	// ClearError acknowledges errors on the channels in mask.
	ClearError(mask uint32)
}

// ChannelRegisters is the register block of a single channel.
//
// The engine writes configuration while the channel is disabled and sets
// the enable last.
type ChannelRegisters interface {
	SetEnabled(enable bool)
	Enabled() bool

	SetSourceIncrement(incr bool)
	SetDestinationIncrement(incr bool)
	SetSourceBurst(b BurstSize)
	SetDestinationBurst(b BurstSize)
	SetSourceWidth(w Width)
	SetDestinationWidth(w Width)

	// SetTransferSize sets the number of source elements to move.
	SetTransferSize(n uint32)

	// SetSourcePeripheral selects the source request line. valid=false
	// clears the field for plain memory.
	SetSourcePeripheral(id uint8, valid bool)

	// SetDestinationPeripheral selects the destination request line.
	SetDestinationPeripheral(id uint8, valid bool)

	SetFlowControl(f FlowControl)

	// SetTerminalCountInterruptMask masks (true) or unmasks the channel's
	// terminal-count interrupt.
	SetTerminalCountInterruptMask(masked bool)

	// SetErrorInterruptMask masks (true) or unmasks the channel's error
	// interrupt.
	SetErrorInterruptMask(masked bool)

	SetSourceAddress(addr uintptr)
	SetDestinationAddress(addr uintptr)
}

// MemoryMapper is an optional extension of PortRegisters for register files
// that cannot reach host memory through a bus address alone, such as a
// software model. The engine maps each memory endpoint's bytes before
// enabling a channel and unmaps them when the transfer completes.
type MemoryMapper interface {
	MapMemory(mem []byte)
	UnmapMemory(mem []byte)
}

// CacheLineSize is the CPU data cache line size in bytes.
const CacheLineSize = 64

// Cache maintains coherency between the CPU data cache and memory the
// controller reads or writes.
//
// Implementations only touch lines wholly inside the given range when the
// caller guarantees alignment; unaligned ranges affect partial lines.
type Cache interface {
	// Flush writes dirty lines in the range back to memory.
	Flush(addr uintptr, length int)

	// FlushInvalidate writes dirty lines back and discards them.
	FlushInvalidate(addr uintptr, length int)

	// Invalidate discards lines in the range without writing them back.
	Invalidate(addr uintptr, length int)
}

// NoCache is a Cache for platforms where DMA memory is not cached.
type NoCache struct{}

// Flush implements Cache.
func (NoCache) Flush(uintptr, int) {}

// FlushInvalidate implements Cache.
func (NoCache) FlushInvalidate(uintptr, int) {}

// Invalidate implements Cache.
func (NoCache) Invalidate(uintptr, int) {}

// InterruptController routes port interrupt lines to handlers on the
// running core.
type InterruptController interface {
	// Attach installs handler for the port's interrupt line and enables it.
	Attach(port int, handler func())
}

// CriticalSection excludes interrupt handlers from foreground code.
// On bare metal it disables interrupts; hosted builds use a mutex.
type CriticalSection = sync.Locker
