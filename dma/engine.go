package dma

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardnew/softdma/hal"
	"github.com/ardnew/softdma/pkg"
)

// maxChannels is the width of a port's status bitmaps.
const maxChannels = 32

// PortConfig describes one DMA port.
type PortConfig struct {
	Registers hal.PortRegisters

	// Group selects the peripheral request table. GroupAuto derives it from
	// the port's index.
	Group Group

	// Routed reports whether the port's interrupt line reaches the running
	// core. Callback completion is only available on routed ports.
	Routed bool
}

// Config holds engine configuration.
type Config struct {
	Ports []PortConfig

	// Cache maintains coherency of memory endpoints. Defaults to hal.NoCache.
	Cache hal.Cache

	// Interrupts attaches the dispatcher to routed ports. Required if any
	// port is routed.
	Interrupts hal.InterruptController

	// Critical guards state shared with the interrupt dispatcher. Defaults
	// to a sync.Mutex.
	Critical hal.CriticalSection

	// DeferCallbacks queues completion callbacks in the dispatcher instead
	// of invoking them in interrupt context. Queued callbacks run from
	// RunCompletions.
	DeferCallbacks bool
}

// Stats holds engine counters.
type Stats struct {
	Started    uint64 // Transfers started
	Completed  uint64 // Transfers torn down, any status
	BusErrors  uint64 // Transfers completed with a bus error
	Dispatched uint64 // Callbacks taken by the interrupt dispatcher
}

// Engine owns a set of DMA ports and their completion state.
type Engine struct {
	cache    hal.Cache
	cs       hal.CriticalSection
	deferred bool
	ports    []*port

	// Guarded by cs.
	queue []completion

	started    atomic.Uint64
	completed  atomic.Uint64
	busErrors  atomic.Uint64
	dispatched atomic.Uint64
}

type port struct {
	index  int
	regs   hal.PortRegisters
	mapper hal.MemoryMapper // nil if regs address host memory directly
	group  Group
	routed bool

	// Guarded by the engine's critical section.
	issued []bool
	busy   []bool
	slots  []func(pkg.TransferStatus)
}

// completion is a callback taken from its slot, with the status that
// triggered it.
type completion struct {
	fn     func(pkg.TransferStatus)
	status pkg.TransferStatus
}

// New creates an engine over the configured ports. Each port is globally
// enabled with all of its channels disabled and interrupt-masked, and the
// dispatcher is attached to every routed port.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Ports) == 0 {
		return nil, pkg.ErrNoPorts
	}
	e := &Engine{
		cache:    cfg.Cache,
		cs:       cfg.Critical,
		deferred: cfg.DeferCallbacks,
	}
	if e.cache == nil {
		e.cache = hal.NoCache{}
	}
	if e.cs == nil {
		e.cs = &sync.Mutex{}
	}

	for i, pc := range cfg.Ports {
		if pc.Registers == nil {
			return nil, fmt.Errorf("%w: port %d", pkg.ErrNilRegisters, i)
		}
		n := pc.Registers.NumChannels()
		if n > maxChannels {
			return nil, fmt.Errorf("%w: port %d has %d", pkg.ErrTooManyChannels, i, n)
		}
		if pc.Routed && cfg.Interrupts == nil {
			return nil, fmt.Errorf("%w: port %d is routed", pkg.ErrNoInterruptController, i)
		}
		group := pc.Group
		if group == GroupAuto {
			group = GroupForPort(i)
		}
		mapper, _ := pc.Registers.(hal.MemoryMapper)
		e.ports = append(e.ports, &port{
			index:  i,
			regs:   pc.Registers,
			mapper: mapper,
			group:  group,
			routed: pc.Routed,
			issued: make([]bool, n),
			busy:   make([]bool, n),
			slots:  make([]func(pkg.TransferStatus), n),
		})
	}

	for _, p := range e.ports {
		p.reset()
		p.regs.SetEnabled(true)
		if p.routed {
			index := p.index
			cfg.Interrupts.Attach(index, func() { e.HandleInterrupt(index) })
		}
		pkg.LogDebug(pkg.ComponentEngine, "port enabled",
			"port", p.index,
			"channels", len(p.busy),
			"group", p.group,
			"routed", p.routed)
	}
	return e, nil
}

// reset disables and masks every channel and clears stale status.
func (p *port) reset() {
	for n := range p.busy {
		ch := p.regs.Channel(n)
		ch.SetEnabled(false)
		ch.SetTerminalCountInterruptMask(true)
		ch.SetErrorInterruptMask(true)
	}
	all := uint32(uint64(1)<<len(p.busy) - 1)
	p.regs.ClearTerminalCount(all)
	p.regs.ClearError(all)
}

// NumPorts returns the number of configured ports.
func (e *Engine) NumPorts() int {
	return len(e.ports)
}

// NumChannels returns the number of channels on port.
func (e *Engine) NumChannels(port int) int {
	if port < 0 || port >= len(e.ports) {
		return 0
	}
	return len(e.ports[port].busy)
}

// port returns the port owning id, or panics if id is not a channel of
// this engine.
func (e *Engine) port(id ChannelID) *port {
	if id.Port < 0 || id.Port >= len(e.ports) {
		fatal(fmt.Errorf("%w: %s", pkg.ErrInvalidChannel, id))
	}
	p := e.ports[id.Port]
	if id.Channel < 0 || id.Channel >= len(p.busy) {
		fatal(fmt.Errorf("%w: %s", pkg.ErrInvalidChannel, id))
	}
	return p
}

// Token returns the ownership token of channel id. Each channel's token is
// handed out once; later tokens come back with completed transfers.
func (e *Engine) Token(id ChannelID) *Token {
	p := e.port(id)
	e.cs.Lock()
	issued := p.issued[id.Channel]
	p.issued[id.Channel] = true
	e.cs.Unlock()
	if issued {
		fatal(fmt.Errorf("%w: %s", pkg.ErrTokenIssued, id))
	}
	return newToken(e, id)
}

// Busy reports whether channel id has a transfer in flight.
func (e *Engine) Busy(id ChannelID) bool {
	p := e.port(id)
	e.cs.Lock()
	defer e.cs.Unlock()
	return p.busy[id.Channel]
}

// Armed reports whether channel id has a completion callback waiting for
// its interrupt.
func (e *Engine) Armed(id ChannelID) bool {
	p := e.port(id)
	e.cs.Lock()
	defer e.cs.Unlock()
	return p.slots[id.Channel] != nil
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Started:    e.started.Load(),
		Completed:  e.completed.Load(),
		BusErrors:  e.busErrors.Load(),
		Dispatched: e.dispatched.Load(),
	}
}

// fatal logs and raises a configuration error.
func fatal(err error) {
	pkg.LogError(pkg.ComponentEngine, "configuration error", "error", err)
	panic(err)
}

// mapMemory hands an endpoint's bytes to a register file that needs them.
func (p *port) mapMemory(cfg EndpointConfig) {
	if p.mapper != nil && cfg.Memory != nil {
		p.mapper.MapMemory(cfg.Memory)
	}
}

func (p *port) unmapMemory(mem []byte) {
	if p.mapper != nil && mem != nil {
		p.mapper.UnmapMemory(mem)
	}
}
