package sim

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	akita "github.com/sarchlab/akita/v3/sim"
	"periph.io/x/periph/conn/physic"

	"github.com/ardnew/softdma/pkg"
)

// Default controller geometry and timing.
const (
	DefaultPorts         = 3
	DefaultChannels      = 8
	DefaultBusClock      = 200 * physic.MegaHertz
	DefaultCyclesPerBeat = 1
	DefaultBurstOverhead = 2
)

// Config describes the simulated SoC's DMA controller.
type Config struct {
	Ports         int              // Number of ports (default 3)
	Channels      int              // Channels per port (default 8, max 32)
	BusClock      physic.Frequency // Bus clock (default 200MHz)
	CyclesPerBeat int              // Bus cycles per data beat (default 1)
	BurstOverhead int              // Arbitration cycles per burst (default 2)
}

func (c *Config) setDefaults() {
	if c.Ports <= 0 {
		c.Ports = DefaultPorts
	}
	if c.Channels <= 0 {
		c.Channels = DefaultChannels
	}
	if c.Channels > 32 {
		c.Channels = 32
	}
	if c.BusClock <= 0 {
		c.BusClock = DefaultBusClock
	}
	if c.CyclesPerBeat <= 0 {
		c.CyclesPerBeat = DefaultCyclesPerBeat
	}
	if c.BurstOverhead < 0 {
		c.BurstOverhead = 0
	}
}

// Controller is a software model of the SoC's DMA controller.
//
// Register writes take effect immediately. Data movement is deferred to
// completion events on an akita discrete-event engine, which Run drains.
// Memory-side addresses resolve against regions mapped with MapMemory; an
// address with an attached FIFO is routed to it instead. A transfer touching
// an unmapped address faults with a bus error.
type Controller struct {
	cfg  Config
	freq akita.Freq

	mu      sync.Mutex
	engine  *akita.SerialEngine
	ports   []*Port
	fifos   map[uintptr]*FIFO
	regions []region
	irq     *InterruptController
}

// region is host memory visible on the simulated bus.
type region struct {
	base uintptr
	mem  []byte
}

// New creates a controller with every port and channel disabled.
func New(cfg Config) *Controller {
	cfg.setDefaults()
	c := &Controller{
		cfg:    cfg,
		freq:   akita.Freq(float64(cfg.BusClock) / float64(physic.Hertz)),
		engine: akita.NewSerialEngine(),
		fifos:  make(map[uintptr]*FIFO),
		irq:    NewInterruptController(),
	}
	c.ports = make([]*Port, cfg.Ports)
	for i := range c.ports {
		p := &Port{ctrl: c, index: i}
		p.channels = make([]*Channel, cfg.Channels)
		for n := range p.channels {
			p.channels[n] = &Channel{
				port:      p,
				index:     n,
				tcMasked:  true,
				errMasked: true,
				srcPeriph: -1,
				dstPeriph: -1,
			}
		}
		c.ports[i] = p
	}
	pkg.LogDebug(pkg.ComponentSim, "controller created",
		"ports", cfg.Ports, "channels", cfg.Channels, "bus", cfg.BusClock.String())
	return c
}

// Config returns the controller configuration with defaults applied.
func (c *Controller) Config() Config {
	return c.cfg
}

// NumPorts returns the number of ports.
func (c *Controller) NumPorts() int {
	return len(c.ports)
}

// Port returns the register block of port i.
func (c *Controller) Port(i int) *Port {
	return c.ports[i]
}

// Channel returns the register block of a channel.
func (c *Controller) Channel(port, channel int) *Channel {
	return c.ports[port].channels[channel]
}

// Interrupts returns the controller's interrupt controller.
func (c *Controller) Interrupts() *InterruptController {
	return c.irq
}

// AttachFIFO maps f at bus address addr. Channel sides addressing addr read
// from or write to f.
func (c *Controller) AttachFIFO(addr uintptr, f *FIFO) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fifos[addr] = f
	f.attach(c)
}

// MapMemory makes mem visible on the bus at its own address. Mappings nest:
// each call needs a matching UnmapMemory.
func (c *Controller) MapMemory(mem []byte) {
	if len(mem) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regions = append(c.regions, region{base: baseOf(mem), mem: mem})
}

// UnmapMemory removes one mapping of mem.
func (c *Controller) UnmapMemory(mem []byte) {
	if len(mem) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	base := baseOf(mem)
	for i, r := range c.regions {
		if r.base == base && len(r.mem) == len(mem) {
			c.regions = append(c.regions[:i], c.regions[i+1:]...)
			return
		}
	}
}

func baseOf(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
}

// resolve returns the n mapped bytes at addr. Caller holds c.mu.
func (c *Controller) resolve(addr uintptr, n int) ([]byte, bool) {
	for _, r := range c.regions {
		if addr < r.base {
			continue
		}
		off := addr - r.base
		if off+uintptr(n) <= uintptr(len(r.mem)) {
			return r.mem[off : off+uintptr(n)], true
		}
	}
	return nil, false
}

// InjectBusError makes the next completion of the channel fault instead of
// reaching terminal count.
func (c *Controller) InjectBusError(port, channel int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ports[port].channels[channel].fault = true
}

// Run processes completion events until none remain.
func (c *Controller) Run() error {
	return c.engine.Run()
}

// Now returns the simulated time.
func (c *Controller) Now() time.Duration {
	return toDuration(c.engine.CurrentTime())
}

// Trace returns the register writes made to a channel since the last
// ResetTrace, in order.
func (c *Controller) Trace(port, channel int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.ports[port].channels[channel]
	return append([]string(nil), ch.trace...)
}

// ResetTrace discards the register write trace of a channel.
func (c *Controller) ResetTrace(port, channel int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ports[port].channels[channel].trace = nil
}

func toDuration(t akita.VTimeInSec) time.Duration {
	return time.Duration(float64(t) * float64(time.Second))
}

// completion is the event ending a channel's programmed transfer.
type completion struct {
	*akita.EventBase
	ch  *Channel
	gen uint64
}

// schedule queues the completion of ch. Caller holds c.mu.
func (c *Controller) schedule(ch *Channel) {
	beats := int(ch.size)
	if beats == 0 {
		beats = 1
	}
	per := ch.srcBurst.Beats()
	bursts := (beats + per - 1) / per
	cycles := beats*c.cfg.CyclesPerBeat + bursts*c.cfg.BurstOverhead
	at := c.engine.CurrentTime() + akita.VTimeInSec(cycles)*c.freq.Period()
	c.engine.Schedule(&completion{
		EventBase: akita.NewEventBase(at, c),
		ch:        ch,
		gen:       ch.gen,
	})
}

// Handle implements akita.Handler.
func (c *Controller) Handle(e akita.Event) error {
	evt, ok := e.(*completion)
	if !ok {
		return fmt.Errorf("sim: unexpected event %T", e)
	}

	c.mu.Lock()
	ch := evt.ch
	if !ch.enabled || ch.gen != evt.gen || !ch.port.enabled {
		c.mu.Unlock()
		return nil
	}
	bit := uint32(1) << ch.index
	port := ch.port
	fault := ch.fault
	if !fault {
		switch c.move(ch) {
		case stalled:
			ch.waiting = true
			c.mu.Unlock()
			return nil
		case unmapped:
			fault = true
			pkg.LogWarn(pkg.ComponentSim, "unmapped address",
				"port", port.index, "channel", ch.index, "src", ch.src, "dst", ch.dst)
		}
	}
	ch.fault = false
	ch.enabled = false
	var raise bool
	if fault {
		port.rawErr |= bit
		raise = !ch.errMasked
		pkg.LogDebug(pkg.ComponentSim, "bus error", "port", port.index, "channel", ch.index)
	} else {
		port.rawTC |= bit
		raise = !ch.tcMasked
		pkg.LogDebug(pkg.ComponentSim, "terminal count",
			"port", port.index, "channel", ch.index, "elements", ch.size, "at", c.Now())
	}
	c.mu.Unlock()

	if raise {
		c.irq.Deliver(port.index)
	}
	return nil
}

// Outcomes of move.
const (
	moved = iota
	stalled
	unmapped
)

// move copies the channel's data. It reports stalled without side effects
// if a source FIFO does not yet hold enough data, and unmapped if either
// memory side falls outside every mapped region. Caller holds c.mu.
func (c *Controller) move(ch *Channel) int {
	n := int(ch.size)
	sw, dw := ch.srcWidth.Bytes(), ch.dstWidth.Bytes()
	total := n * sw

	in, out := c.fifos[ch.src], c.fifos[ch.dst]
	if in != nil && in.Len() < total {
		return stalled
	}
	var src, dst []byte
	if in == nil {
		var ok bool
		if src, ok = c.resolve(ch.src, extent(ch.srcIncr, total, sw)); !ok {
			return unmapped
		}
	}
	if out == nil {
		var ok bool
		if dst, ok = c.resolve(ch.dst, extent(ch.dstIncr, total, dw)); !ok {
			return unmapped
		}
	}

	buf := make([]byte, total)
	for i := 0; i < n; i++ {
		beat := buf[i*sw : (i+1)*sw]
		if in != nil {
			in.pop(beat)
		} else {
			copy(beat, src[offset(ch.srcIncr, i, sw):])
		}
	}
	for j := 0; j < total/dw; j++ {
		beat := buf[j*dw : (j+1)*dw]
		if out != nil {
			out.push(beat)
		} else {
			copy(dst[offset(ch.dstIncr, j, dw):], beat)
		}
	}
	return moved
}

// extent is the number of bytes a side touches.
func extent(incr bool, total, width int) int {
	if !incr {
		return width
	}
	return total
}

// kick reschedules channels stalled on f. Caller holds c.mu.
func (c *Controller) kick(f *FIFO) {
	for _, p := range c.ports {
		for _, ch := range p.channels {
			if ch.waiting && ch.enabled && c.fifos[ch.src] == f {
				ch.waiting = false
				c.schedule(ch)
			}
		}
	}
}

func offset(incr bool, i, width int) int {
	if !incr {
		return 0
	}
	return i * width
}
