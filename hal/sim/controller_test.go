package sim

import (
	"bytes"
	"testing"
	"time"
	"unsafe"

	"periph.io/x/periph/conn/physic"

	"github.com/ardnew/softdma/hal"
)

func addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

// program maps src and dst, writes a memory-to-memory copy of n bytes into
// the channel and enables it.
func program(c *Controller, ch hal.ChannelRegisters, src, dst []byte, n int) {
	c.MapMemory(src)
	c.MapMemory(dst)
	ch.SetEnabled(false)
	ch.SetSourceIncrement(true)
	ch.SetDestinationIncrement(true)
	ch.SetSourceBurst(hal.Incr16)
	ch.SetDestinationBurst(hal.Incr16)
	ch.SetSourceWidth(hal.Width8)
	ch.SetDestinationWidth(hal.Width8)
	ch.SetTransferSize(uint32(n))
	ch.SetSourcePeripheral(0, false)
	ch.SetDestinationPeripheral(0, false)
	ch.SetFlowControl(hal.MemoryToMemory)
	ch.SetSourceAddress(addr(src))
	ch.SetDestinationAddress(addr(dst))
	ch.SetEnabled(true)
}

func TestConfigDefaults(t *testing.T) {
	c := New(Config{Channels: 64})
	cfg := c.Config()

	if cfg.Ports != DefaultPorts {
		t.Errorf("Ports = %d, want %d", cfg.Ports, DefaultPorts)
	}
	if cfg.Channels != 32 {
		t.Errorf("Channels = %d, want 32", cfg.Channels)
	}
	if cfg.BusClock != DefaultBusClock {
		t.Errorf("BusClock = %v, want %v", cfg.BusClock, DefaultBusClock)
	}
	if c.NumPorts() != DefaultPorts {
		t.Errorf("NumPorts() = %d, want %d", c.NumPorts(), DefaultPorts)
	}
	if n := c.Port(0).NumChannels(); n != 32 {
		t.Errorf("NumChannels() = %d, want 32", n)
	}
}

func TestMemoryCopy(t *testing.T) {
	c := New(Config{Ports: 1, Channels: 2})
	port := c.Port(0)
	port.SetEnabled(true)

	src := []byte("direct memory access")
	dst := make([]byte, len(src))
	program(c, port.Channel(1), src, dst, len(src))

	if port.RawTerminalCount() != 0 {
		t.Fatal("terminal count raised before Run")
	}
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Errorf("dst = %q, want %q", dst, src)
	}
	if got := port.RawTerminalCount(); got != 0b10 {
		t.Errorf("RawTerminalCount() = %#b, want 0b10", got)
	}
	if got := port.TerminalCount(); got != 0 {
		t.Errorf("TerminalCount() = %#b, want 0 while masked", got)
	}
	if port.Channel(1).Enabled() {
		t.Error("channel still enabled after terminal count")
	}

	port.ClearTerminalCount(0b10)
	if got := port.RawTerminalCount(); got != 0 {
		t.Errorf("RawTerminalCount() after clear = %#b, want 0", got)
	}
}

func TestPortDisabledHoldsTransfer(t *testing.T) {
	c := New(Config{Ports: 1, Channels: 1})
	port := c.Port(0)

	src := []byte{1, 2, 3, 4}
	dst := make([]byte, 4)
	program(c, port.Channel(0), src, dst, 4)
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if port.RawTerminalCount() != 0 {
		t.Fatal("transfer completed on a disabled port")
	}

	port.SetEnabled(true)
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Errorf("dst = %v, want %v", dst, src)
	}
}

func TestTiming(t *testing.T) {
	c := New(Config{
		Ports:         1,
		Channels:      1,
		BusClock:      100 * physic.MegaHertz,
		CyclesPerBeat: 1,
		BurstOverhead: 0,
	})
	port := c.Port(0)
	port.SetEnabled(true)

	src := make([]byte, 100)
	dst := make([]byte, 100)
	program(c, port.Channel(0), src, dst, 100)
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 100 beats at 10ns each.
	got := c.Now()
	if got < 999*time.Nanosecond || got > 1001*time.Nanosecond {
		t.Errorf("Now() = %v, want 1µs", got)
	}
}

func TestInterruptDelivery(t *testing.T) {
	c := New(Config{Ports: 1, Channels: 4})
	port := c.Port(0)
	port.SetEnabled(true)

	var fired int
	c.Interrupts().Attach(0, func() { fired++ })

	src := []byte{0xAA}
	dst := make([]byte, 1)
	ch := port.Channel(2)
	program(c, ch, src, dst, 1)
	ch.SetTerminalCountInterruptMask(false)
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fired != 1 {
		t.Errorf("interrupt fired %d times, want 1", fired)
	}
	if got := port.TerminalCount(); got != 0b100 {
		t.Errorf("TerminalCount() = %#b, want 0b100", got)
	}
	if got := c.Interrupts().Delivered(0); got != 1 {
		t.Errorf("Delivered(0) = %d, want 1", got)
	}
}

func TestUnmaskRaisesPending(t *testing.T) {
	c := New(Config{Ports: 1, Channels: 1})
	port := c.Port(0)
	port.SetEnabled(true)

	var fired int
	c.Interrupts().Attach(0, func() { fired++ })

	src := []byte{1}
	dst := make([]byte, 1)
	ch := port.Channel(0)
	program(c, ch, src, dst, 1)
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if fired != 0 {
		t.Fatalf("masked channel fired %d interrupts", fired)
	}

	ch.SetTerminalCountInterruptMask(false)
	if fired != 1 {
		t.Errorf("unmask with raised status fired %d interrupts, want 1", fired)
	}
}

func TestInjectBusError(t *testing.T) {
	c := New(Config{Ports: 1, Channels: 1})
	port := c.Port(0)
	port.SetEnabled(true)

	src := []byte{1, 2, 3}
	dst := make([]byte, 3)
	c.InjectBusError(0, 0)
	program(c, port.Channel(0), src, dst, 3)
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := port.RawError(); got != 1 {
		t.Errorf("RawError() = %#b, want 1", got)
	}
	if got := port.RawTerminalCount(); got != 0 {
		t.Errorf("RawTerminalCount() = %#b, want 0", got)
	}
	if !bytes.Equal(dst, []byte{0, 0, 0}) {
		t.Errorf("dst = %v, want untouched", dst)
	}

	port.ClearError(1)
	if got := port.RawError(); got != 0 {
		t.Errorf("RawError() after clear = %#b, want 0", got)
	}
}

func TestUnmappedMemoryFaults(t *testing.T) {
	buf := make([]byte, 16)
	src, dst := buf[:4], buf[8:]

	tests := []struct {
		name  string
		setup func(c *Controller)
		n     int
	}{
		{"nothing mapped", func(*Controller) {}, 4},
		{"source only", func(c *Controller) { c.MapMemory(src) }, 4},
		{"past the end of a region", func(c *Controller) {
			c.MapMemory(src)
			c.MapMemory(dst[:4])
		}, 6},
		{"unmapped again", func(c *Controller) {
			c.MapMemory(src)
			c.MapMemory(dst)
			c.UnmapMemory(dst)
		}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range buf {
				buf[i] = byte(i + 1)
			}
			c := New(Config{Ports: 1, Channels: 1})
			port := c.Port(0)
			port.SetEnabled(true)
			tt.setup(c)

			ch := port.Channel(0)
			ch.SetSourceIncrement(true)
			ch.SetDestinationIncrement(true)
			ch.SetSourceWidth(hal.Width8)
			ch.SetDestinationWidth(hal.Width8)
			ch.SetTransferSize(uint32(tt.n))
			ch.SetSourceAddress(addr(src))
			ch.SetDestinationAddress(addr(dst))
			ch.SetEnabled(true)
			if err := c.Run(); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if got := port.RawError(); got != 1 {
				t.Errorf("RawError() = %#b, want 1", got)
			}
			if got := port.RawTerminalCount(); got != 0 {
				t.Errorf("RawTerminalCount() = %#b, want 0", got)
			}
			if !bytes.Equal(dst, []byte{9, 10, 11, 12, 13, 14, 15, 16}) {
				t.Errorf("dst = %v, want untouched", dst)
			}
		})
	}
}

func TestMapMemoryNests(t *testing.T) {
	c := New(Config{Ports: 1, Channels: 1})
	port := c.Port(0)
	port.SetEnabled(true)

	src := []byte{1, 2}
	dst := make([]byte, 2)
	c.MapMemory(dst)
	program(c, port.Channel(0), src, dst, 2)
	c.UnmapMemory(dst)
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if port.RawError() != 0 || !bytes.Equal(dst, src) {
		t.Errorf("RawError() = %#b, dst = %v, want a completed copy", port.RawError(), dst)
	}
}

func TestFIFOSourceStalls(t *testing.T) {
	c := New(Config{Ports: 1, Channels: 1})
	port := c.Port(0)
	port.SetEnabled(true)

	const rx = uintptr(0x4000_1000)
	f := NewFIFO("uart0.rx")
	c.AttachFIFO(rx, f)

	dst := make([]byte, 4)
	ch := port.Channel(0)
	ch.SetSourceIncrement(false)
	ch.SetDestinationIncrement(true)
	ch.SetSourceWidth(hal.Width8)
	ch.SetDestinationWidth(hal.Width8)
	ch.SetTransferSize(4)
	ch.SetSourceAddress(rx)
	ch.SetDestinationAddress(addr(dst))
	c.MapMemory(dst)
	ch.SetEnabled(true)

	f.Write([]byte("ab"))
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if port.RawTerminalCount() != 0 {
		t.Fatal("transfer completed with a short source FIFO")
	}

	f.Write([]byte("cd"))
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := string(dst); got != "abcd" {
		t.Errorf("dst = %q, want %q", got, "abcd")
	}
	if f.Len() != 0 {
		t.Errorf("FIFO Len() = %d, want 0", f.Len())
	}
}

func TestFIFODestination(t *testing.T) {
	c := New(Config{Ports: 1, Channels: 1})
	port := c.Port(0)
	port.SetEnabled(true)

	const tx = uintptr(0x4000_2000)
	f := NewFIFO("spi0.tx")
	c.AttachFIFO(tx, f)

	src := []byte{0x10, 0x20, 0x30, 0x40}
	ch := port.Channel(0)
	ch.SetSourceIncrement(true)
	ch.SetDestinationIncrement(false)
	ch.SetSourceWidth(hal.Width8)
	ch.SetDestinationWidth(hal.Width8)
	ch.SetTransferSize(4)
	ch.SetSourceAddress(addr(src))
	ch.SetDestinationAddress(tx)
	c.MapMemory(src)
	ch.SetEnabled(true)

	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := f.Read(); !bytes.Equal(got, src) {
		t.Errorf("FIFO Read() = %v, want %v", got, src)
	}
}

func TestTraceAndSnapshot(t *testing.T) {
	c := New(Config{Ports: 1, Channels: 1})
	src := []byte{1, 2}
	dst := make([]byte, 2)
	program(c, c.Port(0).Channel(0), src, dst, 2)

	trace := c.Trace(0, 0)
	if len(trace) == 0 || trace[len(trace)-1] != "enable" {
		t.Errorf("Trace() = %v, want enable last", trace)
	}

	s := c.Channel(0, 0).Snapshot()
	if !s.Enabled || s.TransferSize != 2 || s.SourcePeripheral != -1 {
		t.Errorf("Snapshot() = %+v", s)
	}
	if s.SourceAddress != addr(src) || s.DestinationAddress != addr(dst) {
		t.Error("Snapshot() addresses do not match programmed values")
	}

	c.ResetTrace(0, 0)
	if got := c.Trace(0, 0); len(got) != 0 {
		t.Errorf("Trace() after reset = %v, want empty", got)
	}
}

func TestCacheRecords(t *testing.T) {
	var c Cache
	c.Flush(0x1000, 64)
	c.FlushInvalidate(0x2000, 128)
	c.Invalidate(0x2000, 128)

	want := []CacheRecord{
		{OpFlush, 0x1000, 64},
		{OpFlushInvalidate, 0x2000, 128},
		{OpInvalidate, 0x2000, 128},
	}
	got := c.Records()
	if len(got) != len(want) {
		t.Fatalf("Records() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Records()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	c.Reset()
	if len(c.Records()) != 0 {
		t.Error("Records() not empty after Reset")
	}
}

func TestCacheOpString(t *testing.T) {
	tests := []struct {
		op   CacheOp
		want string
	}{
		{OpFlush, "flush"},
		{OpFlushInvalidate, "flush+invalidate"},
		{OpInvalidate, "invalidate"},
		{CacheOp(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("CacheOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestDeliverWithoutHandler(t *testing.T) {
	ic := NewInterruptController()
	if ic.Deliver(3) {
		t.Error("Deliver() = true with no handler attached")
	}
	if ic.Delivered(3) != 0 {
		t.Error("Delivered() counted an unhandled interrupt")
	}
}
