package dma

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/ardnew/softdma/hal"
	"github.com/ardnew/softdma/hal/sim"
	"github.com/ardnew/softdma/pkg"
)

func TestMain(m *testing.M) {
	pkg.SetLogger(pkg.NewLogger(io.Discard, nil))
	os.Exit(m.Run())
}

// rig is a simulated SoC with an engine over all of its ports.
type rig struct {
	ctrl   *sim.Controller
	cache  *sim.Cache
	engine *Engine
}

func newRig(t *testing.T, deferCallbacks bool) *rig {
	t.Helper()
	ctrl := sim.New(sim.Config{Ports: 3, Channels: 4})
	cache := &sim.Cache{}
	ports := make([]PortConfig, ctrl.NumPorts())
	for i := range ports {
		ports[i] = PortConfig{Registers: ctrl.Port(i), Routed: true}
	}
	engine, err := New(Config{
		Ports:          ports,
		Cache:          cache,
		Interrupts:     ctrl.Interrupts(),
		DeferCallbacks: deferCallbacks,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &rig{ctrl: ctrl, cache: cache, engine: engine}
}

func (r *rig) run(t *testing.T) {
	t.Helper()
	if err := r.ctrl.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

// mustPanic runs fn and fails unless it panics with an error matching
// target.
func mustPanic(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("no panic, want %v", target)
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, target) {
			t.Fatalf("panic = %v, want %v", r, target)
		}
	}()
	fn()
}

func TestNewErrors(t *testing.T) {
	ctrl := sim.New(sim.Config{Ports: 1, Channels: 2})

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"no ports", Config{}, pkg.ErrNoPorts},
		{"nil registers", Config{Ports: []PortConfig{{}}}, pkg.ErrNilRegisters},
		{
			"too many channels",
			Config{Ports: []PortConfig{{Registers: newFakePort(33)}}},
			pkg.ErrTooManyChannels,
		},
		{
			"routed without controller",
			Config{Ports: []PortConfig{{Registers: ctrl.Port(0), Routed: true}}},
			pkg.ErrNoInterruptController,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewResetsPorts(t *testing.T) {
	ctrl := sim.New(sim.Config{Ports: 2, Channels: 2})
	ctrl.Channel(1, 1).SetTerminalCountInterruptMask(false)

	e, err := New(Config{
		Ports: []PortConfig{
			{Registers: ctrl.Port(0)},
			{Registers: ctrl.Port(1), Routed: true},
		},
		Interrupts: ctrl.Interrupts(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if e.NumPorts() != 2 || e.NumChannels(1) != 2 || e.NumChannels(5) != 0 {
		t.Errorf("geometry = %d ports, %d channels", e.NumPorts(), e.NumChannels(1))
	}
	for i := 0; i < 2; i++ {
		if !ctrl.Port(i).Enabled() {
			t.Errorf("port %d not enabled", i)
		}
	}
	if s := ctrl.Channel(1, 1).Snapshot(); !s.TerminalCountMasked || !s.ErrorMasked || s.Enabled {
		t.Errorf("channel not reset: %+v", s)
	}
	if ctrl.Interrupts().Deliver(0) {
		t.Error("unrouted port 0 has a handler attached")
	}
	if !ctrl.Interrupts().Deliver(1) {
		t.Error("routed port 1 has no handler attached")
	}
}

func TestTokenIssuedOnce(t *testing.T) {
	r := newRig(t, false)
	id := ChannelID{Port: 1, Channel: 3}

	tok := r.engine.Token(id)
	if tok.ID() != id || !tok.Valid() {
		t.Fatalf("Token() = %v, valid %v", tok.ID(), tok.Valid())
	}
	mustPanic(t, pkg.ErrTokenIssued, func() { r.engine.Token(id) })

	// Other channels are unaffected.
	_ = r.engine.Token(ChannelID{Port: 1, Channel: 2})
}

func TestTokenInvalidChannel(t *testing.T) {
	r := newRig(t, false)
	for _, id := range []ChannelID{{Port: 3}, {Port: -1}, {Channel: 4}, {Channel: -1}} {
		mustPanic(t, pkg.ErrInvalidChannel, func() { r.engine.Token(id) })
	}
	var zero Token
	if zero.Valid() {
		t.Error("zero Token reports valid")
	}
	mustPanic(t, pkg.ErrInvalidChannel, func() {
		Start(&zero, NewSlice([]byte{1}), NewAligned[byte](1))
	})
}

func TestChannelIDString(t *testing.T) {
	if got := (ChannelID{Port: 2, Channel: 5}).String(); got != "dma2.ch5" {
		t.Errorf("String() = %q, want %q", got, "dma2.ch5")
	}
}

func TestStats(t *testing.T) {
	r := newRig(t, false)

	tok := r.engine.Token(ChannelID{Port: 0, Channel: 0})
	xfer := Start(tok, NewSlice([]byte{1, 2, 3}), NewAligned[byte](3))
	r.run(t)
	res := xfer.Wait()

	r.ctrl.InjectBusError(0, 0)
	xfer = Start(res.Token, res.Src, res.Dst)
	r.run(t)
	xfer.Wait()

	want := Stats{Started: 2, Completed: 2, BusErrors: 1}
	if got := r.engine.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

// fakePort is a register file whose status bitmaps are set directly.
type fakePort struct {
	channels []hal.ChannelRegisters
	tc, err  uint32
	masked   uint32
}

func newFakePort(n int) *fakePort {
	p := &fakePort{channels: make([]hal.ChannelRegisters, n)}
	for i := range p.channels {
		p.channels[i] = fakeChannel{}
	}
	return p
}

func (p *fakePort) SetEnabled(bool)                    {}
func (p *fakePort) Enabled() bool                      { return true }
func (p *fakePort) NumChannels() int                   { return len(p.channels) }
func (p *fakePort) Channel(n int) hal.ChannelRegisters { return p.channels[n] }
func (p *fakePort) RawTerminalCount() uint32           { return p.tc }
func (p *fakePort) TerminalCount() uint32              { return p.tc &^ p.masked }
func (p *fakePort) ClearTerminalCount(mask uint32)     { p.tc &^= mask }
func (p *fakePort) RawError() uint32                   { return p.err }
func (p *fakePort) Error() uint32                      { return p.err &^ p.masked }
func (p *fakePort) ClearError(mask uint32)             { p.err &^= mask }

type fakeChannel struct{}

func (fakeChannel) SetEnabled(bool)                      {}
func (fakeChannel) Enabled() bool                        { return false }
func (fakeChannel) SetSourceIncrement(bool)              {}
func (fakeChannel) SetDestinationIncrement(bool)         {}
func (fakeChannel) SetSourceBurst(hal.BurstSize)         {}
func (fakeChannel) SetDestinationBurst(hal.BurstSize)    {}
func (fakeChannel) SetSourceWidth(hal.Width)             {}
func (fakeChannel) SetDestinationWidth(hal.Width)        {}
func (fakeChannel) SetTransferSize(uint32)               {}
func (fakeChannel) SetSourcePeripheral(uint8, bool)      {}
func (fakeChannel) SetDestinationPeripheral(uint8, bool) {}
func (fakeChannel) SetFlowControl(hal.FlowControl)       {}
func (fakeChannel) SetTerminalCountInterruptMask(bool)   {}
func (fakeChannel) SetErrorInterruptMask(bool)           {}
func (fakeChannel) SetSourceAddress(uintptr)             {}
func (fakeChannel) SetDestinationAddress(uintptr)        {}

// fakeIRQ records attached handlers without delivering anything.
type fakeIRQ map[int]func()

func (f fakeIRQ) Attach(port int, handler func()) { f[port] = handler }
