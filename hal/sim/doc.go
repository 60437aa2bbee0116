// Package sim provides a simulated SoC DMA controller implementing the
// [github.com/ardnew/softdma/hal] interfaces.
//
// The simulation is intended for testing the engine and for running the
// examples on a development host. It models:
//
//   - Per-port global enable and terminal-count/error status bitmaps with
//     write-1-to-clear acknowledge registers
//   - Per-channel configuration registers, recorded in a write trace so
//     tests can check programming order
//   - Level-triggered interrupt lines: a completion, or unmasking a channel
//     whose status is already raised, delivers the port's interrupt
//   - Peripheral data registers ([FIFO]) attached at bus addresses
//   - Host memory made visible on the bus with [Controller.MapMemory]; a
//     transfer touching an unmapped address faults with a bus error
//   - Bus error injection
//
// # Timing
//
// Enabling a channel schedules its completion on an akita discrete-event
// engine. The delay is derived from the transfer size, the source burst
// tier and the configured bus clock:
//
//	cycles = elements*CyclesPerBeat + bursts*BurstOverhead
//
// [Controller.Run] drains the event queue, moving data and raising status
// bits as each transfer completes. Nothing moves until Run is called, which
// lets tests observe a transfer before and after hardware completion.
//
// # Example
//
//	ctrl := sim.New(sim.Config{Ports: 1, Channels: 4})
//	engine, _ := dma.New(dma.Config{
//	    Ports:      []dma.PortConfig{{Registers: ctrl.Port(0), Routed: true}},
//	    Cache:      &sim.Cache{},
//	    Interrupts: ctrl.Interrupts(),
//	})
//	// start transfers, then
//	ctrl.Run()
package sim
