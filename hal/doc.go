// Package hal defines the hardware boundary of the softdma engine.
//
// The engine programs DMA channels through a small set of interfaces that
// platform vendors implement for their SoC. Nothing in this package knows
// about transfers or endpoints; it only names the registers and services
// the engine consumes.
//
// # Interface Overview
//
//   - [PortRegisters] is the block shared by all channels of a port: global
//     enable plus terminal-count and error status/clear bitmaps
//   - [ChannelRegisters] holds one channel's configuration, addresses and
//     interrupt masks
//   - [Cache] keeps the CPU data cache coherent with DMA-visible memory
//   - [InterruptController] routes a port's interrupt line to a handler
//   - [CriticalSection] excludes interrupt handlers from foreground code
//
// # Implementing a HAL
//
// To support a new SoC:
//
//  1. Map each port's register block and implement [PortRegisters]
//  2. Return a [ChannelRegisters] per channel from Channel(n)
//  3. Implement [Cache] with the core's clean/invalidate by address
//     instructions, or use [NoCache] for uncached DMA memory
//  4. Implement [InterruptController] on top of the platform's
//     interrupt controller
//
// All accesses are plain loads and stores; there is no protocol beyond
// "write configuration, then set enable".
//
// A simulated controller for testing is available in
// [github.com/ardnew/softdma/hal/sim].
package hal
