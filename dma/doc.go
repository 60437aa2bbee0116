// Package dma connects memory and peripheral endpoints through the channels
// of a SoC DMA controller.
//
// # Ownership
//
// Every channel has exactly one [Token]. [Engine.Token] hands it out once;
// [Start] consumes it and returns a [Transfer] that owns the token and both
// endpoints until the transfer is observed complete. Completion returns a
// [Result] carrying the endpoints and a fresh token, which is the only way
// to start the channel's next transfer.
//
// # Endpoints
//
// A [Source] or [Destination] describes itself as an [EndpointConfig] and
// performs its own cache maintenance when configured:
//
//   - [Slice] wraps ordinary memory and may only be a source
//   - [Fill] repeats a single value from a constant address
//   - [Aligned] owns whole cache lines and may be either side
//   - [FIFO] is a peripheral data register, paced by its request line
//
// The transfer length comes from whichever endpoint increments and is
// counted in source elements. If both increment they must span the same
// number of bytes, and the byte total must be whole in both element
// widths, so a 32-bit FIFO filling a byte buffer of 8 moves 2 words. Burst
// size follows the byte count (see
// [BurstFor]) and flow control follows which sides are peripherals.
//
// # Completion
//
// A transfer completes one of two ways. [Transfer.Poll], [Transfer.Wait] and
// [Transfer.WaitContext] read the channel's status directly, with its
// interrupts masked. [Transfer.OnComplete] stores a callback in the
// channel's slot and unmasks its interrupts; [Engine.HandleInterrupt] takes
// the callback and runs it. A bus error completes a transfer in either mode
// with pkg.TransferStatusBusError.
//
// # Errors
//
// Misuse is a programming error: [Start] and the completion methods panic
// with an error wrapping a pkg sentinel (pkg.ErrLengthMismatch,
// pkg.ErrTokenSpent, ...). Runtime configuration problems are returned from
// [New].
package dma
