// Package pkg provides shared utilities for the softdma engine.
//
// This package contains common functionality used by the engine, the
// hardware abstraction layer and its simulated backend, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for configuration mistakes and bus errors
//   - Component identifiers for log filtering
//   - Transfer completion status
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogDebug(pkg.ComponentTransfer, "transfer started", "channel", "dma0.ch3")
//
// The active logger is swapped atomically so interrupt handlers never
// contend on a lock to log.
//
// # Errors
//
// Configuration mistakes are raised as panics carrying a wrapped sentinel,
// which tests recover and match:
//
//	defer func() {
//	    err, _ := recover().(error)
//	    if errors.Is(err, pkg.ErrLengthMismatch) {
//	        // ...
//	    }
//	}()
package pkg
