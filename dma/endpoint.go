package dma

import (
	"github.com/ardnew/softdma/hal"
)

// Increment is an endpoint's address policy.
//
// A constant address is a peripheral FIFO (or a fill pattern); an
// incrementing address walks Count elements of a memory buffer.
type Increment struct {
	Constant bool
	Count    int // Elements, when not Constant
}

// Incrementing returns the policy of a buffer of n elements.
func Incrementing(n int) Increment {
	return Increment{Count: n}
}

// Constant returns the policy of a fixed address.
func Constant() Increment {
	return Increment{Constant: true}
}

// EndpointConfig describes one side of a transfer. Endpoints produce it
// when the engine configures them.
type EndpointConfig struct {
	Address    uintptr
	Peripheral Peripheral // NoPeripheral for plain memory
	Width      hal.Width
	Burst      hal.BurstSize
	Increment  Increment

	// Memory is the bytes the controller may touch at Address, nil for a
	// peripheral. Register files that implement hal.MemoryMapper are handed
	// it for the lifetime of the transfer.
	Memory []byte
}

// Endpoint is anything a channel can read from or write to.
type Endpoint interface {
	// Close runs exactly once, after the transfer is observed complete and
	// before the endpoint is handed back to the caller.
	Close()
}

// Source is an endpoint the controller can read.
type Source interface {
	Endpoint

	// ConfigureSource describes the endpoint as a source. Cacheable memory
	// is flushed so the controller reads what the CPU last wrote.
	ConfigureSource(cache hal.Cache) EndpointConfig
}

// Destination is an endpoint the controller can write.
//
// Cacheable memory may only implement Destination if it owns every cache
// line it spans, otherwise invalidation would discard unrelated data
// sharing a line. See [Aligned].
type Destination interface {
	Endpoint

	// ConfigureDestination describes the endpoint as a destination.
	// Cacheable memory is flushed and invalidated so no dirty line can
	// later overwrite what the controller writes.
	ConfigureDestination(cache hal.Cache) EndpointConfig

	// Complete runs once the controller has finished writing. Cacheable
	// memory is invalidated so CPU reads fetch the transferred data.
	Complete(cache hal.Cache)
}

// BurstFor returns the burst tier for moving n bytes.
func BurstFor(n int) hal.BurstSize {
	switch {
	case n >= 16:
		return hal.Incr16
	case n >= 8:
		return hal.Incr8
	case n >= 2:
		return hal.Incr2
	default:
		return hal.Incr1
	}
}
