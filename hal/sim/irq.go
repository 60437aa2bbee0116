package sim

import (
	"sync"

	"github.com/ardnew/softdma/hal"
	"github.com/ardnew/softdma/pkg"
)

// InterruptController routes simulated port interrupt lines to handlers.
//
// Deliver runs the handler synchronously on the caller's goroutine, the
// way an interrupt preempts whatever the core was doing.
type InterruptController struct {
	mu        sync.Mutex
	handlers  map[int]func()
	delivered map[int]int
}

var _ hal.InterruptController = (*InterruptController)(nil)

// NewInterruptController creates an interrupt controller with no lines
// attached.
func NewInterruptController() *InterruptController {
	return &InterruptController{
		handlers:  make(map[int]func()),
		delivered: make(map[int]int),
	}
}

// Attach implements hal.InterruptController.
func (ic *InterruptController) Attach(port int, handler func()) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.handlers[port] = handler
	pkg.LogDebug(pkg.ComponentSim, "interrupt attached", "port", port)
}

// Deliver raises the port's interrupt line. It returns false if no handler
// is attached.
func (ic *InterruptController) Deliver(port int) bool {
	ic.mu.Lock()
	h := ic.handlers[port]
	if h != nil {
		ic.delivered[port]++
	}
	ic.mu.Unlock()

	if h == nil {
		return false
	}
	h()
	return true
}

// Delivered returns how many interrupts reached the port's handler.
func (ic *InterruptController) Delivered(port int) int {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.delivered[port]
}
