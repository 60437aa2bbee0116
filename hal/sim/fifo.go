package sim

import "sync"

// FIFO models a peripheral data register backed by a byte queue.
//
// A channel reading from the FIFO's address pops bytes; a channel writing
// to it pushes them. A transfer whose source FIFO runs short stalls until
// Write supplies the rest.
type FIFO struct {
	Name string

	mu   sync.Mutex
	data []byte
	ctrl *Controller
}

// NewFIFO creates an empty FIFO.
func NewFIFO(name string) *FIFO {
	return &FIFO{Name: name}
}

func (f *FIFO) attach(c *Controller) {
	f.mu.Lock()
	f.ctrl = c
	f.mu.Unlock()
}

// Write queues data as if the peripheral received it, resuming any
// transfer waiting on it.
func (f *FIFO) Write(data []byte) {
	f.mu.Lock()
	f.data = append(f.data, data...)
	c := f.ctrl
	f.mu.Unlock()

	if c != nil {
		c.mu.Lock()
		c.kick(f)
		c.mu.Unlock()
	}
}

// Read drains everything the controller has pushed into the FIFO.
func (f *FIFO) Read() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.data
	f.data = nil
	return out
}

// Len returns the number of queued bytes.
func (f *FIFO) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

func (f *FIFO) pop(out []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(out, f.data)
	f.data = f.data[n:]
}

func (f *FIFO) push(in []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append(f.data, in...)
}
