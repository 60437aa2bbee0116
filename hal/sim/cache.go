package sim

import (
	"sync"

	"github.com/ardnew/softdma/hal"
	"github.com/ardnew/softdma/pkg"
)

// CacheOp identifies a cache maintenance operation.
type CacheOp uint8

// Cache maintenance operations.
const (
	OpFlush CacheOp = iota
	OpFlushInvalidate
	OpInvalidate
)

// String returns the operation name.
func (op CacheOp) String() string {
	switch op {
	case OpFlush:
		return "flush"
	case OpFlushInvalidate:
		return "flush+invalidate"
	case OpInvalidate:
		return "invalidate"
	default:
		return "unknown"
	}
}

// CacheRecord is one recorded maintenance call.
type CacheRecord struct {
	Op     CacheOp
	Addr   uintptr
	Length int
}

// Cache records maintenance calls. The host's caches are coherent with
// the simulated controller, so no line is actually touched.
// The zero value is ready to use.
type Cache struct {
	mu      sync.Mutex
	records []CacheRecord
}

var _ hal.Cache = (*Cache)(nil)

func (c *Cache) record(op CacheOp, addr uintptr, length int) {
	c.mu.Lock()
	c.records = append(c.records, CacheRecord{Op: op, Addr: addr, Length: length})
	c.mu.Unlock()
	pkg.LogDebug(pkg.ComponentCache, op.String(), "addr", addr, "length", length)
}

// Flush implements hal.Cache.
func (c *Cache) Flush(addr uintptr, length int) {
	c.record(OpFlush, addr, length)
}

// FlushInvalidate implements hal.Cache.
func (c *Cache) FlushInvalidate(addr uintptr, length int) {
	c.record(OpFlushInvalidate, addr, length)
}

// Invalidate implements hal.Cache.
func (c *Cache) Invalidate(addr uintptr, length int) {
	c.record(OpInvalidate, addr, length)
}

// Records returns the calls made since the last Reset.
func (c *Cache) Records() []CacheRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CacheRecord(nil), c.records...)
}

// Reset discards recorded calls.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
}
