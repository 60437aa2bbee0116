package dma

import (
	"fmt"
	"unsafe"

	"github.com/ardnew/softdma/hal"
	"github.com/ardnew/softdma/pkg"
)

// Element is a type the controller can move as one data beat.
type Element interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 |
		~uint64 | ~int64 | ~float32 | ~float64
}

func sizeOf[T Element]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func widthOf[T Element]() hal.Width {
	w, _ := hal.WidthOf(unsafe.Sizeof(*new(T)))
	return w
}

// bytesOf views the memory of data as bytes.
func bytesOf[T Element](data []T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), len(data)*sizeOf[T]())
}

// memoryConfig describes the incrementing elements of data.
func memoryConfig[T Element](data []T) EndpointConfig {
	return EndpointConfig{
		Address:   uintptr(unsafe.Pointer(&data[0])),
		Width:     widthOf[T](),
		Burst:     BurstFor(len(data) * sizeOf[T]()),
		Increment: Incrementing(len(data)),
		Memory:    bytesOf(data),
	}
}

func zeroLength(kind string) {
	fatal(fmt.Errorf("%w: %s", pkg.ErrZeroLength, kind))
}

// Slice is a source backed by an ordinary slice.
//
// It cannot be a destination: its memory may share cache lines with
// unrelated data, which invalidation would discard.
type Slice[T Element] struct {
	data []T
}

// NewSlice wraps data as a transfer source.
func NewSlice[T Element](data []T) *Slice[T] {
	return &Slice[T]{data: data}
}

// Data returns the wrapped slice.
func (s *Slice[T]) Data() []T {
	return s.data
}

// ConfigureSource implements Source.
func (s *Slice[T]) ConfigureSource(cache hal.Cache) EndpointConfig {
	if len(s.data) == 0 {
		zeroLength("slice source")
	}
	cfg := memoryConfig(s.data)
	cache.Flush(cfg.Address, len(cfg.Memory))
	return cfg
}

// Close implements Endpoint.
func (s *Slice[T]) Close() {}

// Fill is a constant-address source repeating a single value, for
// clearing or patterning a destination buffer.
type Fill[T Element] struct {
	value *T
}

// NewFill returns a source that repeats v.
func NewFill[T Element](v T) *Fill[T] {
	return &Fill[T]{value: &v}
}

// Value returns the repeated value.
func (f *Fill[T]) Value() T {
	return *f.value
}

// ConfigureSource implements Source.
func (f *Fill[T]) ConfigureSource(cache hal.Cache) EndpointConfig {
	addr := uintptr(unsafe.Pointer(f.value))
	cache.Flush(addr, sizeOf[T]())
	return EndpointConfig{
		Address:   addr,
		Width:     widthOf[T](),
		Burst:     hal.Incr1,
		Increment: Constant(),
		Memory:    unsafe.Slice((*byte)(unsafe.Pointer(f.value)), sizeOf[T]()),
	}
}

// Close implements Endpoint.
func (f *Fill[T]) Close() {}

// Aligned is a buffer that starts on a cache line boundary and is padded to
// a whole number of lines, so it owns every line it spans. It may serve as
// a cacheable source or destination.
type Aligned[T Element] struct {
	raw  []byte // backing store, one line larger than span
	data []T
	span int // bytes, multiple of hal.CacheLineSize
}

// NewAligned allocates a zeroed cache-aligned buffer of n elements.
func NewAligned[T Element](n int) *Aligned[T] {
	span := alignUp(n*sizeOf[T](), hal.CacheLineSize)
	raw := make([]byte, span+hal.CacheLineSize)
	base := uintptr(unsafe.Pointer(&raw[0]))
	off := int(alignUp(int(base), hal.CacheLineSize) - int(base))
	return &Aligned[T]{
		raw:  raw,
		data: unsafe.Slice((*T)(unsafe.Pointer(&raw[off])), n),
		span: span,
	}
}

// NewAlignedFrom allocates a cache-aligned copy of data.
func NewAlignedFrom[T Element](data []T) *Aligned[T] {
	a := NewAligned[T](len(data))
	copy(a.data, data)
	return a
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// Data returns the buffer contents. It must not be accessed while the
// buffer is part of a live transfer.
func (a *Aligned[T]) Data() []T {
	return a.data
}

// Len returns the number of elements.
func (a *Aligned[T]) Len() int {
	return len(a.data)
}

// Address returns the bus address of the first element.
func (a *Aligned[T]) Address() uintptr {
	if len(a.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.data[0]))
}

// Span returns the number of bytes of whole cache lines the buffer owns.
func (a *Aligned[T]) Span() int {
	return a.span
}

// ConfigureSource implements Source.
func (a *Aligned[T]) ConfigureSource(cache hal.Cache) EndpointConfig {
	if len(a.data) == 0 {
		zeroLength("aligned source")
	}
	cache.Flush(a.Address(), a.span)
	return memoryConfig(a.data)
}

// ConfigureDestination implements Destination.
func (a *Aligned[T]) ConfigureDestination(cache hal.Cache) EndpointConfig {
	if len(a.data) == 0 {
		zeroLength("aligned destination")
	}
	cache.FlushInvalidate(a.Address(), a.span)
	return memoryConfig(a.data)
}

// Complete implements Destination.
func (a *Aligned[T]) Complete(cache hal.Cache) {
	cache.Invalidate(a.Address(), a.span)
}

// Close implements Endpoint.
func (a *Aligned[T]) Close() {}
