// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import "unsafe"

// Options configures queue creation and algorithm selection.
type Options struct {
	// Producer/Consumer constraints (determines queue type)
	singleProducer bool
	singleConsumer bool

	// Capacity (rounds up to next power of 2)
	capacity int
}

// Builder creates queues with fluent configuration.
//
// Builder provides a fluent API for configuring and creating queues.
// The builder automatically selects the algorithm based on
// producer/consumer constraints.
//
// Example:
//
//	// SPMC queue (job queue: one scheduler, many workers)
//	q := queue.BuildSPMC[Job](queue.New(1024).SingleProducer())
//
//	// MPSC queue (completion queue: many workers, one scheduler)
//	q := queue.BuildMPSC[Completion](queue.New(1024).SingleConsumer())
type Builder struct {
	opts Options
}

// New creates a queue builder with the given capacity.
//
// Capacity rounds up to the next power of 2.
// For example, capacity=4 results in actual capacity=4, capacity=1000 results
// in actual capacity=1024.
//
// Panics if capacity < 2.
func New(capacity int) *Builder {
	if capacity < 2 {
		panic("queue: capacity must be >= 2")
	}
	return &Builder{opts: Options{capacity: capacity}}
}

// SingleProducer declares that only one goroutine will enqueue.
// Enables optimized algorithms for SPSC or SPMC patterns.
func (b *Builder) SingleProducer() *Builder {
	b.opts.singleProducer = true
	return b
}

// SingleConsumer declares that only one goroutine will dequeue.
// Enables optimized algorithms for SPSC or MPSC patterns.
func (b *Builder) SingleConsumer() *Builder {
	b.opts.singleConsumer = true
	return b
}

// Build creates a Queue[T] with automatic algorithm selection.
//
// Algorithm selection:
//
//	SingleProducer + SingleConsumer → SPSC (Lamport ring buffer)
//	SingleProducer only             → SPMC (FAA-based, 2n slots)
//	SingleConsumer only             → MPSC (FAA-based, 2n slots)
//	Neither                         → MPMC (FAA-based, 2n slots)
func Build[T any](b *Builder) Queue[T] {
	switch {
	case b.opts.singleProducer && b.opts.singleConsumer:
		return NewSPSC[T](b.opts.capacity)
	case b.opts.singleProducer:
		return NewSPMC[T](b.opts.capacity)
	case b.opts.singleConsumer:
		return NewMPSC[T](b.opts.capacity)
	default:
		return NewMPMC[T](b.opts.capacity)
	}
}

// BuildSPSC creates an SPSC queue with compile-time type safety.
// Panics if builder is not configured with SingleProducer().SingleConsumer().
func BuildSPSC[T any](b *Builder) *SPSC[T] {
	if !b.opts.singleProducer || !b.opts.singleConsumer {
		panic("queue: BuildSPSC requires SingleProducer().SingleConsumer()")
	}
	return NewSPSC[T](b.opts.capacity)
}

// BuildMPSC creates an MPSC queue with compile-time type safety.
// Panics if builder is not configured with SingleConsumer() only.
func BuildMPSC[T any](b *Builder) Queue[T] {
	if b.opts.singleProducer || !b.opts.singleConsumer {
		panic("queue: BuildMPSC requires SingleConsumer() without SingleProducer()")
	}
	return NewMPSC[T](b.opts.capacity)
}

// BuildSPMC creates an SPMC queue with compile-time type safety.
// Panics if builder is not configured with SingleProducer() only.
func BuildSPMC[T any](b *Builder) Queue[T] {
	if !b.opts.singleProducer || b.opts.singleConsumer {
		panic("queue: BuildSPMC requires SingleProducer() without SingleConsumer()")
	}
	return NewSPMC[T](b.opts.capacity)
}

// BuildMPMC creates an MPMC queue with compile-time type safety.
// Panics if builder has any constraints set.
func BuildMPMC[T any](b *Builder) Queue[T] {
	if b.opts.singleProducer || b.opts.singleConsumer {
		panic("queue: BuildMPMC requires no constraints")
	}
	return NewMPMC[T](b.opts.capacity)
}

// BuildIndirect creates a QueueIndirect for uintptr values.
//
// Only the SPSC and MPSC shapes are provided. The arena's free list uses
// the MPSC shape, built through BuildIndirectMPSC.
func (b *Builder) BuildIndirect() QueueIndirect {
	switch {
	case b.opts.singleProducer && b.opts.singleConsumer:
		return NewSPSCIndirect(b.opts.capacity)
	case b.opts.singleConsumer:
		return NewMPSCIndirect(b.opts.capacity)
	default:
		panic("queue: BuildIndirect requires SingleConsumer() (optionally with SingleProducer())")
	}
}

// BuildIndirectSPSC creates an SPSC queue for uintptr values.
func (b *Builder) BuildIndirectSPSC() *SPSCIndirect {
	if !b.opts.singleProducer || !b.opts.singleConsumer {
		panic("queue: BuildIndirectSPSC requires SingleProducer().SingleConsumer()")
	}
	return NewSPSCIndirect(b.opts.capacity)
}

// BuildIndirectMPSC creates an MPSC queue for uintptr values.
// Panics if builder is not configured with SingleConsumer() only.
func (b *Builder) BuildIndirectMPSC() *MPSCIndirect {
	if b.opts.singleProducer || !b.opts.singleConsumer {
		panic("queue: BuildIndirectMPSC requires SingleConsumer() without SingleProducer()")
	}
	return NewMPSCIndirect(b.opts.capacity)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// ptrSize is the size of a pointer in bytes.
const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte
