// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue provides the bounded FIFO queues used internally by the
// prefetch scheduler and the shared-memory arena.
//
// The package offers queue variants optimized for the producer/consumer
// shapes those components actually need:
//
//   - SPSC: Single-Producer Single-Consumer
//   - MPSC: Multi-Producer Single-Consumer
//   - SPMC: Single-Producer Multi-Consumer
//   - MPMC: Multi-Producer Multi-Consumer
//
// # Quick Start
//
// Direct constructors (recommended for most cases):
//
//	q := queue.NewSPSC[Job](1024)
//	q := queue.NewMPSC[Completion](4096)
//
// Builder API auto-selects algorithm based on constraints:
//
//	q := queue.Build[Job](queue.New(1024).SingleProducer().SingleConsumer())  // → SPSC
//	q := queue.Build[Job](queue.New(1024).SingleConsumer())                   // → MPSC
//	q := queue.Build[Job](queue.New(1024).SingleProducer())                   // → SPMC
//	q := queue.Build[Job](queue.New(1024))                                    // → MPMC
//
// # Basic Usage
//
// All queues share the same interface for enqueueing and dequeueing:
//
//	q := queue.NewMPSC[Completion](1024)
//
//	// Enqueue (non-blocking)
//	c := Completion{Index: i}
//	err := q.Enqueue(&c)
//	if queue.IsWouldBlock(err) {
//	    // Queue is full - handle backpressure
//	}
//
//	// Dequeue (non-blocking)
//	elem, err := q.Dequeue()
//	if queue.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// # How the scheduler uses these shapes
//
// Job queue (SPMC): the scheduler goroutine is the sole producer, dispatching
// prefetch jobs; a fixed pool of worker goroutines consumes them.
//
//	jobs := queue.NewSPMC[job](maxBuffered)
//
//	go func() { // scheduler (producer)
//	    for j := range dispatch {
//	        for jobs.Enqueue(&j) != nil {
//	            runtime.Gosched()
//	        }
//	    }
//	}()
//
//	for range numWorkers { // workers (consumers)
//	    go func() {
//	        for {
//	            j, err := jobs.Dequeue()
//	            if err == nil {
//	                run(j)
//	            }
//	        }
//	    }()
//	}
//
// Completion queue (MPSC): every worker goroutine produces completions; the
// scheduler goroutine is the sole consumer, draining them in its event loop.
//
//	completions := queue.NewMPSC[completion](maxBuffered)
//
//	// workers (producers)
//	completions.Enqueue(&completion{Index: i, Err: err})
//
//	// scheduler (consumer)
//	for {
//	    c, err := completions.Dequeue()
//	    if err == nil {
//	        handleCompletion(c)
//	    }
//	}
//
// Arena free-set (MPSCIndirect): any goroutine holding a live handle may
// release its slot back (multi-producer Enqueue of a freed offset); the
// arena's allocator runs on the single scheduler goroutine servicing
// allocation requests (single-consumer Dequeue).
//
//	freeSet := queue.NewMPSCIndirect(numSlots)
//	for i := range numSlots {
//	    freeSet.Enqueue(uintptr(i))
//	}
//
//	// Allocate (scheduler goroutine only)
//	offset, err := freeSet.Dequeue()
//
//	// Release (any goroutine)
//	freeSet.Enqueue(offset)
//
// # Queue Variants
//
// Two queue flavors are available:
//
//	Build[T]        - Generic type-safe queue for any type
//	BuildIndirect() - Queue for uintptr values (arena slot offsets)
//
// # Algorithm Selection
//
// All variants use FAA-based (Fetch-And-Add) algorithms with 2n physical
// slots for capacity n, except SPSC which already uses a Lamport ring
// buffer with n slots:
//
//	SPSC: Lamport ring buffer (n slots)
//	MPSC: FAA producers, sequential consumer
//	SPMC: Sequential producer, FAA consumers
//	MPMC: FAA-based SCQ algorithm (Nikolaev, DISC 2019)
//
// Type-safe builder functions enforce constraints at compile time:
//
//	BuildSPSC[T](b) → *SPSC[T]   // Requires SP + SC
//	BuildMPSC[T](b) → Queue[T]   // Requires SC only
//	BuildSPMC[T](b) → Queue[T]   // Requires SP only
//	BuildMPMC[T](b) → Queue[T]   // Requires no constraints
//
// # Error Handling
//
// Queues return [ErrWouldBlock] when operations cannot proceed. This error
// is sourced from [code.hybscloud.com/iox] for ecosystem consistency.
//
//	for {
//	    err := q.Enqueue(&item)
//	    if err == nil {
//	        break
//	    }
//	    if !queue.IsWouldBlock(err) {
//	        return err // unexpected error
//	    }
//	    runtime.Gosched()
//	}
//
// For semantic error classification (delegates to iox):
//
//	queue.IsWouldBlock(err)  // true if queue full/empty
//	queue.IsSemantic(err)    // true if control flow signal
//	queue.IsNonFailure(err)  // true if nil or ErrWouldBlock
//
// # Capacity and Length
//
// Capacity rounds up to the next power of 2:
//
//	q := queue.NewMPMC[int](3)     // Actual capacity: 4
//	q := queue.NewMPMC[int](1000)  // Actual capacity: 1024
//
// Minimum capacity is 2. Panic if capacity < 2.
//
// Length is intentionally not provided because accurate counts in lock-free
// algorithms require expensive cross-core synchronization.
//
// # Thread Safety
//
// All queue operations are thread-safe within their access pattern constraints:
//
//   - SPSC: One producer goroutine, one consumer goroutine
//   - MPSC: Multiple producer goroutines, one consumer goroutine
//   - SPMC: One producer goroutine, multiple consumer goroutines
//   - MPMC: Multiple producer and consumer goroutines
//
// Violating these constraints (e.g. multiple producers on SPSC) causes
// undefined behavior including data corruption and races.
//
// # Graceful Shutdown
//
// FAA-based queues (MPMC, SPMC, MPSC) include a threshold mechanism to prevent
// livelock. This mechanism may cause Dequeue to return [ErrWouldBlock] even when
// items remain, waiting for producer activity to reset the threshold.
//
// When all producers have stopped (e.g. the scheduler is shutting down and
// all workers have exited), use the [Drainer] interface so the remaining
// consumer can empty the queue without threshold blocking:
//
//	workerWg.Wait()
//	if d, ok := completions.(queue.Drainer); ok {
//	    d.Drain()
//	}
//	// the scheduler's final drain pass can now empty the queue fully
//
// SPSC queues do not implement [Drainer] as they have no threshold mechanism.
//
// # Race Detection
//
// Go's race detector is not designed for lock-free algorithm verification.
// The race detector tracks explicit synchronization primitives (mutex, channels,
// WaitGroup) but cannot observe happens-before relationships established through
// atomic memory orderings (acquire-release semantics). This package's tests
// carry no race-detector build tag and do not consult [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause instructions.
package queue
