// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// mpscIndirectSlot packs a slot's cycle and payload into a single 128-bit
// atomic entry, so an Enqueue or Dequeue needs one CAS instead of two.
//
// Entry format: [lo=cycle | hi=value]
type mpscIndirectSlot struct {
	entry atomix.Uint128
	_     [64 - 16]byte // pad to cache line
}

// MPSCIndirect is an FAA-based multi-producer single-consumer bounded queue
// of uintptr values, based on the SCQ algorithm (Nikolaev, DISC 2019) with
// 2n physical slots for capacity n.
//
// This is the arena's free-set shape: slot releases arrive from any
// goroutine holding a live handle (multi-producer Enqueue of a freed
// offset), while the arena's allocator is always the single scheduler
// goroutine servicing Fetch (single-consumer Dequeue).
type MPSCIndirect struct {
	_        pad
	head     atomix.Uint64 // consumer index, read by producers for backpressure
	_        pad
	tail     atomix.Uint64 // producer index (FAA)
	_        pad
	buffer   []mpscIndirectSlot
	capacity uint64
	size     uint64
	mask     uint64
}

// NewMPSCIndirect creates a new FAA-based MPSC queue for uintptr values.
// Capacity rounds up to the next power of 2.
func NewMPSCIndirect(capacity int) *MPSCIndirect {
	if capacity < 2 {
		panic("queue: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	size := n * 2

	q := &MPSCIndirect{
		buffer:   make([]mpscIndirectSlot, size),
		capacity: n,
		size:     size,
		mask:     size - 1,
	}

	for i := uint64(0); i < size; i++ {
		q.buffer[i].entry.StoreRelaxed(i/n, 0)
	}

	return q
}

// Enqueue adds an element to the queue (multiple producers safe).
// Returns ErrWouldBlock if the queue is full.
func (q *MPSCIndirect) Enqueue(elem uintptr) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		head := q.head.LoadRelaxed()
		if tail >= head+q.capacity {
			return ErrWouldBlock
		}

		myTail := q.tail.AddAcqRel(1) - 1

		slot := &q.buffer[myTail&q.mask]
		expectedCycle := myTail / q.capacity

		slotCycle, valHi := slot.entry.LoadAcquire()

		if slotCycle == expectedCycle {
			if slot.entry.CompareAndSwapAcqRel(expectedCycle, valHi, expectedCycle+1, uint64(elem)) {
				return nil
			}
		}

		if int64(slotCycle) < int64(expectedCycle) {
			slot.entry.CompareAndSwapAcqRel(slotCycle, valHi, expectedCycle+1, valHi)
			return ErrWouldBlock
		}

		sw.Once()
	}
}

// Dequeue removes and returns an element (single consumer only).
// Returns (0, ErrWouldBlock) if the queue is empty.
func (q *MPSCIndirect) Dequeue() (uintptr, error) {
	head := q.head.LoadRelaxed()
	cycle := head / q.capacity
	slot := &q.buffer[head&q.mask]

	slotCycle, valHi := slot.entry.LoadAcquire()

	if slotCycle != cycle+1 {
		return 0, ErrWouldBlock
	}

	nextEnqCycle := (head + q.size) / q.capacity
	slot.entry.StoreRelease(nextEnqCycle, 0)
	q.head.StoreRelaxed(head + 1)

	return uintptr(valHi), nil
}

// Cap returns the queue capacity.
func (q *MPSCIndirect) Cap() int {
	return int(q.capacity)
}
