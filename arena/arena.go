// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package arena implements the fixed-size shared-memory buffer pool
// backing zero-copy result transport under the process backend: a
// single mmap'd region is partitioned into equal slots, each handed out
// through a ref-counted handle and returned to a lock-free free-set
// when its last reference is dropped.
package arena

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/outrigger-data/seqflow/internal/queue"
)

// ErrExhausted is raised by Fetch when the free set is empty even after
// a garbage-collection retry pass.
var ErrExhausted = errors.New("arena: buffer exhausted")

// Arena is a process-shared byte region partitioned into nslots equal
// slots. It is backed by a memfd (an anonymous, in-memory file), rather
// than a plain MAP_ANONYMOUS mapping, specifically so the region can
// outlive an exec(): the process backend passes the memfd's descriptor
// to re-exec'd worker children via exec.Cmd.ExtraFiles, and each child
// maps the same pages with OpenShared.
type Arena struct {
	file     *os.File
	data     []byte
	slotSize int
	nslots   int
	free     *queue.MPSCIndirect // single-consumer (Fetch), multi-producer (Release)
}

// New allocates an Arena of shmSize bytes split into nslots equal
// slots, owning (and seeding the free set for) every slot. Use this in
// the parent/scheduler process.
func New(shmSize, nslots int) (*Arena, error) {
	if nslots < 1 {
		return nil, errors.New("arena: nslots must be >= 1")
	}
	fd, err := unix.MemfdCreate("seqflow-arena", 0)
	if err != nil {
		return nil, fmt.Errorf("arena: memfd_create: %w", err)
	}
	file := os.NewFile(uintptr(fd), "seqflow-arena")
	if err := file.Truncate(int64(shmSize)); err != nil {
		file.Close()
		return nil, fmt.Errorf("arena: ftruncate: %w", err)
	}
	data, err := unix.Mmap(fd, 0, shmSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("arena: mmap: %w", err)
	}
	a := &Arena{
		file:     file,
		data:     data,
		slotSize: shmSize / nslots,
		nslots:   nslots,
		free:     queue.New(nslots * 2).SingleConsumer().BuildIndirectMPSC(),
	}
	for i := 0; i < nslots; i++ {
		_ = a.free.Enqueue(uintptr(i))
	}
	return a, nil
}

// OpenShared maps the arena region from an inherited file descriptor
// (passed via exec.Cmd.ExtraFiles as fd, counting from 3) without
// owning the free set: a worker child only ever writes into the slot
// named by the job it was handed, it never Fetches or Releases.
func OpenShared(fd uintptr, shmSize, nslots int) (*Arena, error) {
	data, err := unix.Mmap(int(fd), 0, shmSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap shared fd: %w", err)
	}
	return &Arena{data: data, slotSize: shmSize / nslots, nslots: nslots}, nil
}

// File exposes the backing memfd so the process backend can list it in
// exec.Cmd.ExtraFiles when spawning workers.
func (a *Arena) File() *os.File { return a.file }

// Close unmaps the underlying shared memory. The caller must ensure no
// live Slot handles remain.
func (a *Arena) Close() error {
	err := unix.Munmap(a.data)
	if a.file != nil {
		if cerr := a.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// SlotSize returns the byte size of a single slot.
func (a *Arena) SlotSize() int { return a.slotSize }

// BytesAt returns the byte range of the slot at index directly, with no
// ref-counting. Worker processes opened via OpenShared use this: the
// job that names a slot is itself the only handoff protocol a worker
// needs, since it never allocates or frees slots on its own.
func (a *Arena) BytesAt(index int32) []byte {
	off := int(index) * a.slotSize
	return a.data[off : off+a.slotSize]
}

// Fetch pops a free slot, wrapping it in a ref-counted handle with an
// initial reference count of 1. On an empty free set it runs one
// runtime.GC() pass — the closest Go equivalent to dropping outstanding
// weak references — and retries once before returning ErrExhausted.
// Fetch must only be called from the single goroutine that owns the
// free set's consumer side (the scheduler).
func (a *Arena) Fetch() (*Slot, error) {
	idx, err := a.free.Dequeue()
	if err != nil {
		runtime.GC()
		idx, err = a.free.Dequeue()
		if err != nil {
			return nil, ErrExhausted
		}
	}
	// The count lives in its own allocation so the cleanup argument does
	// not point into s, which would keep s reachable forever.
	refs := new(atomic.Int32)
	refs.Store(1)
	s := &Slot{arena: a, index: int32(idx), refs: refs}
	runtime.AddCleanup(s, releaseIndex, cleanupArgs{a: a, index: s.index, refs: refs})
	return s, nil
}

// Slot is a ref-counted handle onto one arena region. A Slot returned
// by Fetch carries one reference; Acquire adds another (e.g. to share
// a result across two consumers), Release drops one. The slot returns
// to the arena's free set when the count reaches zero.
//
// Release is the preferred, explicit way to give up a reference — Go
// has no destructors, so a runtime.AddCleanup-registered finalizer is
// also armed as a backstop purely to avoid permanently starving the
// free set if a caller forgets. Don't rely on the finalizer: its
// timing is not guaranteed.
type Slot struct {
	arena *Arena
	index int32
	refs  *atomic.Int32
}

// Index is this slot's position in the arena, usable as a Job/Completion Slot.
func (s *Slot) Index() int32 { return s.index }

// Bytes returns the slot's backing byte range. Valid only while the
// caller holds a reference.
func (s *Slot) Bytes() []byte {
	off := int(s.index) * s.arena.slotSize
	return s.arena.data[off : off+s.arena.slotSize]
}

// Acquire adds a reference to the slot, returning s for chaining.
func (s *Slot) Acquire() *Slot {
	s.refs.Add(1)
	return s
}

// Release drops a reference. When the count reaches zero the slot's
// offset returns to the arena's free set and the handle must not be
// used again.
func (s *Slot) Release() {
	if s.refs.Add(-1) == 0 {
		for s.arena.free.Enqueue(uintptr(s.index)) != nil {
			// free set momentarily full: cannot happen under correct
			// bookkeeping (capacity == nslots*2, one entry per slot),
			// but retry rather than drop the offset.
		}
	}
}

type cleanupArgs struct {
	a     *Arena
	index int32
	refs  *atomic.Int32
}

func releaseIndex(args cleanupArgs) {
	// Only reclaim the slot here if references are still outstanding
	// (the caller forgot to call Release); a normal Release already
	// brought the count to zero and enqueued it itself.
	for {
		old := args.refs.Load()
		if old <= 0 {
			return
		}
		if args.refs.CompareAndSwap(old, 0) {
			break
		}
	}
	for args.a.free.Enqueue(uintptr(args.index)) != nil {
	}
}
