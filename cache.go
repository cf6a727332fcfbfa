// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

import "sync"

// AddCache wraps s with an LRU cache of at most cacheSize entries,
// guarded by a single mutex so Get is safe to call from multiple
// goroutines. A full linear scan should go through Source()
// instead of Get, since routing every sequential index through the LRU
// only pays eviction cost without ever producing a hit.
func AddCache[T any](s Seq[T], cacheSize int) (Seq[T], error) {
	if cacheSize <= 0 {
		return nil, &ValueOutOfRange{Name: "AddCache(cacheSize)", Value: cacheSize}
	}
	return &cachedView[T]{src: s, capacity: cacheSize, entries: make(map[int]*lruNode[T], cacheSize)}, nil
}

type lruNode[T any] struct {
	key        int
	val        T
	prev, next *lruNode[T]
}

type cachedView[T any] struct {
	src      Seq[T]
	mu       sync.Mutex
	capacity int
	entries  map[int]*lruNode[T]
	head     *lruNode[T] // most recently used
	tail     *lruNode[T] // least recently used
}

func (v *cachedView[T]) Len() (int, bool) { return v.src.Len() }

// Source returns the underlying, uncached sequence, for callers doing a
// full linear scan that should not disturb the LRU's working set.
func (v *cachedView[T]) Source() Seq[T] { return v.src }

func (v *cachedView[T]) Get(i int) (T, error) {
	v.mu.Lock()
	if node, ok := v.entries[i]; ok {
		v.moveToFront(node)
		val := node.val
		v.mu.Unlock()
		return val, nil
	}
	v.mu.Unlock()

	val, err := v.src.Get(i)
	if err != nil {
		var zero T
		return zero, err
	}

	v.mu.Lock()
	v.insert(i, val)
	v.mu.Unlock()
	return val, nil
}

func (v *cachedView[T]) moveToFront(node *lruNode[T]) {
	if v.head == node {
		return
	}
	v.unlink(node)
	v.linkFront(node)
}

func (v *cachedView[T]) unlink(node *lruNode[T]) {
	if node.prev != nil {
		node.prev.next = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	}
	if v.head == node {
		v.head = node.next
	}
	if v.tail == node {
		v.tail = node.prev
	}
	node.prev, node.next = nil, nil
}

func (v *cachedView[T]) linkFront(node *lruNode[T]) {
	node.prev = nil
	node.next = v.head
	if v.head != nil {
		v.head.prev = node
	}
	v.head = node
	if v.tail == nil {
		v.tail = node
	}
}

func (v *cachedView[T]) insert(key int, val T) {
	if existing, ok := v.entries[key]; ok {
		existing.val = val
		v.moveToFront(existing)
		return
	}
	if len(v.entries) >= v.capacity && v.tail != nil {
		evict := v.tail
		v.unlink(evict)
		delete(v.entries, evict.key)
	}
	node := &lruNode[T]{key: key, val: val}
	v.linkFront(node)
	v.entries[key] = node
}
