// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pack implements the erased value representation and the
// probe-driven pack/unpack machinery used to move pipeline results
// across the process-backend boundary, with zero-copy byte ranges for
// large buffer leaves when shared-memory transport is active.
package pack

import "sort"

// Kind tags which alternative of Value is populated.
type Kind uint8

const (
	KindScalar Kind = iota
	KindTuple
	KindList
	KindMap
	KindBuffer
)

// Value is the single erased sum type every pipeline result is
// projected into for transport: a scalar leaf, an ordered tuple, an
// ordered list, a string-keyed map with deterministic (sorted) key
// order, or a raw byte range inside a shared-memory slot.
type Value struct {
	Kind   Kind
	Scalar []byte            // KindScalar: raw encoded bytes
	Items  []Value           // KindTuple / KindList
	Fields map[string]Value  // KindMap
	Buffer BufferRef         // KindBuffer
	keys   []string          // KindMap: cached sorted key order
}

// BufferRef locates a contiguous byte range inside an arena slot. Only
// Pack with a non-nil slot produces one; with a nil slot, buffer leaves
// are inlined as scalars instead.
type BufferRef struct {
	Offset int
	Length int
}

// NewScalar wraps raw encoded bytes as a scalar leaf.
func NewScalar(b []byte) Value { return Value{Kind: KindScalar, Scalar: b} }

// NewTuple builds a fixed-arity ordered Value.
func NewTuple(items ...Value) Value { return Value{Kind: KindTuple, Items: items} }

// NewList builds a variable-length ordered Value.
func NewList(items []Value) Value { return Value{Kind: KindList, Items: items} }

// NewMap builds a string-keyed Value with deterministic iteration order:
// keys are sorted once here so Pack/Unpack never re-derive ordering.
func NewMap(fields map[string]Value) Value {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Value{Kind: KindMap, Fields: fields, keys: keys}
}

// NewBuffer wraps a byte range inside an arena slot.
func NewBuffer(offset, length int) Value {
	return Value{Kind: KindBuffer, Buffer: BufferRef{Offset: offset, Length: length}}
}

// SortedKeys returns a KindMap value's keys in the deterministic order
// used by Pack/Unpack. Panics if Kind != KindMap.
func (v Value) SortedKeys() []string {
	if v.Kind != KindMap {
		panic("pack: SortedKeys called on non-map Value")
	}
	if v.keys != nil {
		return v.keys
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
